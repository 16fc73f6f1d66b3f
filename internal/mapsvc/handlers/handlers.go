package handlers

import (
	"encoding/json"
	"errors"
	"strconv"

	"inspection-map/internal/mapsvc/service"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// ============================================================
// Handlers
// ============================================================

type Handler struct {
	sessions *service.Manager
	validate *validator.Validate
	log      *logrus.Entry
}

func New(sessions *service.Manager, log *logrus.Entry) *Handler {
	return &Handler{
		sessions: sessions,
		validate: validator.New(),
		log:      log,
	}
}

var errSessionNotFound = errors.New("session not found")

// session достает сессию из пути
func (h *Handler) session(c fiber.Ctx) (*service.Session, bool) {
	s, ok := h.sessions.Get(c.Params("id"))
	return s, ok
}

// lookupError: неизвестная сессия — 404, остальное — 400
func lookupError(c fiber.Ctx, err error) error {
	if errors.Is(err, errSessionNotFound) {
		return sessionNotFound(c)
	}
	return badRequest(c, err)
}

// parseBody: JSON-тело + валидация
func (h *Handler) parseBody(c fiber.Ctx, dst any) error {
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), dst); err != nil {
			return err
		}
	}
	return h.validate.Struct(dst)
}

func floorParam(c fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("floorId"), 10, 64)
}

func badRequest(c fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

func sessionNotFound(c fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "session not found"})
}

// respondState — единый ответ: снимок выбора + накопленные команды карте
func respondState(c fiber.Ctx, s *service.Session) error {
	return c.JSON(fiber.Map{
		"state":       s.Controller.Snapshot(),
		"mapCommands": s.Recorder.Drain(),
	})
}
