package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"inspection-map/internal/store"
)

// ============================================================
// Floor Draft Handlers
// ============================================================

// PutFloorDraft сохраняет черновик осмотра этажа как есть (непрозрачный
// JSON клиента). Черновик переживает сессию и протухает по TTL.
func (h *Handler) PutFloorDraft(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}
	floorID, err := floorParam(c)
	if err != nil {
		return badRequest(c, errors.New("invalid floor id"))
	}
	if len(c.Body()) == 0 {
		return badRequest(c, errors.New("empty draft body"))
	}

	if err := s.SaveFloorDraft(c.Context(), floorID, c.Body()); err != nil {
		h.log.Warnf("save draft for floor %d: %v", floorID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"saved": true})
}

// GetFloorDraft возвращает черновик этажа, либо 404, если его нет
// или он протух
func (h *Handler) GetFloorDraft(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}
	floorID, err := floorParam(c)
	if err != nil {
		return badRequest(c, errors.New("invalid floor id"))
	}

	payload, err := s.LoadFloorDraft(c.Context(), floorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "draft not found"})
		}
		h.log.Warnf("load draft for floor %d: %v", floorID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	c.Set("Content-Type", "application/json")
	return c.Send(payload)
}
