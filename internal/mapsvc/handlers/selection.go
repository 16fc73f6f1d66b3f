package handlers

import (
	"github.com/gofiber/fiber/v3"
	"github.com/paulmach/orb"

	"inspection-map/internal/mapsvc/selection"
)

// ============================================================
// Selection Handlers
// ============================================================

// OpenSession создает сессию устройства
func (h *Handler) OpenSession(c fiber.Ctx) error {
	s := h.sessions.Open()
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"sessionId": s.ID,
		"state":     s.Controller.Snapshot(),
	})
}

// CloseSession убирает сессию целиком
func (h *Handler) CloseSession(c fiber.Ctx) error {
	h.sessions.Close(c.Params("id"))
	return c.JSON(fiber.Map{"status": "closed"})
}

// State отдает текущий снимок без мутаций
func (h *Handler) State(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}
	return respondState(c, s)
}

type clickRequest struct {
	Lng *float64 `json:"lng" validate:"required"`
	Lat *float64 `json:"lat" validate:"required"`
}

// Click — клик по карте: точка → сегмент → здание/этаж
func (h *Handler) Click(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}
	var req clickRequest
	if err := h.parseBody(c, &req); err != nil {
		return badRequest(c, err)
	}
	s.Controller.OnMapClick(orb.Point{*req.Lng, *req.Lat})
	return respondState(c, s)
}

// CloseSelection чистит выбор атомарно
func (h *Handler) CloseSelection(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}
	s.Controller.CloseSelection()
	return respondState(c, s)
}

// Retry повторяет неудавшийся фетч здания
func (h *Handler) Retry(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}
	s.Controller.Retry()
	return respondState(c, s)
}

type externalSelectionRequest struct {
	StoryKey       *string `json:"storyKey"`
	RenovationCode *string `json:"renovationCode"`
	FloorID        *int64  `json:"floorId"`
}

// ExternalSelection — выбор, пришедший извне (список, поиск)
func (h *Handler) ExternalSelection(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}
	var req externalSelectionRequest
	if err := h.parseBody(c, &req); err != nil {
		return badRequest(c, err)
	}
	s.Controller.ApplyExternalSelection(selection.ExternalSelection{
		StoryKey:       req.StoryKey,
		RenovationCode: req.RenovationCode,
		FloorID:        req.FloorID,
	})
	return respondState(c, s)
}

type selectFloorRequest struct {
	FloorID *int64 `json:"floorId" validate:"required"`
}

// SelectFloor — ручной выбор вкладки этажа
func (h *Handler) SelectFloor(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}
	var req selectFloorRequest
	if err := h.parseBody(c, &req); err != nil {
		return badRequest(c, err)
	}
	s.Controller.SelectFloor(*req.FloorID)
	return respondState(c, s)
}

type selectLayerRequest struct {
	LayerID string `json:"layerId" validate:"required"`
}

// SelectLayer — выбор метки на плане
func (h *Handler) SelectLayer(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}
	var req selectLayerRequest
	if err := h.parseBody(c, &req); err != nil {
		return badRequest(c, err)
	}
	s.Controller.SelectLayer(req.LayerID)
	return respondState(c, s)
}

type storyKeyRequest struct {
	StoryKey string `json:"storyKey" validate:"required"`
}

// HideStory прячет сегмент на карте
func (h *Handler) HideStory(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}
	var req storyKeyRequest
	if err := h.parseBody(c, &req); err != nil {
		return badRequest(c, err)
	}
	s.Controller.HideStory(req.StoryKey)
	return respondState(c, s)
}

// UnhideStory возвращает сегмент
func (h *Handler) UnhideStory(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}
	var req storyKeyRequest
	if err := h.parseBody(c, &req); err != nil {
		return badRequest(c, err)
	}
	s.Controller.UnhideStory(req.StoryKey)
	return respondState(c, s)
}

// ResetHidden показывает все сегменты
func (h *Handler) ResetHidden(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}
	s.Controller.ResetHidden()
	return respondState(c, s)
}

// Fit кадрирует выбор либо все видимое
func (h *Handler) Fit(c fiber.Ctx) error {
	s, ok := h.session(c)
	if !ok {
		return sessionNotFound(c)
	}
	s.Controller.FitToSelection()
	return respondState(c, s)
}
