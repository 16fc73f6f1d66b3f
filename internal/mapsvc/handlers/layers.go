package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"inspection-map/internal/mapsvc/annotate"
	"inspection-map/internal/mapsvc/models"
)

// ============================================================
// Floor Editor Handlers (quick-add / drag / save-all)
// ============================================================

type rectBody struct {
	Left   *float64 `json:"left" validate:"required"`
	Top    *float64 `json:"top" validate:"required"`
	Width  *float64 `json:"width" validate:"required,gt=0"`
	Height *float64 `json:"height" validate:"required,gt=0"`
}

func (r rectBody) toRect() annotate.Rect {
	return annotate.Rect{Left: *r.Left, Top: *r.Top, Width: *r.Width, Height: *r.Height}
}

func parsePhase(s string) annotate.Phase {
	switch s {
	case "begin":
		return annotate.PhaseBegin
	case "move":
		return annotate.PhaseMove
	}
	return annotate.PhaseEnd
}

func (h *Handler) editor(c fiber.Ctx) (*annotate.Editor, error) {
	s, ok := h.session(c)
	if !ok {
		return nil, errSessionNotFound
	}
	floorID, err := floorParam(c)
	if err != nil {
		return nil, errors.New("invalid floor id")
	}
	return s.Editor(floorID)
}

// FloorLayers отдает локальный список меток этажа
func (h *Handler) FloorLayers(c fiber.Ctx) error {
	ed, err := h.editor(c)
	if err != nil {
		return lookupError(c, err)
	}
	return c.JSON(fiber.Map{
		"layers":  ed.Layers(),
		"unsaved": ed.UnsavedCount(),
	})
}

type dropRequest struct {
	X    *float64 `json:"x" validate:"required"`
	Y    *float64 `json:"y" validate:"required"`
	Rect rectBody `json:"rect" validate:"required"`
	Type string   `json:"type" validate:"required"`
}

// DropLayer — «перетащить иконку типа на план»: вне рамки — no-op,
// внутри — оптимистичная вставка и создание на сервере.
func (h *Handler) DropLayer(c fiber.Ctx) error {
	ed, err := h.editor(c)
	if err != nil {
		return lookupError(c, err)
	}
	var req dropRequest
	if err := h.parseBody(c, &req); err != nil {
		return badRequest(c, err)
	}

	sample := annotate.PointerSample{X: *req.X, Y: *req.Y, Phase: annotate.PhaseEnd}
	created, err := ed.DropNew(c.Context(), sample, req.Rect.toRect(), models.ParseLayerType(req.Type))
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":  err.Error(),
			"layers": ed.Layers(),
		})
	}
	if created == nil {
		// Точка вне плана: слой не создан, сеть не тронута
		return c.JSON(fiber.Map{
			"created": false,
			"layers":  ed.Layers(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"created": true,
		"layer":   created,
		"layers":  ed.Layers(),
	})
}

type dragRequest struct {
	X     *float64 `json:"x" validate:"required"`
	Y     *float64 `json:"y" validate:"required"`
	Phase string   `json:"phase" validate:"required,oneof=begin move end"`
	Rect  rectBody `json:"rect" validate:"required"`
}

// DragLayer двигает существующую метку (живой пересчет позиции)
func (h *Handler) DragLayer(c fiber.Ctx) error {
	ed, err := h.editor(c)
	if err != nil {
		return lookupError(c, err)
	}
	var req dragRequest
	if err := h.parseBody(c, &req); err != nil {
		return badRequest(c, err)
	}

	sample := annotate.PointerSample{X: *req.X, Y: *req.Y, Phase: parsePhase(req.Phase)}
	moved := ed.Drag(c.Params("layerId"), sample, req.Rect.toRect())
	return c.JSON(fiber.Map{
		"moved":   moved,
		"layers":  ed.Layers(),
		"unsaved": ed.UnsavedCount(),
	})
}

// DeleteLayer — оптимистичное удаление с восстановлением при отказе
func (h *Handler) DeleteLayer(c fiber.Ctx) error {
	ed, err := h.editor(c)
	if err != nil {
		return lookupError(c, err)
	}
	if err := ed.Delete(c.Context(), c.Params("layerId")); err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error":  err.Error(),
			"layers": ed.Layers(),
		})
	}
	return c.JSON(fiber.Map{"layers": ed.Layers()})
}

// SaveAll сохраняет несохраненное последовательно; частичный успех
// не откатывается и виден в ответе.
func (h *Handler) SaveAll(c fiber.Ctx) error {
	ed, err := h.editor(c)
	if err != nil {
		return lookupError(c, err)
	}

	saveErr := ed.SaveAll(c.Context())
	resp := fiber.Map{
		"layers":  ed.Layers(),
		"unsaved": ed.UnsavedCount(),
	}
	if saveErr != nil {
		resp["error"] = saveErr.Error()
		var agg *annotate.SaveError
		if errors.As(saveErr, &agg) {
			failed := make([]string, 0, len(agg.Failures))
			for _, f := range agg.Failures {
				failed = append(failed, f.LayerID)
			}
			resp["failedLayers"] = failed
		}
	}
	return c.JSON(resp)
}
