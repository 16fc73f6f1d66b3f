package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"inspection-map/internal/mapsvc/annotate"
	"inspection-map/internal/mapsvc/models"
)

// ============================================================
// Add-Layer Workflow Handlers
// ============================================================

func (h *Handler) machine(c fiber.Ctx) (*annotate.Machine, error) {
	s, ok := h.session(c)
	if !ok {
		return nil, errSessionNotFound
	}
	floorID, err := floorParam(c)
	if err != nil {
		return nil, errors.New("invalid floor id")
	}
	return s.Machine(floorID), nil
}

// describeState сериализует вариант мастера с его полезной нагрузкой
func describeState(state annotate.State) fiber.Map {
	out := fiber.Map{"state": state.Name()}
	switch s := state.(type) {
	case annotate.Positioning:
		out["type"] = s.Type
	case annotate.AddingImage:
		out["type"] = s.Type
		out["posX"] = s.PosX
		out["posY"] = s.PosY
	case annotate.AddingNotes:
		out["type"] = s.Type
		out["posX"] = s.PosX
		out["posY"] = s.PosY
		if s.PictureURL != "" {
			out["pictureUrl"] = s.PictureURL
			out["pictureThumbUrl"] = s.PictureThumbURL
		}
		out["note"] = s.Note
	case annotate.Failed:
		out["message"] = s.Message
	}
	return out
}

func respondWorkflow(c fiber.Ctx, state annotate.State) error {
	return c.JSON(describeState(state))
}

// WorkflowOpen: HIDDEN → SELECTING_TYPE
func (h *Handler) WorkflowOpen(c fiber.Ctx) error {
	m, err := h.machine(c)
	if err != nil {
		return lookupError(c, err)
	}
	return respondWorkflow(c, m.Open())
}

type pickTypeRequest struct {
	Type string `json:"type" validate:"required"`
}

// WorkflowPickType: SELECTING_TYPE → POSITIONING
func (h *Handler) WorkflowPickType(c fiber.Ctx) error {
	m, err := h.machine(c)
	if err != nil {
		return lookupError(c, err)
	}
	var req pickTypeRequest
	if err := h.parseBody(c, &req); err != nil {
		return badRequest(c, err)
	}
	return respondWorkflow(c, m.PickType(models.ParseLayerType(req.Type)))
}

type placeRequest struct {
	X    *float64 `json:"x" validate:"required"`
	Y    *float64 `json:"y" validate:"required"`
	Rect rectBody `json:"rect" validate:"required"`
}

// WorkflowPlace: POSITIONING → ADDING_IMAGE (точка вне рамки — отказ)
func (h *Handler) WorkflowPlace(c fiber.Ctx) error {
	m, err := h.machine(c)
	if err != nil {
		return lookupError(c, err)
	}
	var req placeRequest
	if err := h.parseBody(c, &req); err != nil {
		return badRequest(c, err)
	}
	sample := annotate.PointerSample{X: *req.X, Y: *req.Y, Phase: annotate.PhaseEnd}
	return respondWorkflow(c, m.Place(sample, req.Rect.toRect()))
}

// WorkflowAttachPicture: ADDING_IMAGE → ADDING_NOTES | ERROR
func (h *Handler) WorkflowAttachPicture(c fiber.Ctx) error {
	m, err := h.machine(c)
	if err != nil {
		return lookupError(c, err)
	}

	file, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, errors.New("file required in multipart/form-data"))
	}
	f, err := file.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to open file"})
	}
	defer f.Close()

	return respondWorkflow(c, m.AttachImage(c.Context(), file.Filename, f))
}

// WorkflowSkipPicture: ADDING_IMAGE → ADDING_NOTES без фото
func (h *Handler) WorkflowSkipPicture(c fiber.Ctx) error {
	m, err := h.machine(c)
	if err != nil {
		return lookupError(c, err)
	}
	return respondWorkflow(c, m.SkipImage())
}

type noteRequest struct {
	Note string `json:"note"`
}

// WorkflowNote обновляет заметку на шаге ADDING_NOTES
func (h *Handler) WorkflowNote(c fiber.Ctx) error {
	m, err := h.machine(c)
	if err != nil {
		return lookupError(c, err)
	}
	var req noteRequest
	if err := h.parseBody(c, &req); err != nil {
		return badRequest(c, err)
	}
	return respondWorkflow(c, m.SetNote(req.Note))
}

// WorkflowSubmit: ADDING_NOTES → SUBMIT → HIDDEN | ERROR
func (h *Handler) WorkflowSubmit(c fiber.Ctx) error {
	m, err := h.machine(c)
	if err != nil {
		return lookupError(c, err)
	}
	return respondWorkflow(c, m.Submit(c.Context()))
}

// WorkflowCancel: любой шаг → HIDDEN, данные отбрасываются
func (h *Handler) WorkflowCancel(c fiber.Ctx) error {
	m, err := h.machine(c)
	if err != nil {
		return lookupError(c, err)
	}
	return respondWorkflow(c, m.Cancel())
}

// WorkflowDismissError: ERROR → HIDDEN
func (h *Handler) WorkflowDismissError(c fiber.Ctx) error {
	m, err := h.machine(c)
	if err != nil {
		return lookupError(c, err)
	}
	return respondWorkflow(c, m.DismissError())
}
