package annotate

import (
	"context"
	"io"
	"sync"

	"inspection-map/internal/mapsvc/models"
	"inspection-map/internal/upstream"

	"github.com/sirupsen/logrus"
)

// ============================================================
// Add-Layer Workflow States
// ============================================================

// State — закрытое размеченное объединение шагов мастера добавления
// метки. Набор вариантов фиксирован, свободных булевых флагов нет.
type State interface {
	workflowState()
	Name() string
}

type Hidden struct{}

type SelectingType struct{}

type Positioning struct {
	Type models.LayerType
}

type AddingImage struct {
	Type models.LayerType
	PosX float64
	PosY float64
}

type AddingNotes struct {
	Type            models.LayerType
	PosX            float64
	PosY            float64
	PictureURL      string
	PictureThumbURL string
	Note            string
}

type Submitting struct{}

type Failed struct {
	Message string
}

func (Hidden) workflowState()        {}
func (SelectingType) workflowState() {}
func (Positioning) workflowState()   {}
func (AddingImage) workflowState()   {}
func (AddingNotes) workflowState()   {}
func (Submitting) workflowState()    {}
func (Failed) workflowState()        {}

func (Hidden) Name() string        { return "hidden" }
func (SelectingType) Name() string { return "selecting_type" }
func (Positioning) Name() string   { return "positioning" }
func (AddingImage) Name() string   { return "adding_image" }
func (AddingNotes) Name() string   { return "adding_notes" }
func (Submitting) Name() string    { return "submitting" }
func (Failed) Name() string        { return "error" }

// ============================================================
// Layer Annotation State Machine
// ============================================================

// Machine ведет один мастер добавления метки на этаж. После успеха
// возвращается в Hidden через полный рефреш этажа; машина рассчитана
// на многократный повторный вход в течение сессии.
type Machine struct {
	mu      sync.Mutex
	state   State
	floorID int64
	layers  upstream.LayerAPI
	uploads upstream.UploadAPI
	refresh func(ctx context.Context) error
	log     *logrus.Entry

	// Поколение мастера: отмена обесценивает висящие загрузку/сабмит,
	// поздний ответ закрытому мастеру игнорируется.
	gen uint64
}

func NewMachine(floorID int64, layers upstream.LayerAPI, uploads upstream.UploadAPI,
	refresh func(ctx context.Context) error, log *logrus.Entry) *Machine {
	return &Machine{
		state:   Hidden{},
		floorID: floorID,
		layers:  layers,
		uploads: uploads,
		refresh: refresh,
		log:     log,
	}
}

func (m *Machine) FloorID() int64 {
	return m.floorID
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Open: HIDDEN → SELECTING_TYPE
func (m *Machine) Open() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.(Hidden); ok {
		m.state = SelectingType{}
	}
	return m.state
}

// PickType: SELECTING_TYPE → POSITIONING
func (m *Machine) PickType(t models.LayerType) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.(SelectingType); ok {
		m.state = Positioning{Type: t}
	}
	return m.state
}

// Place: POSITIONING → ADDING_IMAGE при точке внутри рамки плана.
// Точка вне рамки отклоняется без перехода.
func (m *Machine) Place(s PointerSample, rect Rect) State {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.state.(Positioning)
	if !ok {
		return m.state
	}
	if !rect.Contains(s.X, s.Y) {
		return m.state
	}
	posX, posY := rect.Normalize(s.X, s.Y)
	m.state = AddingImage{Type: pos.Type, PosX: posX, PosY: posY}
	return m.state
}

// AttachImage: ADDING_IMAGE → ADDING_NOTES при успешной загрузке,
// иначе → ERROR. Лок не держится на время сетевого вызова.
func (m *Machine) AttachImage(ctx context.Context, filename string, r io.Reader) State {
	m.mu.Lock()
	img, ok := m.state.(AddingImage)
	if !ok {
		state := m.state
		m.mu.Unlock()
		return state
	}
	gen := m.gen
	m.mu.Unlock()

	result, err := m.uploads.UploadPicture(ctx, filename, r)

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		// Мастер закрыли, пока файл летел
		return m.state
	}
	if _, still := m.state.(AddingImage); !still {
		return m.state
	}
	if err != nil {
		m.log.Warnf("upload picture: %v", err)
		m.state = Failed{Message: err.Error()}
		return m.state
	}
	m.state = AddingNotes{
		Type:            img.Type,
		PosX:            img.PosX,
		PosY:            img.PosY,
		PictureURL:      result.URL,
		PictureThumbURL: result.ThumbURL,
	}
	return m.state
}

// SkipImage: ADDING_IMAGE → ADDING_NOTES без фотографии
func (m *Machine) SkipImage() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if img, ok := m.state.(AddingImage); ok {
		m.state = AddingNotes{Type: img.Type, PosX: img.PosX, PosY: img.PosY}
	}
	return m.state
}

// SetNote обновляет черновик заметки на шаге ADDING_NOTES
func (m *Machine) SetNote(note string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if notes, ok := m.state.(AddingNotes); ok {
		notes.Note = note
		m.state = notes
	}
	return m.state
}

// Submit: ADDING_NOTES → SUBMIT → (рефреш) HIDDEN, либо ERROR.
// Успех завершается полным рефрешем этажа, не локальным аппендом:
// список на экране обязан совпасть с серверным.
func (m *Machine) Submit(ctx context.Context) State {
	m.mu.Lock()
	notes, ok := m.state.(AddingNotes)
	if !ok {
		state := m.state
		m.mu.Unlock()
		return state
	}
	gen := m.gen
	m.state = Submitting{}
	m.mu.Unlock()

	_, err := m.layers.CreateLayer(ctx, m.floorID, upstream.LayerDraft{
		Type:            notes.Type,
		PosX:            notes.PosX,
		PosY:            notes.PosY,
		Note:            notes.Note,
		PictureURL:      notes.PictureURL,
		PictureThumbURL: notes.PictureThumbURL,
	})
	// Отмена во время сабмита отменяет и рефреш: поздний ответ
	// закрытому мастеру игнорируется целиком
	m.mu.Lock()
	if gen != m.gen {
		state := m.state
		m.mu.Unlock()
		return state
	}
	m.mu.Unlock()

	if err == nil && m.refresh != nil {
		if rerr := m.refresh(ctx); rerr != nil {
			m.log.Warnf("refresh after submit: %v", rerr)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return m.state
	}
	if err != nil {
		m.log.Warnf("submit layer on floor %d: %v", m.floorID, err)
		m.state = Failed{Message: err.Error()}
		return m.state
	}
	m.state = Hidden{}
	return m.state
}

// Cancel: из любого шага → HIDDEN. Все данные мастера отбрасываются,
// черновик между отменами не живет.
func (m *Machine) Cancel() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.state = Hidden{}
	return m.state
}

// DismissError: ERROR → HIDDEN. Недособранная метка отбрасывается,
// возобновления после ошибки нет.
func (m *Machine) DismissError() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.state.(Failed); ok {
		m.gen++
		m.state = Hidden{}
	}
	return m.state
}
