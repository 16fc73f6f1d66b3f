package annotate

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"inspection-map/internal/mapsvc/models"
	"inspection-map/internal/upstream"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ============================================================
// Pointer Abstraction
// ============================================================

// Phase — фаза жеста. Touch и мышь сводятся к одному пути кода:
// адаптеры платформы живут на границе, не здесь.
type Phase int

const (
	PhaseBegin Phase = iota
	PhaseMove
	PhaseEnd
)

// PointerSample — одна точка жеста в абсолютных экранных координатах
type PointerSample struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Phase Phase   `json:"phase"`
}

// Rect — рамка изображения плана в тех же координатах, что и жест
type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (r Rect) Contains(x, y float64) bool {
	if r.Width <= 0 || r.Height <= 0 {
		return false
	}
	return x >= r.Left && x <= r.Left+r.Width && y >= r.Top && y <= r.Top+r.Height
}

// Normalize переводит точку внутри рамки в координаты плана [0,1]
func (r Rect) Normalize(x, y float64) (float64, float64) {
	return (x - r.Left) / r.Width, (y - r.Top) / r.Height
}

// ============================================================
// Drag-Placement & Persistence Engine
// ============================================================

// LayerFailure — ошибка сохранения одного слоя в save-all
type LayerFailure struct {
	LayerID string
	Err     error
}

// SaveError агрегирует ошибки save-all; успевшие сохраниться слои
// не откатываются — частичный успех виден пользователю.
type SaveError struct {
	Failures []LayerFailure
}

func (e *SaveError) Error() string {
	ids := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		ids = append(ids, f.LayerID)
	}
	return fmt.Sprintf("save-all: %d layer(s) failed: %s", len(e.Failures), strings.Join(ids, ", "))
}

// Editor — быстрый инлайн-редактор меток одного этажа: drop-to-add,
// живое перетаскивание, отложенное массовое сохранение.
type Editor struct {
	mu      sync.Mutex
	floorID int64
	layers  []models.Layer
	dirty   map[string]bool // сдвинутые, но не сохраненные серверные слои
	dragID  string
	api     upstream.LayerAPI
	log     *logrus.Entry
}

func NewEditor(floorID int64, seed []models.Layer, api upstream.LayerAPI, log *logrus.Entry) *Editor {
	layers := make([]models.Layer, len(seed))
	copy(layers, seed)
	return &Editor{
		floorID: floorID,
		layers:  layers,
		dirty:   make(map[string]bool),
		api:     api,
		log:     log,
	}
}

func (e *Editor) FloorID() int64 {
	return e.floorID
}

// Layers возвращает копию локального списка
func (e *Editor) Layers() []models.Layer {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Layer, len(e.layers))
	copy(out, e.layers)
	return out
}

// Reseed заменяет локальный список серверным (после рефреша этажа)
func (e *Editor) Reseed(seed []models.Layer) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.layers = make([]models.Layer, len(seed))
	copy(e.layers, seed)
	e.dirty = make(map[string]bool)
	e.dragID = ""
}

// ------------------------------------------------------------
// Drop-to-add
// ------------------------------------------------------------

// DropNew обрабатывает конец жеста «перетащить иконку типа на план».
// Точка вне рамки — отказ без создания слоя и без похода в сеть.
// Внутри — оптимистичная вставка с временным id, затем создание на
// сервере с подменой id на месте либо полным откатом.
func (e *Editor) DropNew(ctx context.Context, s PointerSample, rect Rect, layerType models.LayerType) (*models.Layer, error) {
	if s.Phase != PhaseEnd {
		return nil, nil
	}
	if !rect.Contains(s.X, s.Y) {
		return nil, nil
	}
	posX, posY := rect.Normalize(s.X, s.Y)

	tempID := models.TempIDPrefix + uuid.NewString()
	layer := models.Layer{
		ID:   tempID,
		Type: layerType,
		PosX: posX,
		PosY: posY,
	}

	e.mu.Lock()
	e.layers = append(e.layers, layer)
	e.mu.Unlock()

	created, err := e.api.CreateLayer(ctx, e.floorID, upstream.LayerDraft{
		Type: layerType,
		PosX: posX,
		PosY: posY,
	})

	e.mu.Lock()
	defer e.mu.Unlock()

	idx := e.indexOfLocked(tempID)
	if err != nil {
		// Полный откат: частичных состояний не остается
		if idx >= 0 {
			e.layers = append(e.layers[:idx], e.layers[idx+1:]...)
		}
		e.log.Warnf("create layer on floor %d: %v", e.floorID, err)
		return nil, err
	}
	if idx < 0 {
		// Слой удалили, пока создание было в полете
		return created, nil
	}
	// Подмена id на месте: без переупорядочивания и без дублей
	e.layers[idx].ID = created.ID
	result := e.layers[idx]
	return &result, nil
}

// ------------------------------------------------------------
// Перетаскивание существующей метки
// ------------------------------------------------------------

// Drag двигает существующую метку. Позиция пересчитывается на каждом
// move («последний выигрывает»), состояние чисто локальное до save-all.
func (e *Editor) Drag(layerID string, s PointerSample, rect Rect) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch s.Phase {
	case PhaseBegin:
		if e.indexOfLocked(layerID) < 0 {
			return false
		}
		e.dragID = layerID
		return true
	case PhaseMove, PhaseEnd:
		if e.dragID != layerID {
			return false
		}
	}

	idx := e.indexOfLocked(layerID)
	if idx < 0 {
		e.dragID = ""
		return false
	}
	if rect.Contains(s.X, s.Y) {
		posX, posY := rect.Normalize(s.X, s.Y)
		e.layers[idx].PosX = posX
		e.layers[idx].PosY = posY
		if !e.layers[idx].IsTemp() {
			e.dirty[layerID] = true
		}
	}
	if s.Phase == PhaseEnd {
		e.dragID = ""
	}
	return true
}

// ------------------------------------------------------------
// Удаление
// ------------------------------------------------------------

// Delete убирает метку сначала локально; для серверных id затем зовет
// DELETE и при неудаче восстанавливает захваченный список — несведенное
// удаление не должно молча потерять метку, живущую на сервере.
func (e *Editor) Delete(ctx context.Context, layerID string) error {
	e.mu.Lock()
	idx := e.indexOfLocked(layerID)
	if idx < 0 {
		e.mu.Unlock()
		return nil
	}
	before := make([]models.Layer, len(e.layers))
	copy(before, e.layers)
	layer := e.layers[idx]
	e.layers = append(e.layers[:idx], e.layers[idx+1:]...)
	e.mu.Unlock()

	if layer.IsTemp() {
		return nil
	}

	if err := e.api.DeleteLayer(ctx, e.floorID, layerID); err != nil {
		e.mu.Lock()
		e.layers = before
		e.mu.Unlock()
		e.log.Warnf("delete layer %s: %v", layerID, err)
		return err
	}

	e.mu.Lock()
	delete(e.dirty, layerID)
	e.mu.Unlock()
	return nil
}

// ------------------------------------------------------------
// Save-all
// ------------------------------------------------------------

// SaveAll последовательно сохраняет несохраненное: POST для временных,
// PATCH для сдвинутых серверных. Отказ одного слоя не прерывает
// остальные и не откатывает уже сохраненные; ошибки агрегируются.
func (e *Editor) SaveAll(ctx context.Context) error {
	e.mu.Lock()
	pending := make([]models.Layer, len(e.layers))
	copy(pending, e.layers)
	dirty := make(map[string]bool, len(e.dirty))
	for k := range e.dirty {
		dirty[k] = true
	}
	e.mu.Unlock()

	var failures []LayerFailure

	for _, layer := range pending {
		switch {
		case layer.IsTemp():
			created, err := e.api.CreateLayer(ctx, e.floorID, upstream.LayerDraft{
				Type:            layer.Type,
				PosX:            layer.PosX,
				PosY:            layer.PosY,
				Note:            layer.Note,
				PictureURL:      layer.PictureURL,
				PictureThumbURL: layer.PictureThumbURL,
			})
			if err != nil {
				failures = append(failures, LayerFailure{LayerID: layer.ID, Err: err})
				continue
			}
			e.mu.Lock()
			if idx := e.indexOfLocked(layer.ID); idx >= 0 {
				e.layers[idx].ID = created.ID
			}
			e.mu.Unlock()

		case dirty[layer.ID]:
			err := e.api.UpdateLayer(ctx, e.floorID, layer.ID, upstream.LayerPatch{
				Type: layer.Type,
				PosX: layer.PosX,
				PosY: layer.PosY,
			})
			if err != nil {
				failures = append(failures, LayerFailure{LayerID: layer.ID, Err: err})
				continue
			}
			e.mu.Lock()
			delete(e.dirty, layer.ID)
			e.mu.Unlock()
		}
	}

	if len(failures) > 0 {
		return &SaveError{Failures: failures}
	}
	return nil
}

// UnsavedCount — сколько меток еще не сведено с сервером
func (e *Editor) UnsavedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.dirty)
	for _, l := range e.layers {
		if l.IsTemp() {
			n++
		}
	}
	return n
}

func (e *Editor) indexOfLocked(layerID string) int {
	for i := range e.layers {
		if e.layers[i].ID == layerID {
			return i
		}
	}
	return -1
}
