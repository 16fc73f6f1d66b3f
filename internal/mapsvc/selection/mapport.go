package selection

import (
	"sync"

	"github.com/paulmach/orb"
)

// ============================================================
// Map Port
// ============================================================

// Идентификаторы слоев экструзии на клиентской карте
const (
	LayerAbove       = "stories-above"
	LayerUnderground = "stories-underground"
	LayerHighlight   = "stories-highlight"
)

// MapPort — то, что контроллер умеет говорить карте. Сама карта живет
// на устройстве; сервис лишь формирует команды setFilter/fitBounds/easeTo.
type MapPort interface {
	SetHighlight(storyKey string)
	ClearHighlight()
	SetStoryVisibility(hidden []string)
	FitBounds(b orb.Bound)
	ResetCamera()
}

// MapCommand — одна команда карте, в форме, которую клиент применяет
// напрямую (фильтры — mapbox-выражения).
type MapCommand struct {
	Op     string    `json:"op"`
	Layer  string    `json:"layer,omitempty"`
	Filter []any     `json:"filter,omitempty"`
	Bounds []float64 `json:"bounds,omitempty"` // [west, south, east, north]
}

// CommandRecorder накапливает команды между запросами сессии
type CommandRecorder struct {
	mu       sync.Mutex
	commands []MapCommand
}

func NewCommandRecorder() *CommandRecorder {
	return &CommandRecorder{}
}

// Drain возвращает накопленные команды и очищает буфер
func (r *CommandRecorder) Drain() []MapCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.commands
	r.commands = nil
	return out
}

func (r *CommandRecorder) push(cmd MapCommand) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, cmd)
}

func (r *CommandRecorder) SetHighlight(storyKey string) {
	r.push(MapCommand{
		Op:     "set_filter",
		Layer:  LayerHighlight,
		Filter: highlightFilter(storyKey),
	})
}

func (r *CommandRecorder) ClearHighlight() {
	r.push(MapCommand{
		Op:     "set_filter",
		Layer:  LayerHighlight,
		Filter: highlightFilter(""),
	})
}

func (r *CommandRecorder) SetStoryVisibility(hidden []string) {
	r.push(MapCommand{
		Op:     "set_filter",
		Layer:  LayerAbove,
		Filter: visibilityFilter(false, hidden),
	})
	r.push(MapCommand{
		Op:     "set_filter",
		Layer:  LayerUnderground,
		Filter: visibilityFilter(true, hidden),
	})
}

func (r *CommandRecorder) FitBounds(b orb.Bound) {
	r.push(MapCommand{
		Op:     "fit_bounds",
		Bounds: []float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]},
	})
}

func (r *CommandRecorder) ResetCamera() {
	r.push(MapCommand{Op: "reset_camera"})
}

// highlightFilter: story_key == key (пустой ключ не совпадает ни с чем)
func highlightFilter(storyKey string) []any {
	return []any{"==", []any{"get", "story_key"}, storyKey}
}

// visibilityFilter: is_underground == X AND story_key NOT IN hidden
func visibilityFilter(underground bool, hidden []string) []any {
	keys := make([]any, 0, len(hidden))
	for _, k := range hidden {
		keys = append(keys, k)
	}
	return []any{
		"all",
		[]any{"==", []any{"get", "is_underground"}, underground},
		[]any{"!", []any{"in", []any{"get", "story_key"}, []any{"literal", keys}}},
	}
}
