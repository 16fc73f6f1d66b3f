package selection

import (
	"context"
	"sort"
	"sync"

	"inspection-map/internal/mapsvc/geoindex"
	"inspection-map/internal/mapsvc/models"
	"inspection-map/internal/upstream"

	"github.com/paulmach/orb"
	"github.com/sirupsen/logrus"
)

// ============================================================
// Selection Controller
// ============================================================

// SnapshotStore — локальный советующий кеш карточек зданий.
// Чтение из него никогда не заменяет успешный сетевой рефреш.
type SnapshotStore interface {
	GetBuilding(ctx context.Context, renovationCode string) (*models.Building, error)
	PutBuilding(ctx context.Context, renovationCode string, b *models.Building) error
}

// Snapshot — состояние выбора, отдаваемое клиенту
type Snapshot struct {
	Story            *models.Story    `json:"story,omitempty"`
	Building         *models.Building `json:"building,omitempty"`
	Floor            *models.Floor    `json:"floor,omitempty"`
	FloorID          *int64           `json:"floorId,omitempty"`
	LayerID          string           `json:"layerId,omitempty"`
	Hidden           []string         `json:"hidden"`
	Loading          bool             `json:"loading"`
	AuthRequired     bool             `json:"authRequired"`
	PermissionDenied bool             `json:"permissionDenied"`
	FetchError       string           `json:"fetchError,omitempty"`
}

// ExternalSelection — выбор, навязанный родителем (например, из списка
// результатов поиска). Заданные поля перезаписывают внутреннее состояние,
// незаданные никогда его не сбрасывают.
type ExternalSelection struct {
	StoryKey       *string
	RenovationCode *string
	FloorID        *int64
}

// Controller владеет текущим выбором (сегмент, здание, этаж, слой)
// и рулит подсветкой карты. Все мутации сериализованы мьютексом —
// аналог однопоточного цикла событий на устройстве.
type Controller struct {
	mu        sync.Mutex
	index     *geoindex.Index
	resolver  Resolver
	cache     *BuildingCache
	buildings upstream.BuildingAPI
	port      MapPort
	snapshots SnapshotStore // может быть nil
	log       *logrus.Entry

	story            *models.Story
	building         *models.Building
	floorID          *int64
	layerID          string
	hidden           map[string]bool
	loading          bool
	authRequired     bool
	permissionDenied bool
	fetchErr         string

	// Счетчик поколений фетча: новый клик всегда вытесняет
	// висящий запрос предыдущего выбора. fetchCode — код реновации,
	// который этот висящий запрос должен применить.
	fetchGen  uint64
	fetchCode string
}

func NewController(index *geoindex.Index, resolver Resolver, cache *BuildingCache,
	buildings upstream.BuildingAPI, port MapPort, snapshots SnapshotStore, log *logrus.Entry) *Controller {
	return &Controller{
		index:     index,
		resolver:  resolver,
		cache:     cache,
		buildings: buildings,
		port:      port,
		snapshots: snapshots,
		log:       log,
		hidden:    make(map[string]bool),
	}
}

// ------------------------------------------------------------
// Клик по карте
// ------------------------------------------------------------

// OnMapClick разрешает точку в сегмент и запускает загрузку здания.
// Пустое место — полное закрытие выбора.
func (c *Controller) OnMapClick(pt orb.Point) Snapshot {
	c.mu.Lock()

	story, ok := c.index.QueryRenderedPoint(pt, c.hidden)
	if !ok {
		c.closeLocked()
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap
	}

	c.layerID = ""
	c.floorID = nil
	c.authRequired = false
	c.permissionDenied = false
	c.fetchErr = ""
	c.story = story
	c.port.SetHighlight(story.StoryKey)

	snap := c.loadBuildingLocked(story.RenovationCode)
	c.mu.Unlock()
	return snap
}

// loadBuildingLocked: попадание в кеш не трогает сеть и флаг загрузки;
// промах ставит loading и уходит в фоновый фетч.
func (c *Controller) loadBuildingLocked(code string) Snapshot {
	c.fetchGen++

	if cached := c.cache.Get(code); cached != nil {
		c.loading = false
		c.building = cached
		c.syncFloorLocked()
		return c.snapshotLocked()
	}

	c.building = nil
	c.loading = true
	c.fetchCode = code
	go c.fetchBuilding(c.fetchGen, code)
	return c.snapshotLocked()
}

func (c *Controller) fetchBuilding(gen uint64, code string) {
	ctx := context.Background()
	building, err := c.buildings.GetBuilding(ctx, code)

	c.mu.Lock()
	defer c.mu.Unlock()

	// Защита от устаревшего ответа: медленный первый фетч не должен
	// перетереть более быстрый второй выбор. Сверяемся с кодом
	// висящего запроса, а не с выбранным сегментом: внешний выбор
	// может прийти одним кодом при чужом выбранном сегменте.
	if gen != c.fetchGen || code != c.fetchCode {
		c.log.Debugf("stale building fetch ignored: %s", code)
		return
	}

	c.loading = false
	if err != nil {
		c.applyFetchErrorLocked(ctx, code, err)
		return
	}

	// Сначала кеш, потом состояние: второй клик в том же кадре
	// уже не проскочит мимо кеша.
	c.cache.Put(code, building)
	if c.snapshots != nil {
		if serr := c.snapshots.PutBuilding(ctx, code, building); serr != nil {
			c.log.Warnf("snapshot write %s: %v", code, serr)
		}
	}
	c.building = building
	c.syncFloorLocked()
}

func (c *Controller) applyFetchErrorLocked(ctx context.Context, code string, err error) {
	switch {
	case upstream.IsUnauthorized(err):
		c.authRequired = true
	case upstream.IsForbidden(err):
		c.permissionDenied = true
	default:
		c.fetchErr = err.Error()
		// Советующий кеш: показать последний известный снапшот,
		// флаг ошибки при этом остается для повтора.
		if c.snapshots != nil {
			if cached, serr := c.snapshots.GetBuilding(ctx, code); serr == nil && cached != nil {
				c.building = cached
				c.syncFloorLocked()
			}
		}
	}
	c.log.Warnf("building fetch %s: %v", code, err)
}

// Retry повторяет фетч той же карточки после ошибки
func (c *Controller) Retry() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.story == nil {
		return c.snapshotLocked()
	}
	c.authRequired = false
	c.permissionDenied = false
	c.fetchErr = ""
	c.cache.Invalidate(c.story.RenovationCode)
	return c.loadBuildingLocked(c.story.RenovationCode)
}

// RefreshBuilding синхронно перечитывает текущее здание (после мутаций
// слоев: список на экране обязан совпасть с серверным).
func (c *Controller) RefreshBuilding(ctx context.Context) error {
	c.mu.Lock()
	story := c.story
	c.mu.Unlock()
	if story == nil {
		return nil
	}

	building, err := c.buildings.GetBuilding(ctx, story.RenovationCode)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchGen++
	c.cache.Put(story.RenovationCode, building)
	if c.snapshots != nil {
		if serr := c.snapshots.PutBuilding(ctx, story.RenovationCode, building); serr != nil {
			c.log.Warnf("snapshot write %s: %v", story.RenovationCode, serr)
		}
	}
	if c.story != nil && c.story.RenovationCode == story.RenovationCode {
		c.building = building
		c.syncFloorLocked()
	}
	return nil
}

// ------------------------------------------------------------
// Этаж и слой
// ------------------------------------------------------------

// SelectFloor — ручной выбор вкладки этажа (наивысший приоритет
// в резолвере). Единственный путь показать полуэтаж.
func (c *Controller) SelectFloor(floorID int64) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.floorID = &floorID
	c.layerID = ""
	c.syncFloorLocked()
	return c.snapshotLocked()
}

func (c *Controller) SelectLayer(layerID string) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.layerID = layerID
	return c.snapshotLocked()
}

// syncFloorLocked — односторонняя синхронизация: результат резолвера
// пишется в явный floorID, но никогда наоборот (иначе цикл обновлений).
func (c *Controller) syncFloorLocked() {
	resolved := c.resolver.Resolve(c.building, c.story, c.floorID)
	if resolved == nil {
		c.floorID = nil
		return
	}
	id := resolved.ID
	c.floorID = &id
}

// ------------------------------------------------------------
// Видимость сегментов
// ------------------------------------------------------------

func (c *Controller) HideStory(key string) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hidden[key] = true
	c.applyVisibilityLocked()
	return c.snapshotLocked()
}

func (c *Controller) UnhideStory(key string) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.hidden, key)
	c.applyVisibilityLocked()
	return c.snapshotLocked()
}

func (c *Controller) ResetHidden() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hidden = make(map[string]bool)
	c.applyVisibilityLocked()
	return c.snapshotLocked()
}

func (c *Controller) applyVisibilityLocked() {
	c.port.SetStoryVisibility(c.hiddenKeysLocked())
	// Скрытый сегмент подсвечивать нельзя
	if c.story != nil {
		if c.hidden[c.story.StoryKey] {
			c.port.ClearHighlight()
		} else {
			c.port.SetHighlight(c.story.StoryKey)
		}
	}
}

// ------------------------------------------------------------
// Камера
// ------------------------------------------------------------

// FitToSelection кадрирует выбранное здание, иначе все видимые
// сегменты, иначе сбрасывает камеру.
func (c *Controller) FitToSelection() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.story != nil {
		if b, ok := c.index.BuildingBounds(c.story.BuildingID, c.hidden); ok {
			c.port.FitBounds(b)
			return c.snapshotLocked()
		}
	}
	if b, ok := c.index.VisibleBounds(c.hidden); ok {
		c.port.FitBounds(b)
		return c.snapshotLocked()
	}
	c.port.ResetCamera()
	return c.snapshotLocked()
}

// ------------------------------------------------------------
// Закрытие и внешний выбор
// ------------------------------------------------------------

// CloseSelection чистит весь выбор атомарно: частичное закрытие —
// нарушение инварианта.
func (c *Controller) CloseSelection() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeLocked()
	return c.snapshotLocked()
}

func (c *Controller) closeLocked() {
	c.story = nil
	c.building = nil
	c.floorID = nil
	c.layerID = ""
	c.loading = false
	c.authRequired = false
	c.permissionDenied = false
	c.fetchErr = ""
	c.fetchGen++ // висящие фетчи больше не применятся
	c.port.ClearHighlight()
}

// ApplyExternalSelection перезаписывает состояние значениями родителя.
// Сегмент регидрируется из source-геометрии по ключу, независимо от
// текущих фильтров отрисовки.
func (c *Controller) ApplyExternalSelection(ext ExternalSelection) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ext.StoryKey != nil {
		if story, ok := c.index.SourceByStoryKey(*ext.StoryKey); ok {
			c.story = story
			c.port.SetHighlight(story.StoryKey)
		}
	}
	if ext.FloorID != nil {
		c.floorID = ext.FloorID
	}
	if ext.RenovationCode != nil {
		snap := c.loadBuildingLocked(*ext.RenovationCode)
		return snap
	}
	c.syncFloorLocked()
	return c.snapshotLocked()
}

// ------------------------------------------------------------
// Снимок состояния
// ------------------------------------------------------------

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// ResolvedFloor — этаж, который сейчас должен рисоваться
func (c *Controller) ResolvedFloor() *models.Floor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolver.Resolve(c.building, c.story, c.floorID)
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Story:            c.story,
		Building:         c.building,
		Floor:            c.resolver.Resolve(c.building, c.story, c.floorID),
		FloorID:          c.floorID,
		LayerID:          c.layerID,
		Hidden:           c.hiddenKeysLocked(),
		Loading:          c.loading,
		AuthRequired:     c.authRequired,
		PermissionDenied: c.permissionDenied,
		FetchError:       c.fetchErr,
	}
}

func (c *Controller) hiddenKeysLocked() []string {
	keys := make([]string, 0, len(c.hidden))
	for k := range c.hidden {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
