package selection

import (
	"sync"

	"inspection-map/internal/mapsvc/models"
)

// ============================================================
// Building Detail Cache
// ============================================================

// BuildingCache — кеш карточек зданий по коду реновации.
// Не ограничен по размеру: зданий на устройство единицы.
// Повторный фетч заменяет запись целиком, частичных слияний нет.
type BuildingCache struct {
	mu     sync.RWMutex
	byCode map[string]*models.Building
}

func NewBuildingCache() *BuildingCache {
	return &BuildingCache{byCode: make(map[string]*models.Building)}
}

func (c *BuildingCache) Get(renovationCode string) *models.Building {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.byCode[renovationCode]
}

func (c *BuildingCache) Put(renovationCode string, building *models.Building) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byCode[renovationCode] = building
}

// Invalidate убирает запись (после мутаций слоев этажа)
func (c *BuildingCache) Invalidate(renovationCode string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byCode, renovationCode)
}
