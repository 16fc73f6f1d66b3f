package selection

import (
	"sync"
	"testing"

	"inspection-map/internal/mapsvc/models"

	"github.com/stretchr/testify/assert"
)

func TestBuildingCachePutGetInvalidate(t *testing.T) {
	cache := NewBuildingCache()
	assert.Nil(t, cache.Get("RC-1"))

	b := &models.Building{ID: 1, RenovationCode: "RC-1"}
	cache.Put("RC-1", b)
	assert.Equal(t, b, cache.Get("RC-1"))

	cache.Invalidate("RC-1")
	assert.Nil(t, cache.Get("RC-1"))
}

func TestBuildingCacheConcurrentAccess(t *testing.T) {
	cache := NewBuildingCache()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cache.Put("RC-1", &models.Building{ID: 1})
			cache.Get("RC-1")
			cache.Invalidate("RC-2")
		}()
	}
	wg.Wait()
}
