package geoindex

import (
	"sync"

	"inspection-map/internal/mapsvc/models"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// ============================================================
// Geometry Feature Index
// ============================================================

// boundsMarginPerMeter — во сколько градусов расширяется рамка
// на метр высоты самого высокого сегмента при кадрировании.
const boundsMarginPerMeter = 0.000012

// Index — индекс по 3D-геометрии зданий (одна feature на сегмент).
// Сегменты без story_key (полуэтажи) никогда не возвращаются
// точечными запросами.
type Index struct {
	mu       sync.RWMutex
	features []*geojson.Feature
}

func New() *Index {
	return &Index{}
}

// Replace заменяет весь набор features (после рефреша /buildings/3d)
func (x *Index) Replace(fc *geojson.FeatureCollection) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if fc == nil {
		x.features = nil
		return
	}
	x.features = fc.Features
}

func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.features)
}

// ParseStory извлекает атрибуты сегмента из feature.
// Возвращает false, если у feature нет разрешимого story_key.
func ParseStory(f *geojson.Feature) (*models.Story, bool) {
	if f == nil {
		return nil, false
	}
	props := f.Properties

	key := stringProp(props, "story_key")
	if key == "" {
		return nil, false
	}

	buildingID, ok := int64Prop(props, "building_id")
	if !ok {
		return nil, false
	}

	story := &models.Story{
		BuildingID:     buildingID,
		ProjectName:    stringProp(props, "project_name"),
		RenovationCode: stringProp(props, "renovation_code"),
		IsUnderground:  boolProp(props, "is_underground"),
		IsSite:         boolProp(props, "is_site"),
		StoryKey:       key,
	}
	story.StoryIndex, _ = intProp(props, "story_index")
	story.StoryCount, _ = intProp(props, "story_count")
	story.Height, _ = floatProp(props, "height")
	story.BaseHeight, _ = floatProp(props, "base_height")

	if v, ok := floatProp(props, "display_height"); ok {
		story.DisplayHeight = v
	} else {
		story.DisplayHeight = story.Height
	}
	if v, ok := floatProp(props, "display_base_height"); ok {
		story.DisplayBaseHeight = v
	} else {
		story.DisplayBaseHeight = story.BaseHeight
	}
	if n, ok := intProp(props, "floor_number"); ok {
		story.FloorNumber = &n
	}

	return story, true
}

// QueryRenderedPoint возвращает верхний видимый сегмент под точкой.
// Скрытые ключи отфильтровываются, как и на карте.
func (x *Index) QueryRenderedPoint(pt orb.Point, hidden map[string]bool) (*models.Story, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var best *models.Story
	for _, f := range x.features {
		story, ok := ParseStory(f)
		if !ok {
			continue
		}
		if hidden[story.StoryKey] {
			continue
		}
		if !contains(f.Geometry, pt) {
			continue
		}
		if best == nil || story.DisplayBaseHeight > best.DisplayBaseHeight {
			best = story
		}
	}
	return best, best != nil
}

// SourceByStoryKey возвращает первый source-сегмент с данным ключом,
// независимо от текущих фильтров видимости.
func (x *Index) SourceByStoryKey(key string) (*models.Story, bool) {
	if key == "" {
		return nil, false
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	for _, f := range x.features {
		if stringProp(f.Properties, "story_key") != key {
			continue
		}
		if story, ok := ParseStory(f); ok {
			return story, true
		}
	}
	return nil, false
}

// BuildingBounds — рамка всех видимых сегментов одного здания,
// расширенная пропорционально высоте самого высокого сегмента.
func (x *Index) BuildingBounds(buildingID int64, hidden map[string]bool) (orb.Bound, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var bound orb.Bound
	var tallest float64
	found := false

	for _, f := range x.features {
		story, ok := ParseStory(f)
		if !ok || story.BuildingID != buildingID {
			continue
		}
		if hidden[story.StoryKey] {
			continue
		}
		fb := f.Geometry.Bound()
		if !found {
			bound = fb
			found = true
		} else {
			bound = bound.Union(fb)
		}
		if story.Height > tallest {
			tallest = story.Height
		}
	}
	if !found {
		return orb.Bound{}, false
	}
	return bound.Pad(tallest * boundsMarginPerMeter), true
}

// VisibleBounds — рамка всех не скрытых сегментов
func (x *Index) VisibleBounds(hidden map[string]bool) (orb.Bound, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	var bound orb.Bound
	found := false

	for _, f := range x.features {
		story, ok := ParseStory(f)
		if !ok || hidden[story.StoryKey] {
			continue
		}
		fb := f.Geometry.Bound()
		if !found {
			bound = fb
			found = true
		} else {
			bound = bound.Union(fb)
		}
	}
	return bound, found
}

func contains(geom orb.Geometry, pt orb.Point) bool {
	switch g := geom.(type) {
	case orb.Polygon:
		return planar.PolygonContains(g, pt)
	case orb.MultiPolygon:
		return planar.MultiPolygonContains(g, pt)
	case nil:
		return false
	}
	return geom.Bound().Contains(pt)
}
