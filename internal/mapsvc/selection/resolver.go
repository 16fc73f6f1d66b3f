package selection

import "inspection-map/internal/mapsvc/models"

// ============================================================
// Story/Floor Resolver
// ============================================================

// Resolver — чистое отображение сегмента здания на этаж.
// FallbackOffset вычитается из storyIndex, когда floor_number
// не пришел из геометрии (FLOOR_FALLBACK_OFFSET, по умолчанию 1).
type Resolver struct {
	FallbackOffset int
}

func NewResolver(fallbackOffset int) Resolver {
	if fallbackOffset <= 0 {
		fallbackOffset = 1
	}
	return Resolver{FallbackOffset: fallbackOffset}
}

// Resolve возвращает этаж для показа, либо nil.
// Приоритет: явный floorId → участок (site) → совпадение номера.
func (r Resolver) Resolve(building *models.Building, story *models.Story, explicitFloorID *int64) *models.Floor {
	if building == nil {
		return nil
	}
	if explicitFloorID != nil {
		return building.FloorByID(*explicitFloorID)
	}
	if story == nil {
		return nil
	}
	if story.IsSite {
		return building.SiteFloor()
	}

	target := story.StoryIndex - r.FallbackOffset
	if story.FloorNumber != nil {
		target = *story.FloorNumber
	}
	for i := range building.Floors {
		f := &building.Floors[i]
		if !f.IsHalf && !f.IsSite && f.Number == target {
			return f
		}
	}
	return nil
}
