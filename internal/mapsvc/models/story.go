package models

import "fmt"

// ============================================================
// Story
// ============================================================

// StoryCategory — категория сегмента здания в ключе истории
type StoryCategory string

const (
	CategorySite  StoryCategory = "site"
	CategorySub   StoryCategory = "sub"
	CategoryAbove StoryCategory = "above"
)

// Story — один выдавленный вертикальный сегмент здания в 3D-сцене.
// Материализуется из геометрии при каждом клике и нигде не хранится.
type Story struct {
	BuildingID        int64   `json:"buildingId"`
	ProjectName       string  `json:"projectName"`
	RenovationCode    string  `json:"renovationCode"`
	StoryIndex        int     `json:"storyIndex"`
	StoryCount        int     `json:"storyCount"`
	Height            float64 `json:"height"`
	BaseHeight        float64 `json:"baseHeight"`
	DisplayHeight     float64 `json:"displayHeight"`
	DisplayBaseHeight float64 `json:"displayBaseHeight"`
	FloorNumber       *int    `json:"floorNumber,omitempty"`
	IsUnderground     bool    `json:"isUnderground"`
	IsSite            bool    `json:"isSite"`
	StoryKey          string  `json:"storyKey"`
}

// Category определяется флагами сегмента
func (s *Story) Category() StoryCategory {
	switch {
	case s.IsSite:
		return CategorySite
	case s.IsUnderground:
		return CategorySub
	}
	return CategoryAbove
}

// MakeStoryKey собирает ключ вида "{buildingId}:{site|sub|above}:{number}".
// На каждую категорию ровно один формат ключа.
func MakeStoryKey(buildingID int64, category StoryCategory, number int) string {
	return fmt.Sprintf("%d:%s:%d", buildingID, category, number)
}
