package models

import "strings"

// ============================================================
// Layer Types
// ============================================================

// LayerType — категория противопожарного оборудования на плане этажа.
// Закрытое перечисление: незнакомые значения с сервера схлопываются
// в LayerOther, а не остаются открытой строкой.
type LayerType string

const (
	LayerExtinguisher  LayerType = "extinguisher"
	LayerHydrant       LayerType = "hydrant"
	LayerAlarmPanel    LayerType = "alarm_panel"
	LayerSprinkler     LayerType = "sprinkler"
	LayerStandpipe     LayerType = "standpipe"
	LayerEmergencyExit LayerType = "emergency_exit"
	LayerShutter       LayerType = "shutter"
	LayerOther         LayerType = "other"
)

// ParseLayerType приводит строку с сервера к известному типу
func ParseLayerType(s string) LayerType {
	switch LayerType(strings.ToLower(s)) {
	case LayerExtinguisher, LayerHydrant, LayerAlarmPanel, LayerSprinkler,
		LayerStandpipe, LayerEmergencyExit, LayerShutter:
		return LayerType(strings.ToLower(s))
	}
	return LayerOther
}

// Label возвращает подпись для UI
func (t LayerType) Label() string {
	switch t {
	case LayerExtinguisher:
		return "Extinguisher"
	case LayerHydrant:
		return "Hydrant"
	case LayerAlarmPanel:
		return "Alarm panel"
	case LayerSprinkler:
		return "Sprinkler"
	case LayerStandpipe:
		return "Standpipe"
	case LayerEmergencyExit:
		return "Emergency exit"
	case LayerShutter:
		return "Fire shutter"
	}
	return "Other"
}

// ============================================================
// Layer
// ============================================================

// TempIDPrefix помечает слой, еще не подтвержденный сервером
const TempIDPrefix = "temp_"

type Layer struct {
	ID              string    `json:"id"`
	Type            LayerType `json:"type"`
	PosX            float64   `json:"posX"`
	PosY            float64   `json:"posY"`
	Note            string    `json:"note,omitempty"`
	PictureURL      string    `json:"pictureUrl,omitempty"`
	PictureThumbURL string    `json:"pictureThumbUrl,omitempty"`
	RotationDeg     float64   `json:"rotationDeg,omitempty"`
}

// IsTemp — слой существует только локально (оптимистичная вставка)
func (l Layer) IsTemp() bool {
	return strings.HasPrefix(l.ID, TempIDPrefix)
}

// ============================================================
// Floor
// ============================================================

type Floor struct {
	ID           int64     `json:"id"`
	Number       int       `json:"number"`
	IsHalf       bool      `json:"isHalf"`
	IsSite       bool      `json:"isSite"`
	PlotURL      string    `json:"plotUrl,omitempty"`
	PlotThumbURL string    `json:"plotThumbUrl,omitempty"`
	Application  string    `json:"application,omitempty"`
	Layers       []Layer   `json:"layers"`
}

// ============================================================
// Building
// ============================================================

type Building struct {
	ID               int64   `json:"id"`
	ProjectName      string  `json:"projectName"`
	RenovationCode   string  `json:"renovationCode"`
	Address          string  `json:"address,omitempty"`
	AboveFloorCount  int     `json:"aboveFloorCount"`
	UnderFloorCount  int     `json:"underFloorCount"`
	Floors           []Floor `json:"floors"`
}

// FloorByID возвращает этаж по id, либо nil
func (b *Building) FloorByID(id int64) *Floor {
	for i := range b.Floors {
		if b.Floors[i].ID == id {
			return &b.Floors[i]
		}
	}
	return nil
}

// SiteFloor возвращает план участка (site), либо nil
func (b *Building) SiteFloor() *Floor {
	for i := range b.Floors {
		if b.Floors[i].IsSite {
			return &b.Floors[i]
		}
	}
	return nil
}
