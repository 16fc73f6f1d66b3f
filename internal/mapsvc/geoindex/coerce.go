package geoindex

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"
)

// ============================================================
// Attribute Coercion
// ============================================================

// Атрибуты приходят из внешнего геометрического сервиса, числовые
// поля могут оказаться строками или json.Number.

func floatProp(props geojson.Properties, key string) (float64, bool) {
	v, ok := props[key]
	if !ok || v == nil {
		return 0, false
	}
	switch value := v.(type) {
	case float64:
		return value, true
	case float32:
		return float64(value), true
	case int:
		return float64(value), true
	case int64:
		return float64(value), true
	case json.Number:
		f, err := value.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		return f, err == nil
	}
	return 0, false
}

func intProp(props geojson.Properties, key string) (int, bool) {
	f, ok := floatProp(props, key)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func int64Prop(props geojson.Properties, key string) (int64, bool) {
	f, ok := floatProp(props, key)
	if !ok {
		return 0, false
	}
	return int64(f), true
}

func boolProp(props geojson.Properties, key string) bool {
	v, ok := props[key]
	if !ok || v == nil {
		return false
	}
	switch value := v.(type) {
	case bool:
		return value
	case string:
		s := strings.ToLower(strings.TrimSpace(value))
		return s == "true" || s == "1"
	case float64:
		return value != 0
	case int:
		return value != 0
	}
	return false
}

func stringProp(props geojson.Properties, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	switch value := v.(type) {
	case string:
		return value
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case json.Number:
		return value.String()
	}
	return ""
}
