package config

import (
	"os"
	"strconv"
)

// ============================================================
// Configuration
// ============================================================

type Config struct {
	Port         string
	Environment  string
	ReadTimeout  int
	WriteTimeout int

	// Upstream API
	BuildingAPIURL string
	LayerAPIURL    string
	UploadAPIURL   string

	// Локальный кеш
	CacheDBPath   string
	DraftTTLHours int

	// Сессии
	SessionIdleMinutes int

	// Смещение для вычисления номера этажа, когда floor_number
	// не пришел из геометрии (storyIndex - offset).
	FloorFallbackOffset int
}

// Load загружает конфигурацию из переменных окружения
func Load() *Config {
	return &Config{
		Port:                getEnv("PORT", "3000"),
		Environment:         getEnv("ENV", "development"),
		ReadTimeout:         getEnvAsInt("READ_TIMEOUT", 10),
		WriteTimeout:        getEnvAsInt("WRITE_TIMEOUT", 10),
		BuildingAPIURL:      getEnv("BUILDING_API_URL", "http://localhost:4001"),
		LayerAPIURL:         getEnv("LAYER_API_URL", "http://localhost:4001"),
		UploadAPIURL:        getEnv("UPLOAD_API_URL", "http://localhost:4002"),
		CacheDBPath:         getEnv("CACHE_DB_PATH", "data/db/mapcache.db"),
		DraftTTLHours:       getEnvAsInt("DRAFT_TTL_HOURS", 72),
		SessionIdleMinutes:  getEnvAsInt("SESSION_IDLE_MINUTES", 30),
		FloorFallbackOffset: getEnvAsInt("FLOOR_FALLBACK_OFFSET", 1),
	}
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}
