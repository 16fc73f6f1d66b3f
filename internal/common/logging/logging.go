package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// ============================================================
// Logging
// ============================================================

// Setup настраивает глобальный logrus по переменным окружения
func Setup(environment string) *logrus.Logger {
	log := logrus.StandardLogger()

	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})

	level, err := logrus.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if environment == "production" {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	return log
}

// Component возвращает entry с тегом компонента ([SELECTION], [EDITOR], ...)
func Component(name string) *logrus.Entry {
	return logrus.WithField("component", name)
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}
