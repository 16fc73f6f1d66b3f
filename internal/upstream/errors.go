package upstream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ============================================================
// API Error Taxonomy
// ============================================================

type ErrorKind int

const (
	// KindTransient — сеть/5xx, повтор того же запроса имеет смысл
	KindTransient ErrorKind = iota
	// KindUnauthorized — 401, нужна повторная аутентификация
	KindUnauthorized
	// KindForbidden — 403, повтор не поможет без смены роли
	KindForbidden
)

type APIError struct {
	Kind    ErrorKind
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("upstream: %s (status %d)", e.Message, e.Status)
	}
	return fmt.Sprintf("upstream: %s", e.Message)
}

// classifyStatus переводит HTTP-статус в категорию ошибки
func classifyStatus(status int, body []byte) *APIError {
	msg := messageFromBody(body)
	switch status {
	case http.StatusUnauthorized:
		return &APIError{Kind: KindUnauthorized, Status: status, Message: msg}
	case http.StatusForbidden:
		return &APIError{Kind: KindForbidden, Status: status, Message: msg}
	}
	return &APIError{Kind: KindTransient, Status: status, Message: msg}
}

// transientErr оборачивает сетевую ошибку (до получения статуса)
func transientErr(err error) *APIError {
	return &APIError{Kind: KindTransient, Message: err.Error()}
}

func messageFromBody(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return "request failed"
}

// IsUnauthorized — 401 от upstream
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindUnauthorized
}

// IsForbidden — 403 от upstream
func IsForbidden(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == KindForbidden
}
