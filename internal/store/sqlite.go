package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"inspection-map/internal/mapsvc/models"
)

// ============================================================
// Local Snapshot Store (SQLite)
// ============================================================

// Локальный советующий кеш: последние полученные JSON здания/этажа и
// черновики мастера. Чтение никогда не важнее успешного сетевого
// рефреша; черновики протухают по TTL.

var ErrNotFound = errors.New("store: not found")

const (
	kindBuilding = "building"
	kindDraft    = "draft"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Init запускает миграции
func (s *Store) Init(ctx context.Context, migrationsPath string) error {
	data, err := os.ReadFile(migrationsPath)
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, string(data)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

// ------------------------------------------------------------
// Карточки зданий
// ------------------------------------------------------------

func (s *Store) PutBuilding(ctx context.Context, renovationCode string, b *models.Building) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encode building: %w", err)
	}
	return s.put(ctx, renovationCode, kindBuilding, payload)
}

func (s *Store) GetBuilding(ctx context.Context, renovationCode string) (*models.Building, error) {
	payload, _, err := s.get(ctx, renovationCode, kindBuilding)
	if err != nil {
		return nil, err
	}
	var b models.Building
	if err := json.Unmarshal(payload, &b); err != nil {
		return nil, fmt.Errorf("decode building: %w", err)
	}
	return &b, nil
}

// ------------------------------------------------------------
// Черновики
// ------------------------------------------------------------

func (s *Store) PutDraft(ctx context.Context, key string, payload []byte) error {
	return s.put(ctx, key, kindDraft, payload)
}

// GetDraft возвращает черновик не старше ttl
func (s *Store) GetDraft(ctx context.Context, key string, ttl time.Duration) ([]byte, error) {
	payload, updatedAt, err := s.get(ctx, key, kindDraft)
	if err != nil {
		return nil, err
	}
	if time.Since(updatedAt) > ttl {
		return nil, ErrNotFound
	}
	return payload, nil
}

// PurgeExpiredDrafts удаляет протухшие черновики (зовется на старте)
func (s *Store) PurgeExpiredDrafts(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := time.Now().Add(-ttl).UnixMilli()
	res, err := s.db.ExecContext(ctx, `
        DELETE FROM snapshots
        WHERE kind = ? AND updated_at < ?
    `, kindDraft, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge drafts: %w", err)
	}
	return res.RowsAffected()
}

// ------------------------------------------------------------
// Общие операции
// ------------------------------------------------------------

func (s *Store) put(ctx context.Context, key, kind string, payload []byte) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO snapshots (key, kind, payload, updated_at)
        VALUES (?, ?, ?, ?)
        ON CONFLICT (key, kind) DO UPDATE SET
            payload = excluded.payload,
            updated_at = excluded.updated_at
    `, key, kind, string(payload), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("put snapshot %s/%s: %w", kind, key, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key, kind string) ([]byte, time.Time, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT payload, updated_at
        FROM snapshots
        WHERE key = ? AND kind = ?
    `, key, kind)

	var payload string
	var updatedAt int64
	if err := row.Scan(&payload, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, time.Time{}, ErrNotFound
		}
		return nil, time.Time{}, err
	}
	return []byte(payload), time.UnixMilli(updatedAt), nil
}

// OpenSQLite открывает sqlite по указанному пути.
func OpenSQLite(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?cache=shared&mode=rwc&_pragma=busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
