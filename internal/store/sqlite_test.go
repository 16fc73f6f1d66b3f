package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"inspection-map/internal/mapsvc/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s := New(db)
	require.NoError(t, s.Init(context.Background(), "../../migrations/001_init_cache.sql"))
	return s
}

func TestBuildingSnapshotRoundtrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetBuilding(ctx, "RC-1")
	assert.ErrorIs(t, err, ErrNotFound)

	b := &models.Building{
		ID:             1,
		RenovationCode: "RC-1",
		ProjectName:    "Block 1",
		Floors: []models.Floor{
			{ID: 10, Number: 0, Layers: []models.Layer{{ID: "L1", Type: models.LayerHydrant, PosX: 0.5, PosY: 0.5}}},
		},
	}
	require.NoError(t, s.PutBuilding(ctx, "RC-1", b))

	got, err := s.GetBuilding(ctx, "RC-1")
	require.NoError(t, err)
	assert.Equal(t, b, got)
}

func TestPutBuildingOverwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutBuilding(ctx, "RC-1", &models.Building{ID: 1, ProjectName: "old"}))
	require.NoError(t, s.PutBuilding(ctx, "RC-1", &models.Building{ID: 1, ProjectName: "new"}))

	got, err := s.GetBuilding(ctx, "RC-1")
	require.NoError(t, err)
	assert.Equal(t, "new", got.ProjectName)
}

func TestDraftTTL(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutDraft(ctx, "floor-7", []byte(`{"note":"draft"}`)))

	payload, err := s.GetDraft(ctx, "floor-7", time.Hour)
	require.NoError(t, err)
	assert.JSONEq(t, `{"note":"draft"}`, string(payload))

	// Нулевой TTL — любой черновик уже протух
	_, err = s.GetDraft(ctx, "floor-7", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDraftAndBuildingKindsDoNotCollide(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutBuilding(ctx, "same-key", &models.Building{ID: 1}))
	require.NoError(t, s.PutDraft(ctx, "same-key", []byte(`{}`)))

	b, err := s.GetBuilding(ctx, "same-key")
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.ID)
}

func TestPurgeExpiredDrafts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutDraft(ctx, "floor-1", []byte(`{}`)))
	require.NoError(t, s.PutBuilding(ctx, "RC-1", &models.Building{ID: 1}))

	// TTL в прошлом — черновик удаляется, здание остается
	n, err := s.PurgeExpiredDrafts(ctx, -time.Second)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.GetDraft(ctx, "floor-1", time.Hour)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetBuilding(ctx, "RC-1")
	assert.NoError(t, err)
}
