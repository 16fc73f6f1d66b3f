package annotate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"inspection-map/internal/common/logging"
	"inspection-map/internal/mapsvc/models"
	"inspection-map/internal/upstream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ------------------------------------------------------------
// Fakes
// ------------------------------------------------------------

type fakeLayerAPI struct {
	mu      sync.Mutex
	seq     int
	creates []upstream.LayerDraft
	updates []string
	deletes []string

	failCreate  bool
	failUpdates map[string]bool
	failDelete  bool
	blockCreate chan struct{}
}

func newFakeLayerAPI() *fakeLayerAPI {
	return &fakeLayerAPI{failUpdates: make(map[string]bool)}
}

func (f *fakeLayerAPI) CreateLayer(ctx context.Context, floorID int64, draft upstream.LayerDraft) (*models.Layer, error) {
	f.mu.Lock()
	gate := f.blockCreate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return nil, &upstream.APIError{Kind: upstream.KindTransient, Status: 502, Message: "create failed"}
	}
	f.seq++
	f.creates = append(f.creates, draft)
	return &models.Layer{
		ID:              fmt.Sprintf("srv-%d", f.seq),
		Type:            draft.Type,
		PosX:            draft.PosX,
		PosY:            draft.PosY,
		Note:            draft.Note,
		PictureURL:      draft.PictureURL,
		PictureThumbURL: draft.PictureThumbURL,
	}, nil
}

func (f *fakeLayerAPI) UpdateLayer(ctx context.Context, floorID int64, layerID string, patch upstream.LayerPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failUpdates[layerID] {
		return &upstream.APIError{Kind: upstream.KindTransient, Status: 502, Message: "update failed"}
	}
	f.updates = append(f.updates, layerID)
	return nil
}

func (f *fakeLayerAPI) DeleteLayer(ctx context.Context, floorID int64, layerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return &upstream.APIError{Kind: upstream.KindTransient, Status: 502, Message: "delete failed"}
	}
	f.deletes = append(f.deletes, layerID)
	return nil
}

func (f *fakeLayerAPI) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.creates)
}

type fakeUploadAPI struct {
	fail   bool
	result upstream.UploadResult
}

func (f *fakeUploadAPI) UploadPicture(ctx context.Context, filename string, r io.Reader) (*upstream.UploadResult, error) {
	io.Copy(io.Discard, r)
	if f.fail {
		return nil, errors.New("upload: connection reset")
	}
	out := f.result
	return &out, nil
}

// ------------------------------------------------------------
// Fixtures
// ------------------------------------------------------------

var planRect = Rect{Left: 100, Top: 50, Width: 200, Height: 100}

func newTestEditor(api upstream.LayerAPI, seed ...models.Layer) *Editor {
	return NewEditor(7, seed, api, logging.Component("TEST"))
}

func endSample(x, y float64) PointerSample {
	return PointerSample{X: x, Y: y, Phase: PhaseEnd}
}

// ------------------------------------------------------------
// Drop-to-add
// ------------------------------------------------------------

func TestDropOutsideRectIsRejectedWithoutAPICall(t *testing.T) {
	api := newFakeLayerAPI()
	e := newTestEditor(api)

	layer, err := e.DropNew(context.Background(), endSample(50, 50), planRect, models.LayerHydrant)
	require.NoError(t, err)
	assert.Nil(t, layer)
	assert.Empty(t, e.Layers())
	assert.Zero(t, api.createCount(), "rejected drop must not hit the network")
}

func TestDropIgnoresNonEndPhases(t *testing.T) {
	api := newFakeLayerAPI()
	e := newTestEditor(api)

	layer, err := e.DropNew(context.Background(), PointerSample{X: 150, Y: 75, Phase: PhaseMove}, planRect, models.LayerHydrant)
	require.NoError(t, err)
	assert.Nil(t, layer)
	assert.Zero(t, api.createCount())
}

func TestDropInsideNormalizesAndSwapsID(t *testing.T) {
	api := newFakeLayerAPI()
	e := newTestEditor(api)

	// Центр рамки → (0.5, 0.5)
	layer, err := e.DropNew(context.Background(), endSample(200, 100), planRect, models.LayerExtinguisher)
	require.NoError(t, err)
	require.NotNil(t, layer)
	assert.InDelta(t, 0.5, layer.PosX, 1e-9)
	assert.InDelta(t, 0.5, layer.PosY, 1e-9)
	assert.Equal(t, "srv-1", layer.ID)
	assert.False(t, layer.IsTemp())

	layers := e.Layers()
	require.Len(t, layers, 1)
	assert.Equal(t, "srv-1", layers[0].ID)
	assert.Zero(t, e.UnsavedCount())
}

func TestDropRollbackOnCreateFailure(t *testing.T) {
	api := newFakeLayerAPI()
	api.failCreate = true
	seed := []models.Layer{{ID: "srv-0", Type: models.LayerAlarmPanel, PosX: 0.1, PosY: 0.1}}
	e := newTestEditor(api, seed...)

	_, err := e.DropNew(context.Background(), endSample(200, 100), planRect, models.LayerHydrant)
	require.Error(t, err)
	// Откат полный: список байт в байт равен состоянию до жеста
	assert.Equal(t, seed, e.Layers())
}

// ------------------------------------------------------------
// Drag
// ------------------------------------------------------------

func TestDragLiveMoveLatestWins(t *testing.T) {
	api := newFakeLayerAPI()
	e := newTestEditor(api, models.Layer{ID: "srv-1", Type: models.LayerHydrant, PosX: 0.1, PosY: 0.1})

	require.True(t, e.Drag("srv-1", PointerSample{X: 150, Y: 75, Phase: PhaseBegin}, planRect))
	require.True(t, e.Drag("srv-1", PointerSample{X: 200, Y: 100, Phase: PhaseMove}, planRect))
	require.True(t, e.Drag("srv-1", PointerSample{X: 250, Y: 125, Phase: PhaseEnd}, planRect))

	layers := e.Layers()
	assert.InDelta(t, 0.75, layers[0].PosX, 1e-9)
	assert.InDelta(t, 0.75, layers[0].PosY, 1e-9)
	assert.Equal(t, 1, e.UnsavedCount(), "moved server layer becomes dirty")
	assert.Zero(t, api.createCount(), "drag is purely local until save-all")
}

func TestDragOutsideRectKeepsLastInsidePosition(t *testing.T) {
	api := newFakeLayerAPI()
	e := newTestEditor(api, models.Layer{ID: "srv-1", PosX: 0.1, PosY: 0.1})

	e.Drag("srv-1", PointerSample{X: 150, Y: 75, Phase: PhaseBegin}, planRect)
	e.Drag("srv-1", PointerSample{X: 200, Y: 100, Phase: PhaseMove}, planRect)
	// Палец ушел за рамку — позиция не меняется
	e.Drag("srv-1", PointerSample{X: 999, Y: 999, Phase: PhaseEnd}, planRect)

	layers := e.Layers()
	assert.InDelta(t, 0.5, layers[0].PosX, 1e-9)
	assert.InDelta(t, 0.5, layers[0].PosY, 1e-9)
}

func TestDragUnknownLayerRejected(t *testing.T) {
	e := newTestEditor(newFakeLayerAPI())
	assert.False(t, e.Drag("missing", PointerSample{X: 150, Y: 75, Phase: PhaseBegin}, planRect))
	assert.False(t, e.Drag("missing", PointerSample{X: 150, Y: 75, Phase: PhaseMove}, planRect))
}

func TestDragTempLayerStaysTempNotDirty(t *testing.T) {
	api := newFakeLayerAPI()
	e := newTestEditor(api, models.Layer{ID: models.TempIDPrefix + "abc", Type: models.LayerHydrant})

	e.Drag(models.TempIDPrefix+"abc", PointerSample{X: 150, Y: 75, Phase: PhaseBegin}, planRect)
	e.Drag(models.TempIDPrefix+"abc", PointerSample{X: 200, Y: 100, Phase: PhaseEnd}, planRect)

	// Временный слой и так несохранен; dirty — только про серверные id
	assert.Equal(t, 1, e.UnsavedCount())
}

// ------------------------------------------------------------
// Delete
// ------------------------------------------------------------

func TestDeleteTempLayerIsLocalOnly(t *testing.T) {
	api := newFakeLayerAPI()
	e := newTestEditor(api, models.Layer{ID: models.TempIDPrefix + "abc"})

	require.NoError(t, e.Delete(context.Background(), models.TempIDPrefix+"abc"))
	assert.Empty(t, e.Layers())
	assert.Empty(t, api.deletes)
}

func TestDeleteServerLayerRestoredOnFailure(t *testing.T) {
	api := newFakeLayerAPI()
	api.failDelete = true
	seed := []models.Layer{{ID: "srv-1"}, {ID: "srv-2"}}
	e := newTestEditor(api, seed...)

	err := e.Delete(context.Background(), "srv-1")
	require.Error(t, err)
	assert.Equal(t, seed, e.Layers(), "failed delete must restore the list")
}

func TestDeleteServerLayerSuccess(t *testing.T) {
	api := newFakeLayerAPI()
	e := newTestEditor(api, models.Layer{ID: "srv-1"}, models.Layer{ID: "srv-2"})

	require.NoError(t, e.Delete(context.Background(), "srv-1"))
	layers := e.Layers()
	require.Len(t, layers, 1)
	assert.Equal(t, "srv-2", layers[0].ID)
	assert.Equal(t, []string{"srv-1"}, api.deletes)
}

// ------------------------------------------------------------
// Save-all
// ------------------------------------------------------------

func TestSaveAllMixedCreateAndUpdate(t *testing.T) {
	api := newFakeLayerAPI()
	e := newTestEditor(api,
		models.Layer{ID: "srv-1", Type: models.LayerHydrant, PosX: 0.1, PosY: 0.1},
		models.Layer{ID: models.TempIDPrefix + "new", Type: models.LayerSprinkler, PosX: 0.2, PosY: 0.2},
	)
	e.Drag("srv-1", PointerSample{X: 150, Y: 75, Phase: PhaseBegin}, planRect)
	e.Drag("srv-1", PointerSample{X: 150, Y: 75, Phase: PhaseEnd}, planRect)

	require.NoError(t, e.SaveAll(context.Background()))
	assert.Zero(t, e.UnsavedCount())
	assert.Equal(t, []string{"srv-1"}, api.updates)
	require.Equal(t, 1, api.createCount())

	// Временный id подменен серверным на месте
	for _, l := range e.Layers() {
		assert.False(t, l.IsTemp())
	}
}

func TestSaveAllContinuesPastFailures(t *testing.T) {
	api := newFakeLayerAPI()
	api.failUpdates["srv-2"] = true
	e := newTestEditor(api,
		models.Layer{ID: "srv-1", PosX: 0.1, PosY: 0.1},
		models.Layer{ID: "srv-2", PosX: 0.2, PosY: 0.2},
		models.Layer{ID: "srv-3", PosX: 0.3, PosY: 0.3},
	)
	for _, id := range []string{"srv-1", "srv-2", "srv-3"} {
		e.Drag(id, PointerSample{X: 150, Y: 75, Phase: PhaseBegin}, planRect)
		e.Drag(id, PointerSample{X: 150, Y: 75, Phase: PhaseEnd}, planRect)
	}

	err := e.SaveAll(context.Background())
	require.Error(t, err)

	var saveErr *SaveError
	require.ErrorAs(t, err, &saveErr)
	require.Len(t, saveErr.Failures, 1)
	assert.Equal(t, "srv-2", saveErr.Failures[0].LayerID)

	// 1 и 3 сохранены, их откат не выполняется; 2 остался несведенным
	assert.Equal(t, []string{"srv-1", "srv-3"}, api.updates)
	assert.Equal(t, 1, e.UnsavedCount())
}

func TestSaveAllNothingPendingIsNoop(t *testing.T) {
	api := newFakeLayerAPI()
	e := newTestEditor(api, models.Layer{ID: "srv-1"})

	require.NoError(t, e.SaveAll(context.Background()))
	assert.Zero(t, api.createCount())
	assert.Empty(t, api.updates)
}

func TestReseedDropsLocalState(t *testing.T) {
	api := newFakeLayerAPI()
	e := newTestEditor(api, models.Layer{ID: models.TempIDPrefix + "x"})
	require.Equal(t, 1, e.UnsavedCount())

	e.Reseed([]models.Layer{{ID: "srv-9"}})
	assert.Zero(t, e.UnsavedCount())
	layers := e.Layers()
	require.Len(t, layers, 1)
	assert.Equal(t, "srv-9", layers[0].ID)
}
