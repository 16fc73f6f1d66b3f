package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"inspection-map/internal/common/logging"
	"inspection-map/internal/mapsvc/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetBuildingRoundtrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/buildings/RC-42", r.URL.Path)
		json.NewEncoder(w).Encode(models.Building{
			ID:             42,
			ProjectName:    "Block 4 tower",
			RenovationCode: "RC-42",
			Floors: []models.Floor{
				{ID: 1, Number: 0, Layers: []models.Layer{{ID: "L1", Type: models.LayerHydrant}}},
			},
		})
	}))
	defer srv.Close()

	c := NewBuildingClient(srv.URL, srv.Client(), logging.Component("TEST"))
	b, err := c.GetBuilding(context.Background(), "RC-42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), b.ID)
	require.Len(t, b.Floors, 1)
	assert.Equal(t, models.LayerHydrant, b.Floors[0].Layers[0].Type)
}

func TestGetStoriesParsesGeoJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/buildings/3d", r.URL.Path)
		w.Write([]byte(`{
            "type": "FeatureCollection",
            "features": [{
                "type": "Feature",
                "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]},
                "properties": {"story_key": "1:above:0", "building_id": 1}
            }]
        }`))
	}))
	defer srv.Close()

	c := NewBuildingClient(srv.URL, srv.Client(), logging.Component("TEST"))
	fc, err := c.GetStories(context.Background())
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "1:above:0", fc.Features[0].Properties["story_key"])
}

func TestErrorClassificationByStatus(t *testing.T) {
	cases := []struct {
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{http.StatusUnauthorized, `{"error":"token expired"}`, func(t *testing.T, err error) {
			assert.True(t, IsUnauthorized(err))
			assert.Contains(t, err.Error(), "token expired")
		}},
		{http.StatusForbidden, `{"message":"insufficient role"}`, func(t *testing.T, err error) {
			assert.True(t, IsForbidden(err))
		}},
		{http.StatusBadGateway, ``, func(t *testing.T, err error) {
			assert.False(t, IsUnauthorized(err))
			assert.False(t, IsForbidden(err))
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, KindTransient, apiErr.Kind)
		}},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			w.Write([]byte(tc.body))
		}))

		c := NewBuildingClient(srv.URL, srv.Client(), logging.Component("TEST"))
		_, err := c.GetBuilding(context.Background(), "RC-1")
		require.Error(t, err)
		tc.check(t, err)
		srv.Close()
	}
}

func TestConnectionErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // адрес мертв, запрос не доходит

	c := NewBuildingClient(srv.URL, nil, logging.Component("TEST"))
	_, err := c.GetBuilding(context.Background(), "RC-1")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindTransient, apiErr.Kind)
}

func TestCreateLayerRoundtrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/floors/7/layers", r.URL.Path)

		var draft LayerDraft
		require.NoError(t, json.NewDecoder(r.Body).Decode(&draft))
		assert.Equal(t, models.LayerSprinkler, draft.Type)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(models.Layer{
			ID:   "srv-1",
			Type: draft.Type,
			PosX: draft.PosX,
			PosY: draft.PosY,
		})
	}))
	defer srv.Close()

	c := NewLayerClient(srv.URL, srv.Client(), logging.Component("TEST"))
	layer, err := c.CreateLayer(context.Background(), 7, LayerDraft{
		Type: models.LayerSprinkler,
		PosX: 0.25,
		PosY: 0.75,
	})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", layer.ID)
	assert.InDelta(t, 0.25, layer.PosX, 1e-9)
}

func TestUpdateAndDeleteLayer(t *testing.T) {
	var gotMethods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethods = append(gotMethods, r.Method)
		assert.Equal(t, "/floors/7/layers/srv-1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewLayerClient(srv.URL, srv.Client(), logging.Component("TEST"))
	require.NoError(t, c.UpdateLayer(context.Background(), 7, "srv-1", LayerPatch{Type: models.LayerHydrant, PosX: 0.5, PosY: 0.5}))
	require.NoError(t, c.DeleteLayer(context.Background(), 7, "srv-1"))
	assert.Equal(t, []string{http.MethodPatch, http.MethodDelete}, gotMethods)
}

func TestUploadPictureMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/uploads/picture", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "plan.jpg", header.Filename)

		json.NewEncoder(w).Encode(UploadResult{URL: "https://cdn/a.jpg", ThumbURL: "https://cdn/a_t.jpg"})
	}))
	defer srv.Close()

	c := NewUploadClient(srv.URL, srv.Client(), logging.Component("TEST"))
	result, err := c.UploadPicture(context.Background(), "plan.jpg", strings.NewReader("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/a.jpg", result.URL)
	assert.Equal(t, "https://cdn/a_t.jpg", result.ThumbURL)
}

func TestUnknownLayerTypeCollapsesToOther(t *testing.T) {
	assert.Equal(t, models.LayerOther, models.ParseLayerType("laser_turret"))
	assert.Equal(t, models.LayerHydrant, models.ParseLayerType("HYDRANT"))
}
