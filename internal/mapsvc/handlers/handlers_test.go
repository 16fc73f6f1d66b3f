package handlers

import (
	"net/http/httptest"
	"testing"

	"inspection-map/internal/common/logging"
	"inspection-map/internal/mapsvc/geoindex"
	"inspection-map/internal/mapsvc/selection"
	"inspection-map/internal/mapsvc/service"

	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp() (*fiber.App, *service.Manager) {
	manager := service.NewManager(service.Deps{
		Index:    geoindex.New(),
		Resolver: selection.NewResolver(1),
		Cache:    selection.NewBuildingCache(),
	}, logging.Component("TEST"))
	h := New(manager, logging.Component("TEST"))

	app := fiber.New()
	app.Get("/sessions/:id/state", h.State)
	app.Get("/sessions/:id/floors/:floorId/layers", h.FloorLayers)
	app.Post("/sessions/:id/floors/:floorId/workflow/open", h.WorkflowOpen)
	return app, manager
}

func TestUnknownSessionIsNotFoundOnEveryRoute(t *testing.T) {
	app, _ := newTestApp()

	cases := []struct {
		method string
		target string
	}{
		{"GET", "/sessions/missing/state"},
		{"GET", "/sessions/missing/floors/1/layers"},
		{"POST", "/sessions/missing/floors/1/workflow/open"},
	}
	for _, tc := range cases {
		resp, err := app.Test(httptest.NewRequest(tc.method, tc.target, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode, "%s %s", tc.method, tc.target)
	}
}

func TestInvalidFloorIDIsBadRequest(t *testing.T) {
	app, manager := newTestApp()
	s := manager.Open()

	resp, err := app.Test(httptest.NewRequest("GET", "/sessions/"+s.ID+"/floors/abc/layers", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest("POST", "/sessions/"+s.ID+"/floors/abc/workflow/open", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
