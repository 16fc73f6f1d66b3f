package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"inspection-map/internal/mapsvc/models"

	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"
)

// ============================================================
// Building API Client
// ============================================================

// BuildingAPI — контракт сервиса зданий
type BuildingAPI interface {
	// GetBuilding возвращает карточку здания по коду реновации
	GetBuilding(ctx context.Context, renovationCode string) (*models.Building, error)
	// GetStories возвращает 3D-геометрию: по одной feature на сегмент
	GetStories(ctx context.Context) (*geojson.FeatureCollection, error)
}

type BuildingClient struct {
	base   string
	client *http.Client
	log    *logrus.Entry
}

func NewBuildingClient(base string, client *http.Client, log *logrus.Entry) *BuildingClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &BuildingClient{base: base, client: client, log: log}
}

func (c *BuildingClient) GetBuilding(ctx context.Context, renovationCode string) (*models.Building, error) {
	target := fmt.Sprintf("%s/buildings/%s", c.base, url.PathEscape(renovationCode))

	body, err := c.get(ctx, target)
	if err != nil {
		return nil, err
	}

	var building models.Building
	if err := decodeJSON(body, &building); err != nil {
		return nil, fmt.Errorf("decode building %s: %w", renovationCode, err)
	}
	return &building, nil
}

func (c *BuildingClient) GetStories(ctx context.Context) (*geojson.FeatureCollection, error) {
	body, err := c.get(ctx, c.base+"/buildings/3d")
	if err != nil {
		return nil, err
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("decode stories geojson: %w", err)
	}
	return fc, nil
}

func (c *BuildingClient) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warnf("GET %s: %v", target, err)
		return nil, transientErr(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transientErr(err)
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Warnf("GET %s: status %d", target, resp.StatusCode)
		return nil, classifyStatus(resp.StatusCode, body)
	}
	return body, nil
}
