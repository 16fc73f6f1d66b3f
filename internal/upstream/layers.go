package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"inspection-map/internal/mapsvc/models"

	"github.com/sirupsen/logrus"
)

// ============================================================
// Layer API Client
// ============================================================

// LayerDraft — тело создания слоя
type LayerDraft struct {
	Type            models.LayerType `json:"type"`
	PosX            float64          `json:"posX"`
	PosY            float64          `json:"posY"`
	Note            string           `json:"note,omitempty"`
	PictureURL      string           `json:"pictureUrl,omitempty"`
	PictureThumbURL string           `json:"pictureThumbNail,omitempty"`
}

// LayerPatch — тело обновления позиции/типа
type LayerPatch struct {
	Type models.LayerType `json:"type"`
	PosX float64          `json:"posX"`
	PosY float64          `json:"posY"`
}

// LayerAPI — контракт сервиса слоев
type LayerAPI interface {
	CreateLayer(ctx context.Context, floorID int64, draft LayerDraft) (*models.Layer, error)
	UpdateLayer(ctx context.Context, floorID int64, layerID string, patch LayerPatch) error
	DeleteLayer(ctx context.Context, floorID int64, layerID string) error
}

type LayerClient struct {
	base   string
	client *http.Client
	log    *logrus.Entry
}

func NewLayerClient(base string, client *http.Client, log *logrus.Entry) *LayerClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &LayerClient{base: base, client: client, log: log}
}

func (c *LayerClient) CreateLayer(ctx context.Context, floorID int64, draft LayerDraft) (*models.Layer, error) {
	target := fmt.Sprintf("%s/floors/%d/layers", c.base, floorID)

	body, err := c.do(ctx, http.MethodPost, target, draft)
	if err != nil {
		return nil, err
	}

	var layer models.Layer
	if err := decodeJSON(body, &layer); err != nil {
		return nil, fmt.Errorf("decode created layer: %w", err)
	}
	return &layer, nil
}

func (c *LayerClient) UpdateLayer(ctx context.Context, floorID int64, layerID string, patch LayerPatch) error {
	target := fmt.Sprintf("%s/floors/%d/layers/%s", c.base, floorID, layerID)
	_, err := c.do(ctx, http.MethodPatch, target, patch)
	return err
}

func (c *LayerClient) DeleteLayer(ctx context.Context, floorID int64, layerID string) error {
	target := fmt.Sprintf("%s/floors/%d/layers/%s", c.base, floorID, layerID)
	_, err := c.do(ctx, http.MethodDelete, target, nil)
	return err
}

func (c *LayerClient) do(ctx context.Context, method, target string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warnf("%s %s: %v", method, target, err)
		return nil, transientErr(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transientErr(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warnf("%s %s: status %d", method, target, resp.StatusCode)
		return nil, classifyStatus(resp.StatusCode, body)
	}
	return body, nil
}

func decodeJSON(body []byte, target any) error {
	return json.Unmarshal(body, target)
}
