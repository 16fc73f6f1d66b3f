package upstream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/sirupsen/logrus"
)

// ============================================================
// Image Upload Client
// ============================================================

type UploadResult struct {
	URL      string `json:"url"`
	ThumbURL string `json:"thumbUrl"`
}

// UploadAPI — контракт сервиса загрузки фотографий
type UploadAPI interface {
	UploadPicture(ctx context.Context, filename string, r io.Reader) (*UploadResult, error)
}

type UploadClient struct {
	base   string
	client *http.Client
	log    *logrus.Entry
}

func NewUploadClient(base string, client *http.Client, log *logrus.Entry) *UploadClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &UploadClient{base: base, client: client, log: log}
}

// UploadPicture отправляет файл multipart-формой и возвращает url + thumb
func (c *UploadClient) UploadPicture(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("copy picture: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	target := c.base + "/uploads/picture"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body.Bytes()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warnf("POST %s: %v", target, err)
		return nil, transientErr(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transientErr(err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.log.Warnf("POST %s: status %d", target, resp.StatusCode)
		return nil, classifyStatus(resp.StatusCode, data)
	}

	var result UploadResult
	if err := decodeJSON(data, &result); err != nil {
		return nil, fmt.Errorf("decode upload result: %w", err)
	}
	return &result, nil
}
