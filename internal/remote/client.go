// Package remote talks to the scan/storage service: the file lister and the scan endpoint.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"time"

	"go.uber.org/zap"

	"github.com/Project-Sylos/Citrus/internal/logging"
	"github.com/Project-Sylos/Citrus/internal/types"
	"github.com/Project-Sylos/Citrus/internal/utils"
)

// Listing kinds reported by /debug-files
const (
	KindStorage   = "storage"
	KindProcessed = "processed"
)

// Client is an HTTP client for the scan/storage service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration // per-request; zero means no client-side timeout
}

// APIError is a non-2xx answer from the service
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("remote returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("remote returned %d", e.StatusCode)
}

// New creates a new client.
func New(cfg Config) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        20,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ListFiles fetches the server-side file snapshot.
// Absent arrays decode as empty.
func (c *Client) ListFiles(ctx context.Context) (*types.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, utils.JoinURL(c.baseURL, "debug-files"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build list request: %w", err)
	}

	var snap types.Snapshot
	if err := c.doJSON(req, &snap); err != nil {
		return nil, fmt.Errorf("failed to list remote files: %w", err)
	}
	if snap.StorageFiles == nil {
		snap.StorageFiles = []types.RemoteFile{}
	}
	if snap.ProcessedFiles == nil {
		snap.ProcessedFiles = []types.RemoteFile{}
	}
	return &snap, nil
}

// Scan uploads an image and asks the service to produce a scanned document named outputName.
func (c *Client) Scan(ctx context.Context, filename, contentType string, image io.Reader, outputName string) (*types.ScanResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create image part: %w", err)
	}
	n, err := io.Copy(part, image)
	if err != nil {
		return nil, fmt.Errorf("failed to copy image: %w", err)
	}
	if err := mw.WriteField("outputName", outputName); err != nil {
		return nil, fmt.Errorf("failed to write outputName: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, utils.JoinURL(c.baseURL, "upload-and-scan")+"/", &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build scan request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	logging.Named("remote").Info("scanning document",
		zap.String("filename", filename),
		zap.Int64("bytes", n),
		zap.String("output", outputName),
	)

	var result types.ScanResult
	if err := c.doJSON(req, &result); err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}
	if !result.Success || result.Filename == "" {
		return nil, fmt.Errorf("failed to scan document: service reported no output")
	}
	return &result, nil
}

// Health calls the service health check and returns its body.
func (c *Client) Health(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, utils.JoinURL(c.baseURL, "health-check"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build health request: %w", err)
	}
	var out map[string]any
	if err := c.doJSON(req, &out); err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	return out, nil
}

// FileURL builds the absolute static URL for a listed file.
// A listing-supplied url wins; otherwise processed files live under /files
// and storage-root files under /storage.
func (c *Client) FileURL(kind string, f types.RemoteFile) string {
	if f.URL != "" {
		return utils.ResolveURL(c.baseURL, f.URL)
	}
	if kind == KindStorage {
		return utils.JoinURL(c.baseURL, "storage", f.Filename)
	}
	return utils.JoinURL(c.baseURL, "files", f.Filename)
}

// ResultURL picks the URL the library should store for a scan result
func (c *Client) ResultURL(r *types.ScanResult) string {
	switch {
	case r.PDFURL != "":
		return utils.ResolveURL(c.baseURL, r.PDFURL)
	case r.StorageURL != "":
		return utils.ResolveURL(c.baseURL, r.StorageURL)
	default:
		return utils.JoinURL(c.baseURL, "files", r.Filename)
	}
}

func (c *Client) doJSON(req *http.Request, dst any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var detail struct {
			Detail string `json:"detail"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&detail) == nil {
			apiErr.Detail = detail.Detail
		}
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("malformed response: %w", err)
	}
	return nil
}
