// Package client talks to the promotores HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aluiziolira/go-promotores/config"
	"github.com/aluiziolira/go-promotores/models"
)

// Client issues searches, health checks and QR uploads against the API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

// New builds a client for cfg.ServerURL.
func New(cfg *config.Config) (*Client, error) {
	parsed, err := url.Parse(strings.TrimRight(cfg.ServerURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if parsed.Host == "" {
		return nil, fmt.Errorf("server url must include a host")
	}

	return &Client{
		baseURL:   parsed,
		userAgent: cfg.UserAgent,
		http: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   cfg.Timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}, nil
}

// WithTransport replaces the HTTP transport, for proxies and tests.
func (c *Client) WithTransport(rt http.RoundTripper) {
	c.http.Transport = rt
}

// BaseURL returns the server root the client was built for.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Search queries /api/promotores with op sent as typed; the server
// normalizes it. An ok:false envelope is returned as *models.APIError,
// an ok:true envelope without data as ErrServer, anything else that
// prevents reading an envelope as a classified transport error.
func (c *Client) Search(ctx context.Context, op string) ([]models.Record, error) {
	endpoint := c.endpoint("/api/promotores") + "?op=" + url.QueryEscape(op)

	var resp models.SearchResponse
	status, err := c.getJSON(ctx, endpoint, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.OK {
		return nil, &models.APIError{Status: status, Message: resp.Error}
	}
	if resp.Data == nil {
		return nil, ErrServer{Status: status, Err: fmt.Errorf("ok response without data")}
	}
	slog.Debug("search response", slog.String("op", op), slog.Int("count", resp.Data.Count))
	return resp.Data.Records, nil
}

// Health fetches /healthz.
func (c *Client) Health(ctx context.Context) (models.Health, error) {
	var h models.Health
	if _, err := c.getJSON(ctx, c.endpoint("/healthz"), &h); err != nil {
		return models.Health{}, err
	}
	return h, nil
}

// Decode uploads an image to /api/qr and returns the decoded QR value.
func (c *Client) Decode(ctx context.Context, r io.Reader) (string, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "qr.png")
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	if err := form.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/api/qr"), &body)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	var resp models.QRDecodeResponse
	status, err := c.doJSON(req, &resp)
	if err != nil {
		return "", err
	}
	if !resp.OK || resp.Data == nil {
		return "", &models.APIError{Status: status, Message: resp.Error}
	}
	return resp.Data.Value, nil
}

func (c *Client) endpoint(path string) string {
	return c.baseURL.String() + path
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	return c.doJSON(req, out)
}

// doJSON decodes the body whatever the status: the API reports failures
// as JSON envelopes with 4xx codes.
func (c *Client) doJSON(req *http.Request, out any) (int, error) {
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return 0, Classify(fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err), 0)
	}
	defer res.Body.Close()

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		if classified := Classify(nil, res.StatusCode); classified != nil {
			return res.StatusCode, classified
		}
		return res.StatusCode, ErrServer{Status: res.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return res.StatusCode, nil
}
