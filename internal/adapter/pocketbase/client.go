package pocketbase

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vertextoedge/frame-viewer/internal/domain"
	"github.com/vertextoedge/frame-viewer/internal/port"
)

// Config contains client configuration
type Config struct {
	BaseURL         string
	MediaCollection string
	AuthCollection  string
	PerPage         int
	RequestTimeout  time.Duration
	SkipTLSVerify   bool
}

// DefaultConfig returns default client configuration
func DefaultConfig() *Config {
	return &Config{
		BaseURL:         "http://localhost:8090",
		MediaCollection: "media",
		AuthCollection:  "users",
		PerPage:         500,
		RequestTimeout:  30 * time.Second,
	}
}

// Client talks to the remote records API
type Client struct {
	config         *Config
	httpClient     *http.Client
	downloadClient *http.Client
}

// Ensure Client implements port.RemoteClient
var _ port.RemoteClient = (*Client)(nil)

// NewClient creates a new API client
func NewClient(cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.MediaCollection == "" {
		cfg.MediaCollection = "media"
	}
	if cfg.AuthCollection == "" {
		cfg.AuthCollection = "users"
	}
	if cfg.PerPage <= 0 {
		cfg.PerPage = 500
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.SkipTLSVerify,
		},
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
		ForceAttemptHTTP2:   true,
	}

	downloadTransport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.SkipTLSVerify,
		},
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     120 * time.Second,
		ForceAttemptHTTP2:   true,

		// Media is already compressed
		DisableCompression: true,

		// Response header timeout (not total download timeout)
		ResponseHeaderTimeout: cfg.RequestTimeout,
	}

	return &Client{
		config: cfg,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		downloadClient: &http.Client{
			Transport: downloadTransport,
			Timeout:   0, // Large videos; bounded by ctx and header timeout
		},
	}
}

// BaseURL returns the remote base URL
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// MediaCollection returns the collection name subscribed to by realtime
func (c *Client) MediaCollection() string {
	return c.config.MediaCollection
}

// doRequest performs an HTTP request with an optional bearer token
func (c *Client) doRequest(ctx context.Context, hc *http.Client, op, method, urlStr, token string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, domain.NewTransferError(op, urlStr, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, domain.NewStatusError(op, urlStr, resp.StatusCode)
	}

	return resp, nil
}

// ListMedia fetches one page of records sorted newest first
func (c *Client) ListMedia(ctx context.Context, filter, token string) (domain.Playlist, error) {
	params := url.Values{
		"filter":  {filter},
		"perPage": {strconv.Itoa(c.config.PerPage)},
		"sort":    {"-created"},
	}
	urlStr := fmt.Sprintf("%s/api/collections/%s/records?%s",
		c.config.BaseURL, url.PathEscape(c.config.MediaCollection), params.Encode())

	resp, err := c.doRequest(ctx, c.httpClient, "list", http.MethodGet, urlStr, token, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var list listResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, domain.NewDecodeError("records list", err)
	}
	if list.Items == nil {
		list.Items = []domain.Media{}
	}

	return domain.Playlist(list.Items), nil
}

// AuthWithPassword exchanges identity/password for a bearer token
func (c *Client) AuthWithPassword(ctx context.Context, identity, password string) (string, error) {
	payload, err := json.Marshal(authRequest{Identity: identity, Password: password})
	if err != nil {
		return "", err
	}
	urlStr := fmt.Sprintf("%s/api/collections/%s/auth-with-password",
		c.config.BaseURL, url.PathEscape(c.config.AuthCollection))

	resp, err := c.doRequest(ctx, c.httpClient, "auth", http.MethodPost, urlStr, "", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var auth authResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return "", domain.NewDecodeError("auth response", err)
	}
	if auth.Token == "" {
		return "", domain.NewDecodeError("auth response", fmt.Errorf("empty token"))
	}
	return auth.Token, nil
}

// Fetch starts an authenticated download. The caller closes the body.
func (c *Client) Fetch(ctx context.Context, urlStr, token string) (io.ReadCloser, error) {
	resp, err := c.doRequest(ctx, c.downloadClient, "download", http.MethodGet, urlStr, token, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
