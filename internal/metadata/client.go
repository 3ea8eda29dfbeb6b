// Package metadata is the HTTP client for the off-chain market metadata
// endpoint served by this repository's API (POST /api/markets).
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/winzzers/internal/crypto"
	"github.com/alanyoungcy/winzzers/internal/domain"
)

const (
	marketsPath    = "/api/markets"
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

// Client implements domain.MetadataStore against a remote API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     *crypto.RequestSigner
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSigner signs every write with s.
func WithSigner(s *crypto.RequestSigner) Option {
	return func(c *Client) { c.signer = s }
}

// NewClient creates a Client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type saveRequest struct {
	MarketID    uint64   `json:"marketId"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	CreatedAt   int64    `json:"createdAt,omitempty"`
}

type apiError struct {
	Error string `json:"error"`
}

// SaveMetadata posts meta. Any transport failure or non-2xx reply is reported
// as domain.ErrMetadataSync.
func (c *Client) SaveMetadata(ctx context.Context, meta domain.MarketMetadata) error {
	body, err := json.Marshal(saveRequest(meta))
	if err != nil {
		return fmt.Errorf("metadata: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+marketsPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("metadata: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.signer != nil {
		for k, v := range c.signer.Headers(http.MethodPost, marketsPath, body) {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("metadata: save market %d: %w: %w", meta.MarketID, domain.ErrMetadataSync, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("metadata: save market %d: %w: %s", meta.MarketID, domain.ErrMetadataSync, describe(resp))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// GetMetadata fetches metadata for one market. A 404 maps to domain.ErrNotFound.
func (c *Client) GetMetadata(ctx context.Context, marketID uint64) (domain.MarketMetadata, error) {
	u := c.baseURL + marketsPath + "/" + url.PathEscape(strconv.FormatUint(marketID, 10)) + "/meta"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.MarketMetadata{}, fmt.Errorf("metadata: build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.MarketMetadata{}, fmt.Errorf("metadata: get market %d: %w", marketID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.MarketMetadata{}, domain.ErrNotFound
	case resp.StatusCode/100 != 2:
		return domain.MarketMetadata{}, fmt.Errorf("metadata: get market %d: %s", marketID, describe(resp))
	}

	var meta domain.MarketMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return domain.MarketMetadata{}, fmt.Errorf("metadata: decode market %d: %w", marketID, err)
	}
	return meta, nil
}

// describe renders a failed response as "status: message".
func describe(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var ae apiError
	if err := json.Unmarshal(raw, &ae); err == nil && ae.Error != "" {
		return fmt.Sprintf("%d: %s", resp.StatusCode, ae.Error)
	}
	if msg := strings.TrimSpace(string(raw)); msg != "" {
		return fmt.Sprintf("%d: %s", resp.StatusCode, msg)
	}
	return strconv.Itoa(resp.StatusCode)
}

// Sync saves meta through sink, giving up after timeout.
func Sync(ctx context.Context, sink domain.MetadataSink, meta domain.MarketMetadata, timeout time.Duration) error {
	if sink == nil {
		return errors.New("metadata: no sink configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return sink.SaveMetadata(ctx, meta)
}

var _ domain.MetadataStore = (*Client)(nil)
