package remote

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/net/http2"

	"github.com/TheMichaelB/savesync/internal/config"
	"github.com/TheMichaelB/savesync/internal/events"
	"github.com/TheMichaelB/savesync/internal/models"
)

// Metadata travels in headers so Stat (HEAD) never transfers payload bytes.
const (
	headerChecksum = "X-Save-Checksum"
	headerModified = "X-Save-Modified"
	headerSize     = "X-Save-Size"
	headerPlayer   = "X-Save-Player"
	headerFavorite = "X-Save-Favorite"
)

// HTTPStore talks to the cloud save service's object API.
type HTTPStore struct {
	client    *http.Client
	baseURL   string
	userAgent string
	token     string
	gate      *Gate
	logger    *events.Logger

	maxRetries int
	retryDelay time.Duration
}

// NewHTTPStore creates an HTTP-backed remote store.
func NewHTTPStore(cfg *config.APIConfig, gate *Gate, logger *events.Logger) *HTTPStore {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			NextProtos: []string{"h2", "http/1.1"},
		},
	}

	if err := http2.ConfigureTransport(transport); err != nil {
		logger.WithError(err).Warn("Failed to configure HTTP/2")
	}

	return &HTTPStore{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		baseURL:    cfg.BaseURL,
		userAgent:  cfg.UserAgent,
		gate:       gate,
		maxRetries: cfg.MaxRetries,
		retryDelay: time.Second,
		logger:     logger.WithField("component", "http_store"),
	}
}

// SetToken sets the session token.
func (s *HTTPStore) SetToken(token string) { s.token = token }

// Read returns the payload and metadata for a slot.
func (s *HTTPStore) Read(ctx context.Context, slot int) ([]byte, *models.SlotMetadata, error) {
	resp, body, err := s.do(ctx, http.MethodGet, s.slotURL(slot), nil, nil)
	if err != nil {
		return nil, nil, err
	}

	meta, err := metaFromHeaders(slot, resp.Header)
	if err != nil {
		return nil, nil, err
	}

	return body, meta, nil
}

// Stat returns metadata without transferring the payload.
func (s *HTTPStore) Stat(ctx context.Context, slot int) (*models.SlotMetadata, error) {
	resp, _, err := s.do(ctx, http.MethodHead, s.slotURL(slot), nil, nil)
	if err != nil {
		return nil, err
	}

	return metaFromHeaders(slot, resp.Header)
}

// Write persists a payload tagged with the given metadata.
func (s *HTTPStore) Write(ctx context.Context, slot int, payload []byte, meta *models.SlotMetadata) error {
	headers, err := headersFromMeta(meta)
	if err != nil {
		return err
	}

	_, _, err = s.do(ctx, http.MethodPut, s.slotURL(slot), payload, headers)
	if err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"slot": slot,
		"size": len(payload),
	}).Debug("Uploaded slot")

	return nil
}

// Delete removes a slot's cloud copy.
func (s *HTTPStore) Delete(ctx context.Context, slot int) error {
	_, _, err := s.do(ctx, http.MethodDelete, s.slotURL(slot), nil, nil)
	if err != nil {
		return err
	}

	s.logger.WithSlot(slot).Debug("Deleted cloud slot")
	return nil
}

// List returns slot numbers holding a cloud copy.
func (s *HTTPStore) List(ctx context.Context) ([]int, error) {
	_, body, err := s.do(ctx, http.MethodGet, s.baseURL+"/api/v1/slots", nil, nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Slots []int `json:"slots"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse slot list: %w", err)
	}

	return result.Slots, nil
}

// Quota returns the account's consumed and total bytes.
func (s *HTTPStore) Quota(ctx context.Context) (int64, int64, error) {
	_, body, err := s.do(ctx, http.MethodGet, s.baseURL+"/api/v1/quota", nil, nil)
	if err != nil {
		return 0, 0, err
	}

	var result QuotaInfo
	if err := json.Unmarshal(body, &result); err != nil {
		return 0, 0, fmt.Errorf("parse quota: %w", err)
	}

	return result.UsedBytes, result.TotalBytes, nil
}

// PostJSON sends a JSON request outside the slot API, used by the auth
// service for the login exchange. It bypasses the gate: login is what makes
// the gate ready.
func (s *HTTPStore) PostJSON(ctx context.Context, path string, payload interface{}) (map[string]interface{}, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", models.ErrRemoteUnavailable, err)
	}

	if err := statusError(resp.StatusCode, respBody); err != nil {
		return nil, err
	}

	var result map[string]interface{}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return result, nil
}

// Close releases resources.
func (s *HTTPStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *HTTPStore) slotURL(slot int) string {
	return fmt.Sprintf("%s/api/v1/slots/%d", s.baseURL, slot)
}

// do executes a request with retry on transient failures, mapping the result
// into the engine's error taxonomy.
func (s *HTTPStore) do(ctx context.Context, method, url string, body []byte, headers http.Header) (*http.Response, []byte, error) {
	if err := s.gate.Check(); err != nil {
		return nil, nil, err
	}

	var resp *http.Response
	var respBody []byte

	err := s.retry(ctx, func() error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}

		req.Header.Set("User-Agent", s.userAgent)
		if s.token != "" {
			req.Header.Set("Authorization", "Bearer "+s.token)
		}
		for k, vs := range headers {
			for _, v := range vs {
				req.Header.Set(k, v)
			}
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/octet-stream")
		}

		r, err := s.client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %v", models.ErrRemoteUnavailable, err)
		}
		defer r.Body.Close()

		data, err := io.ReadAll(r.Body)
		if err != nil {
			return fmt.Errorf("%w: read response: %v", models.ErrRemoteUnavailable, err)
		}

		if retryableStatus(r.StatusCode) {
			return fmt.Errorf("%w: server error %d", models.ErrRemoteUnavailable, r.StatusCode)
		}

		if err := statusError(r.StatusCode, data); err != nil {
			return err
		}

		resp = r
		respBody = data
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return resp, respBody, nil
}

// retry executes fn with exponential backoff on retryable errors.
func (s *HTTPStore) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := s.retryDelay

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			s.logger.WithFields(map[string]interface{}{
				"attempt": attempt,
				"delay":   delay,
			}).Debug("Retrying request")

			select {
			case <-time.After(delay):
				delay *= 2
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", models.ErrRemoteUnavailable, ctx.Err())
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !models.IsRetryable(err) {
			return err
		}
	}

	return lastErr
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status < 600)
}

// statusError maps terminal HTTP statuses into the error taxonomy.
func statusError(status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return models.ErrSlotNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d: %s", models.ErrRemoteRejected, status, bytes.TrimSpace(body))
	case status == http.StatusRequestEntityTooLarge || status == http.StatusInsufficientStorage:
		return fmt.Errorf("%w: HTTP %d: %s", models.ErrQuotaExceeded, status, bytes.TrimSpace(body))
	default:
		return fmt.Errorf("%w: HTTP %d: %s", models.ErrRemoteRejected, status, bytes.TrimSpace(body))
	}
}

// headersFromMeta encodes slot metadata into request headers.
func headersFromMeta(meta *models.SlotMetadata) (http.Header, error) {
	if err := meta.Validate(); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}

	player, err := json.Marshal(meta.Player)
	if err != nil {
		return nil, fmt.Errorf("marshal player summary: %w", err)
	}

	h := http.Header{}
	h.Set(headerChecksum, meta.Checksum)
	h.Set(headerModified, meta.LastModified.UTC().Format(time.RFC3339Nano))
	h.Set(headerSize, strconv.FormatInt(meta.SizeBytes, 10))
	h.Set(headerPlayer, string(player))
	h.Set(headerFavorite, strconv.FormatBool(meta.Favorite))
	return h, nil
}

// metaFromHeaders decodes slot metadata from response headers.
func metaFromHeaders(slot int, h http.Header) (*models.SlotMetadata, error) {
	checksum := h.Get(headerChecksum)
	if checksum == "" {
		return nil, errors.New("response missing checksum header")
	}

	modified, err := time.Parse(time.RFC3339Nano, h.Get(headerModified))
	if err != nil {
		return nil, fmt.Errorf("parse modified header: %w", err)
	}

	size, err := strconv.ParseInt(h.Get(headerSize), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse size header: %w", err)
	}

	meta := &models.SlotMetadata{
		SlotNumber:   slot,
		Checksum:     checksum,
		LastModified: modified,
		SizeBytes:    size,
		Favorite:     h.Get(headerFavorite) == "true",
	}

	if player := h.Get(headerPlayer); player != "" {
		if err := json.Unmarshal([]byte(player), &meta.Player); err != nil {
			return nil, fmt.Errorf("parse player header: %w", err)
		}
	}

	return meta, nil
}
