package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mhollis-dev/fieldops-api/internal/dto"
	appErrors "github.com/mhollis-dev/fieldops-api/pkg/errors"
)

// HTTPSyncer drains a device queue against the server's sync endpoints. It
// also implements Prober by polling the health endpoint, so one client serves
// both the Monitor and the Queue.
type HTTPSyncer struct {
	baseURL string
	token   string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPSyncer builds a syncer for the given server. baseURL includes the
// API prefix, e.g. "http://localhost:8080/api/v1".
func NewHTTPSyncer(baseURL, token string, logger *zap.Logger) *HTTPSyncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPSyncer{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

type syncEnvelope struct {
	Data  json.RawMessage  `json:"data"`
	Error *appErrors.Error `json:"error"`
}

// Sync uploads the batch and then triggers a drain, returning the server's
// per-mutation verdicts.
func (s *HTTPSyncer) Sync(ctx context.Context, req dto.PushMutationsRequest) (*dto.DrainResponse, error) {
	if err := s.post(ctx, "/sync/mutations", req, nil); err != nil {
		return nil, err
	}

	var resp dto.DrainResponse
	if err := s.post(ctx, "/sync/drain", dto.DrainRequest{DeviceID: req.DeviceID}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Online implements Prober against the server health endpoint. The health
// route sits outside the API prefix.
func (s *HTTPSyncer) Online(ctx context.Context) bool {
	base := s.baseURL
	if i := strings.Index(base, "/api/"); i > 0 {
		base = base[:i]
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (s *HTTPSyncer) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode sync request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sync request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sync request failed: %w", err)
	}
	defer resp.Body.Close()

	var envelope syncEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode sync response (status %d): %w", resp.StatusCode, err)
	}
	if envelope.Error != nil {
		return appErrors.New(envelope.Error.Code, envelope.Error.Status, envelope.Error.Message)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sync request rejected with status %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode sync payload: %w", err)
		}
	}
	return nil
}
