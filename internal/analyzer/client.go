package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/incidentdesk/pkg/models"
)

// maxErrorBody bounds how much of a failed response is read looking for "detail".
const maxErrorBody = 64 << 10

// Client is the interface for talking to the analysis service.
type Client interface {
	models.AnalysisService
	Health(ctx context.Context) error
}

// HTTPClient implements Client over the service's JSON HTTP API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a new analysis service client.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Analyze(ctx context.Context, req models.AnalyzeRequest) (models.AnalysisResult, error) {
	var out models.AnalysisResult
	if err := c.postJSON(ctx, "/analyze", req, &out); err != nil {
		return models.AnalysisResult{}, err
	}
	return out, nil
}

func (c *HTTPClient) SaveKnowledge(ctx context.Context, req models.KnowledgeSaveRequest) (models.KnowledgeSaveResponse, error) {
	var out models.KnowledgeSaveResponse
	if err := c.postJSON(ctx, "/knowledge/save", req, &out); err != nil {
		return models.KnowledgeSaveResponse{}, err
	}
	return out, nil
}

func (c *HTTPClient) Followup(ctx context.Context, req models.FollowupRequest) (models.FollowupResponse, error) {
	if req.ChatHistory == nil {
		req.ChatHistory = []models.FollowupMessage{}
	}
	var out models.FollowupResponse
	if err := c.postJSON(ctx, "/followup", req, &out); err != nil {
		return models.FollowupResponse{}, err
	}
	return out, nil
}

// Health checks GET /health.
func (c *HTTPClient) Health(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeServiceError(resp)
	}
	return nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeServiceError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s response: %v", ErrInvalidResponse, path, err)
	}
	return nil
}

// decodeServiceError reads a {"detail": ...} body. Detail is only used when it is a
// string; validation failures report it as a list of objects.
func decodeServiceError(resp *http.Response) error {
	svcErr := &ServiceError{StatusCode: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return svcErr
	}

	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return svcErr
	}

	var detail string
	if err := json.Unmarshal(body.Detail, &detail); err == nil {
		svcErr.Detail = detail
	}
	return svcErr
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}

	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
