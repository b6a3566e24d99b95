package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/M-24rjgc/cognical/internal/schema"
	"github.com/M-24rjgc/cognical/models"
	"github.com/M-24rjgc/cognical/types"
)

// Remote talks JSON over HTTP to the planning collaborator's bridge. Every
// request is validated before it leaves and every response before it is
// trusted.
type Remote struct {
	endpoint   string
	httpClient *http.Client
}

// NewRemote creates a remote gateway against the given bridge endpoint.
func NewRemote(endpoint string, timeout time.Duration) *Remote {
	return &Remote{
		endpoint: strings.TrimRight(endpoint, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// wireError is the error body the bridge returns on a non-2xx status.
type wireError struct {
	Code          string         `json:"code"`
	Message       string         `json:"message"`
	Details       map[string]any `json:"details,omitempty"`
	CorrelationID string         `json:"correlationId,omitempty"`
}

func (r *Remote) Generate(ctx context.Context, input models.GeneratePlanInput) (*models.PlanningSessionView, error) {
	if err := schema.CheckGenerateInput(&input); err != nil {
		return nil, validationFailed(err)
	}
	var view models.PlanningSessionView
	if err := r.do(ctx, http.MethodPost, "/v1/planning/generate", input, &view); err != nil {
		return nil, Normalize(err)
	}
	schema.NormalizeSessionView(&view)
	if err := schema.CheckSessionView(&view); err != nil {
		return nil, upstreamMalformed(err)
	}
	return &view, nil
}

func (r *Remote) Apply(ctx context.Context, input models.ApplyPlanInput) (*models.AppliedPlan, error) {
	if err := schema.CheckApplyInput(&input); err != nil {
		return nil, validationFailed(err)
	}
	var applied models.AppliedPlan
	if err := r.do(ctx, http.MethodPost, "/v1/planning/apply", input, &applied); err != nil {
		return nil, Normalize(err)
	}
	schema.NormalizeOptionView(&applied.Option)
	if err := schema.CheckAppliedPlan(&applied); err != nil {
		return nil, upstreamMalformed(err)
	}
	return &applied, nil
}

func (r *Remote) ResolveConflicts(ctx context.Context, input models.ResolveConflictsInput) (*models.PlanningSessionView, error) {
	if err := schema.CheckResolveInput(&input); err != nil {
		return nil, validationFailed(err)
	}
	var view models.PlanningSessionView
	if err := r.do(ctx, http.MethodPost, "/v1/planning/resolve-conflicts", input, &view); err != nil {
		return nil, Normalize(err)
	}
	schema.NormalizeSessionView(&view)
	if err := schema.CheckSessionView(&view); err != nil {
		return nil, upstreamMalformed(err)
	}
	return &view, nil
}

func (r *Remote) GetPreferences(ctx context.Context, preferenceID string) (*models.PreferenceSnapshot, error) {
	id := schema.ResolvePreferenceID(preferenceID)
	var snapshot models.PreferenceSnapshot
	path := "/v1/planning/preferences/" + url.PathEscape(id)
	if err := r.do(ctx, http.MethodGet, path, nil, &snapshot); err != nil {
		return nil, Normalize(err)
	}
	if err := schema.CheckPreferences(&snapshot); err != nil {
		return nil, upstreamMalformed(err)
	}
	return &snapshot, nil
}

func (r *Remote) UpdatePreferences(ctx context.Context, preferenceID string, snapshot models.PreferenceSnapshot) error {
	if err := schema.CheckPreferences(&snapshot); err != nil {
		return validationFailed(err)
	}
	id := schema.ResolvePreferenceID(preferenceID)
	path := "/v1/planning/preferences/" + url.PathEscape(id)
	if err := r.do(ctx, http.MethodPut, path, snapshot, nil); err != nil {
		return Normalize(err)
	}
	return nil
}

// do performs one round trip. Non-2xx responses are decoded into the wire
// error shape when possible, otherwise mapped from the HTTP status.
func (r *Remote) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return types.NewAppError(types.ErrRequestMalformed, fmt.Sprintf("encode request: %v", err), nil)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.endpoint+path, body)
	if err != nil {
		return types.NewAppError(types.ErrRequestMalformed, fmt.Sprintf("build request: %v", err), nil)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return types.NewAppError(types.ErrConnectivityUnavailable, err.Error(), nil)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return types.NewAppError(types.ErrUpstreamUnavailable, fmt.Sprintf("read response: %v", err), nil)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return r.decodeError(resp.StatusCode, raw)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return types.NewAppError(types.ErrUpstreamMalformed, fmt.Sprintf("decode response: %v", err), nil)
	}
	return nil
}

func (r *Remote) decodeError(status int, raw []byte) error {
	var wire wireError
	if err := json.Unmarshal(raw, &wire); err == nil && wire.Code != "" {
		return &types.AppError{
			Code:          types.ErrorCode(wire.Code),
			Message:       wire.Message,
			Details:       wire.Details,
			CorrelationID: wire.CorrelationID,
		}
	}
	return types.NewAppError(codeForStatus(status), strings.TrimSpace(string(raw)), nil)
}

func codeForStatus(status int) types.ErrorCode {
	switch {
	case status == http.StatusNotFound:
		return types.ErrNotFound
	case status == http.StatusConflict:
		return types.ErrConflict
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return types.ErrPermissionDenied
	case status == http.StatusTooManyRequests:
		return types.ErrUpstreamRateLimited
	case status >= 400 && status < 500:
		return types.ErrRequestMalformed
	case status >= 500:
		return types.ErrUpstreamUnavailable
	default:
		return types.ErrUnknown
	}
}
