package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cuemby/autoheal/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockReconciler is a mock implementation of Reconciler
type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Reconcile(ctx context.Context, payload []byte) (*types.Result, error) {
	args := m.Called(ctx, string(payload))
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Result), args.Error(1)
}

func post(t *testing.T, s *Server, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/alarms", strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)
	return rec
}

func TestHandleAlarm(t *testing.T) {
	depErr := &types.DependencyError{Source: types.SourceOrchestrator, Op: "ListTasks", Err: errors.New("throttled")}

	tests := []struct {
		name     string
		result   *types.Result
		err      error
		wantCode int
		wantBody string
	}{
		{
			name:     "remediated",
			result:   &types.Result{KilledInstances: []string{"task-A"}},
			wantCode: http.StatusOK,
			wantBody: `{"killedInstances":["task-A"],"outcomes":[],"unresolvedTargets":[],"inconsistencies":[]}`,
		},
		{
			name:     "status result",
			result:   types.NewStatusResult(types.StatusNoUnhealthyTargets),
			wantCode: http.StatusOK,
			wantBody: `{"status":"no-unhealthy-targets"}`,
		},
		{
			name:     "malformed",
			err:      types.NewMalformedEvent("no target group"),
			wantCode: http.StatusBadRequest,
			wantBody: `{"error":"malformed event: no target group"}`,
		},
		{
			name:     "dependency",
			err:      fmt.Errorf("failed to list running instances: %w", depErr),
			wantCode: http.StatusBadGateway,
		},
		{
			name:     "unexpected",
			err:      errors.New("boom"),
			wantCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := new(MockReconciler)
			if tt.result != nil {
				rec.On("Reconcile", mock.Anything, `{"detail":{}}`).Return(tt.result, nil)
			} else {
				rec.On("Reconcile", mock.Anything, `{"detail":{}}`).Return(nil, tt.err)
			}

			resp := post(t, NewServer(":0", rec, ""), `{"detail":{}}`, nil)

			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, "application/json", resp.Header().Get("Content-Type"))
			if tt.wantBody != "" {
				assert.JSONEq(t, tt.wantBody, resp.Body.String())
			}
			rec.AssertExpectations(t)
		})
	}
}

func TestHandleSubscriptionConfirmation(t *testing.T) {
	rec := new(MockReconciler)
	s := NewServer(":0", rec, "")

	body := `{"Type":"SubscriptionConfirmation","TopicArn":"arn:aws:sns:us-east-1:123456789012:alarms","SubscribeURL":"https://sns.us-east-1.amazonaws.com/?Action=ConfirmSubscription"}`
	resp := post(t, s, body, map[string]string{"x-amz-sns-message-type": "SubscriptionConfirmation"})

	assert.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"status":"acknowledged"}`, resp.Body.String())
	rec.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
}

func TestHandleAlarmAuth(t *testing.T) {
	tests := []struct {
		name     string
		header   map[string]string
		wantCode int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong scheme", map[string]string{"Authorization": "Basic c2VjcmV0"}, http.StatusUnauthorized},
		{"wrong token", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized},
		{"valid", map[string]string{"Authorization": "Bearer s3cret"}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := new(MockReconciler)
			rec.On("Reconcile", mock.Anything, mock.Anything).Return(&types.Result{}, nil).Maybe()

			resp := post(t, NewServer(":0", rec, "s3cret"), `{}`, tt.header)
			assert.Equal(t, tt.wantCode, resp.Code)
		})
	}
}

func TestHandleAlarmTooLarge(t *testing.T) {
	rec := new(MockReconciler)

	resp := post(t, NewServer(":0", rec, ""), strings.Repeat("x", maxBodyBytes+1), nil)

	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.Code)
	rec.AssertNotCalled(t, "Reconcile", mock.Anything, mock.Anything)
}

func TestOperationalEndpoints(t *testing.T) {
	s := NewServer(":0", new(MockReconciler), "")

	for _, path := range []string{"/health", "/ready", "/live", "/metrics"} {
		t.Run(path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			s.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			// /health and /ready depend on global component state; they must answer either way
			assert.Contains(t, []int{http.StatusOK, http.StatusServiceUnavailable}, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alive", body["status"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{types.NewMalformedEvent("x"), http.StatusBadRequest},
		{&types.DependencyError{Source: types.SourceLoadBalancer, Err: errors.New("x")}, http.StatusBadGateway},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("x"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestStartShutsDownOnCancel(t *testing.T) {
	s := NewServer("127.0.0.1:0", new(MockReconciler), "")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	cancel()

	assert.NoError(t, <-done)
}
