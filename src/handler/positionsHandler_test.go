package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"botexecutor/src/executors"
	"botexecutor/src/model"
	"botexecutor/src/position"
	"botexecutor/src/reconciliation"
	"botexecutor/src/repository"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPositionSearcher struct {
	positions   []model.Position
	byID        map[uint]*model.Position
	err         error
	options     repository.PositionSearchOptions
	calledCount int
}

func (m *mockPositionSearcher) Search(_ context.Context, options repository.PositionSearchOptions) ([]model.Position, error) {
	m.calledCount++
	m.options = options
	return m.positions, m.err
}

func (m *mockPositionSearcher) FindByID(_ context.Context, id uint) (*model.Position, error) {
	return m.byID[id], m.err
}

type mockExiter struct {
	exec   *model.TradeExecution
	err    error
	id     uint
	reason string
	qty    int64
}

func (m *mockExiter) ExitPosition(_ context.Context, positionID uint, reason string, qty int64) (*model.TradeExecution, error) {
	m.id, m.reason, m.qty = positionID, reason, qty
	return m.exec, m.err
}

type mockReconciler struct {
	result reconciliation.Result
	action reconciliation.Action
	err    error
}

func (m *mockReconciler) Reconcile(context.Context, *model.Position) (reconciliation.Result, reconciliation.Action, error) {
	return m.result, m.action, m.err
}

func positionsRouter(repo *mockPositionSearcher, exits *mockExiter, reconciler *mockReconciler) http.Handler {
	r := chi.NewRouter()
	r.Get("/positions", SearchPositionsHandler(repo))
	r.Get("/positions/{id}", GetPositionHandler(repo))
	r.Post("/positions/{id}/exit", ExitPositionHandler(exits))
	r.Post("/positions/{id}/validate", ValidatePositionHandler(repo, reconciler))
	return r
}

func TestSearchPositionsHandler_Filters(t *testing.T) {
	repo := &mockPositionSearcher{positions: []model.Position{{ID: 1, Symbol: "NIFTYFUT"}}}
	handler := positionsRouter(repo, &mockExiter{}, &mockReconciler{})

	req := httptest.NewRequest(http.MethodGet, "/positions?userId=7&botId=2&status=OPEN&limit=10&offset=20", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	assert.Equal(t, uint(7), repo.options.UserID)
	require.NotNil(t, repo.options.BotID)
	assert.Equal(t, uint(2), *repo.options.BotID)
	require.NotNil(t, repo.options.Status)
	assert.Equal(t, "OPEN", *repo.options.Status)
	assert.Equal(t, 10, repo.options.Limit)
	assert.Equal(t, 20, repo.options.Offset)

	var got []model.Position
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Len(t, got, 1)
}

func TestSearchPositionsHandler_DefaultsAndValidation(t *testing.T) {
	repo := &mockPositionSearcher{}
	handler := positionsRouter(repo, &mockExiter{}, &mockReconciler{})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/positions?limit=100000", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	assert.Equal(t, maxLimit, repo.options.Limit)
	assert.Equal(t, "[]\n", rr.Body.String())

	for _, query := range []string{"userId=abc", "botId=-1", "limit=0", "offset=-5"} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/positions?"+query, nil))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected status 400, got %d", query, rr.Code)
		}
	}
	assert.Equal(t, 1, repo.calledCount)
}

func TestGetPositionHandler(t *testing.T) {
	repo := &mockPositionSearcher{byID: map[uint]*model.Position{3: {ID: 3, Symbol: "BANKNIFTYFUT"}}}
	handler := positionsRouter(repo, &mockExiter{}, &mockReconciler{})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/positions/3", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/positions/4", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/positions/x", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestExitPositionHandler(t *testing.T) {
	exits := &mockExiter{exec: &model.TradeExecution{ID: 11, Status: model.ExecutionStatusExecuted}}
	handler := positionsRouter(&mockPositionSearcher{}, exits, &mockReconciler{})

	req := httptest.NewRequest(http.MethodPost, "/positions/5/exit", strings.NewReader(`{"quantity":25}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	assert.Equal(t, uint(5), exits.id)
	assert.Equal(t, model.ExitReasonManual, exits.reason)
	assert.Equal(t, int64(25), exits.qty)

	// empty body exits everything
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/positions/5/exit", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	assert.Equal(t, int64(0), exits.qty)
}

func TestExitPositionHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		exec *model.TradeExecution
		err  error
		want int
	}{
		{"not found", nil, fmt.Errorf("position 5: %w", position.ErrPositionNotFound), http.StatusNotFound},
		{"closed", nil, fmt.Errorf("position 5: %w", position.ErrPositionClosed), http.StatusConflict},
		{"exit in flight", nil, fmt.Errorf("position 5: %w", position.ErrExitInProgress), http.StatusConflict},
		{"too large", nil, fmt.Errorf("position 5: %w", position.ErrExitExceedsQuantity), http.StatusBadRequest},
		{"order failed", &model.TradeExecution{ID: 12, Status: model.ExecutionStatusFailed}, executors.ErrExecutionFailed, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := positionsRouter(&mockPositionSearcher{}, &mockExiter{exec: tt.exec, err: tt.err}, &mockReconciler{})
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/positions/5/exit", strings.NewReader(`{"reason":"EMERGENCY"}`)))
			if rr.Code != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestExitPositionHandler_RejectsUnknownReason(t *testing.T) {
	exits := &mockExiter{}
	handler := positionsRouter(&mockPositionSearcher{}, exits, &mockReconciler{})

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/positions/5/exit", strings.NewReader(`{"reason":"TARGET"}`)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	assert.Zero(t, exits.id)
}

func TestValidatePositionHandler(t *testing.T) {
	repo := &mockPositionSearcher{byID: map[uint]*model.Position{8: {ID: 8}}}
	reconciler := &mockReconciler{
		result: reconciliation.Result{PositionID: 8, ExistsInZerodha: true, LiveQuantity: 50, LivePrice: decimal.NewFromInt(101)},
		action: reconciliation.ActionSynced,
	}
	handler := positionsRouter(repo, &mockExiter{}, reconciler)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/positions/8/validate", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "synced", resp["action"])
	result := resp["result"].(map[string]interface{})
	assert.Equal(t, true, result["existsInZerodha"])
	assert.Equal(t, float64(50), result["liveQuantity"])

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/positions/9/validate", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", rr.Code)
	}
}
