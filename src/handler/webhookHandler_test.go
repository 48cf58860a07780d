package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"botexecutor/src/controller"
	"botexecutor/src/model"
	"botexecutor/src/security"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockBots struct {
	bot *model.Bot
	err error
}

func (m *mockBots) FindByID(_ context.Context, id uint) (*model.Bot, error) {
	if m.bot == nil || m.bot.ID != id {
		return nil, m.err
	}
	return m.bot, m.err
}

type mockSignals struct {
	created   []*model.WebhookSignal
	processed []uint
	err       error
}

func (m *mockSignals) Create(_ context.Context, signal *model.WebhookSignal) error {
	if m.err != nil {
		return m.err
	}
	signal.ID = uint(len(m.created) + 1)
	m.created = append(m.created, signal)
	return nil
}

func (m *mockSignals) MarkProcessed(_ context.Context, id uint, _, _, _ int, _ time.Time) error {
	m.processed = append(m.processed, id)
	return nil
}

type mockActivator struct {
	botIDs []uint
}

func (m *mockActivator) Activate(_ context.Context, botID *uint, _ string) (*controller.StopResult, error) {
	m.botIDs = append(m.botIDs, *botID)
	return &controller.StopResult{Scope: model.StopScopeBot, BotID: botID}, nil
}

type mockDispatcher struct {
	dispatched []*model.WebhookSignal
}

func (m *mockDispatcher) Dispatch(signal *model.WebhookSignal) {
	m.dispatched = append(m.dispatched, signal)
}

type webhookFixture struct {
	bots       *mockBots
	signals    *mockSignals
	stops      *mockActivator
	dispatcher *mockDispatcher
	handler    http.HandlerFunc
}

func newWebhookFixture(bot *model.Bot, globalPassphrase string) *webhookFixture {
	f := &webhookFixture{
		bots:       &mockBots{bot: bot},
		signals:    &mockSignals{},
		stops:      &mockActivator{},
		dispatcher: &mockDispatcher{},
	}
	f.handler = WebhookSignalHandler(WebhookDeps{
		Bots:       f.bots,
		Signals:    f.signals,
		Stops:      f.stops,
		Dispatcher: f.dispatcher,
		Passphrase: globalPassphrase,
	})
	return f
}

func (f *webhookFixture) post(body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook/signal", strings.NewReader(body))
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func niftyBot() *model.Bot {
	return &model.Bot{ID: 1, Name: "nifty-momentum", Symbol: "NIFTYFUT", Exchange: "NFO", Active: true}
}

func TestWebhookSignalHandler_Accepted(t *testing.T) {
	f := newWebhookFixture(niftyBot(), "global-secret")

	rr := f.post(`{"botId":1,"symbol":"nfo:niftyfut","side":"buy","price":22150.5,"passphrase":"global-secret"}`)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["signalId"])

	require.Len(t, f.signals.created, 1)
	signal := f.signals.created[0]
	assert.Equal(t, "NIFTYFUT", signal.Symbol)
	assert.Equal(t, "NFO", signal.Exchange)
	assert.Equal(t, model.SideBuy, signal.Side)
	assert.Contains(t, signal.RawPayload, `"passphrase":"global-secret"`)

	require.Len(t, f.dispatcher.dispatched, 1)
	assert.Same(t, signal, f.dispatcher.dispatched[0])
}

func TestWebhookSignalHandler_BotPassphraseWins(t *testing.T) {
	bot := niftyBot()
	hashed, err := security.HashPassphrase("bot-secret")
	require.NoError(t, err)
	bot.WebhookPassphrase = hashed
	f := newWebhookFixture(bot, "global-secret")

	rr := f.post(`{"botId":1,"symbol":"NIFTYFUT","side":"SELL","price":"100","passphrase":"global-secret"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}

	rr = f.post(`{"botId":1,"symbol":"NIFTYFUT","side":"SELL","price":"100","passphrase":"bot-secret"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d", rr.Code)
	}
	assert.Len(t, f.signals.created, 1)
}

func TestWebhookSignalHandler_Rejections(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"botId":`, http.StatusBadRequest},
		{"missing side", `{"botId":1,"symbol":"X","price":1,"passphrase":"p"}`, http.StatusBadRequest},
		{"negative price", `{"botId":1,"symbol":"X","side":"BUY","price":-1,"passphrase":"p"}`, http.StatusBadRequest},
		{"unknown bot", `{"botId":99,"symbol":"X","side":"BUY","price":1,"passphrase":"p"}`, http.StatusNotFound},
		{"wrong passphrase", `{"botId":1,"symbol":"X","side":"BUY","price":1,"passphrase":"nope"}`, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newWebhookFixture(niftyBot(), "p")
			rr := f.post(tt.body)
			if rr.Code != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, rr.Code)
			}
			assert.Empty(t, f.signals.created)
			assert.Empty(t, f.dispatcher.dispatched)
		})
	}
}

func TestWebhookSignalHandler_InactiveBot(t *testing.T) {
	bot := niftyBot()
	bot.Active = false
	f := newWebhookFixture(bot, "")

	rr := f.post(`{"botId":1,"symbol":"X","side":"BUY","price":1}`)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestWebhookSignalHandler_EmergencyStop(t *testing.T) {
	f := newWebhookFixture(niftyBot(), "p")

	rr := f.post(`{"botId":1,"emergencyStop":true,"passphrase":"p"}`)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected status 202, got %d: %s", rr.Code, rr.Body.String())
	}

	assert.Equal(t, []uint{1}, f.stops.botIDs)
	assert.Empty(t, f.dispatcher.dispatched)
	require.Len(t, f.signals.created, 1)
	assert.True(t, f.signals.created[0].EmergencyStop)
	assert.Equal(t, "NIFTYFUT", f.signals.created[0].Symbol)
	assert.Equal(t, []uint{1}, f.signals.processed)
}

func TestWebhookSignalHandler_StoreError(t *testing.T) {
	f := newWebhookFixture(niftyBot(), "")
	f.signals.err = errors.New("db down")

	rr := f.post(`{"botId":1,"symbol":"X","side":"BUY","price":1}`)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}
	assert.Empty(t, f.dispatcher.dispatched)
}
