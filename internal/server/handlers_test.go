package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus/mailgrab/internal/config"
	"github.com/marcus/mailgrab/internal/fetch"
	"github.com/marcus/mailgrab/internal/provider"
	"github.com/marcus/mailgrab/pkg/types"
)

// stubFetcher returns a scripted outcome and records whether it was called.
type stubFetcher struct {
	outcome fetch.Outcome
	called  bool
	subject string
}

func (f *stubFetcher) Fetch(ctx context.Context, cfg provider.Config, subject string) fetch.Outcome {
	f.called = true
	f.subject = subject
	return f.outcome
}

type stubHistorian struct {
	recorded []string
	entries  []types.HistoryEntry
}

func (h *stubHistorian) Record(provider, outcome string, duration time.Duration) error {
	h.recorded = append(h.recorded, provider+"/"+outcome)
	return nil
}

func (h *stubHistorian) Recent(limit int) ([]types.HistoryEntry, error) {
	if limit < len(h.entries) {
		return h.entries[:limit], nil
	}
	return h.entries, nil
}

func newTestServer(f *stubFetcher, h Historian) *Server {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg := &config.Config{Port: 3000, MaxBodyBytes: 1 << 20, FetchTimeout: 30 * time.Second}
	return New(cfg, f, h, logger)
}

func postFetch(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/fetch", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func validBody() string {
	return `{"provider":"gmail","username":"u@example.com","password":"app-pass","subject":"Invoice #2024"}`
}

func TestFetchSuccess(t *testing.T) {
	msg := &types.NormalizedMessage{
		Subject:  "Invoice #2024",
		From:     "Alice <alice@example.com>",
		To:       "Bob <bob@example.com>",
		Date:     time.Date(2024, 9, 10, 8, 0, 0, 0, time.UTC),
		TextBody: "hello",
	}
	f := &stubFetcher{outcome: fetch.Outcome{Kind: fetch.OutcomeFound, Message: msg}}
	h := &stubHistorian{}
	s := newTestServer(f, h)

	w := postFetch(t, s, validBody())

	require.Equal(t, http.StatusOK, w.Code)
	var resp types.FetchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "Invoice #2024", resp.Data.Subject)
	assert.Equal(t, "hello", resp.Data.TextBody)
	assert.GreaterOrEqual(t, resp.Meta.DurationSeconds, 0.0)

	assert.Equal(t, []string{"gmail/found"}, h.recorded)
	assert.Equal(t, "Invoice #2024", f.subject)
}

func TestFetchMissingFields(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{name: "no provider", body: `{"username":"u","password":"p","subject":"s"}`, want: "provider"},
		{name: "no username", body: `{"provider":"gmail","password":"p","subject":"s"}`, want: "username"},
		{name: "no password", body: `{"provider":"gmail","username":"u","subject":"s"}`, want: "password"},
		{name: "no subject", body: `{"provider":"gmail","username":"u","password":"p"}`, want: "subject"},
		{name: "empty body", body: `{}`, want: "provider, username, password, subject"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &stubFetcher{}
			s := newTestServer(f, nil)

			w := postFetch(t, s, tc.body)

			require.Equal(t, http.StatusBadRequest, w.Code)
			var resp types.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "invalid_request", resp.Error)
			assert.Contains(t, resp.Message, tc.want)
			assert.False(t, f.called, "validation failures must not reach the network")
		})
	}
}

func TestFetchMalformedJSON(t *testing.T) {
	f := &stubFetcher{}
	s := newTestServer(f, nil)

	w := postFetch(t, s, `{"provider":`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, f.called)
}

func TestFetchUnknownProvider(t *testing.T) {
	f := &stubFetcher{}
	s := newTestServer(f, nil)

	w := postFetch(t, s, `{"provider":"aol","username":"u","password":"p","subject":"s"}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp types.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "unknown_provider", resp.Error)
	assert.Contains(t, resp.Message, "gmail, outlook, yahoo")
	assert.False(t, f.called, "unknown providers must not reach the network")
}

func TestFetchOutcomeMapping(t *testing.T) {
	cases := []struct {
		name       string
		outcome    fetch.Outcome
		wantStatus int
		wantError  string
	}{
		{
			name:       "timeout",
			outcome:    fetch.Outcome{Kind: fetch.OutcomeTimedOut},
			wantStatus: http.StatusRequestTimeout,
			wantError:  "timeout",
		},
		{
			name:       "canceled",
			outcome:    fetch.Outcome{Kind: fetch.OutcomeCanceled},
			wantStatus: http.StatusRequestTimeout,
			wantError:  "timeout",
		},
		{
			name:       "auth failed",
			outcome:    fetch.Outcome{Kind: fetch.OutcomeAuthFailed},
			wantStatus: http.StatusUnauthorized,
			wantError:  "authentication_failed",
		},
		{
			name:       "not found",
			outcome:    fetch.Outcome{Kind: fetch.OutcomeNotFound},
			wantStatus: http.StatusNotFound,
			wantError:  "not_found",
		},
		{
			name:       "transport error",
			outcome:    fetch.Outcome{Kind: fetch.OutcomeTransportError, Err: errors.New("failed to open INBOX: broken pipe")},
			wantStatus: http.StatusInternalServerError,
			wantError:  "fetch_failed",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(&stubFetcher{outcome: tc.outcome}, nil)

			w := postFetch(t, s, validBody())

			require.Equal(t, tc.wantStatus, w.Code)
			var resp types.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tc.wantError, resp.Error)
		})
	}
}

func TestCanceledRequestJournaledSeparately(t *testing.T) {
	h := &stubHistorian{}
	s := newTestServer(&stubFetcher{outcome: fetch.Outcome{Kind: fetch.OutcomeCanceled}}, h)

	postFetch(t, s, validBody())

	assert.Equal(t, []string{"gmail/canceled"}, h.recorded)
}

func TestFetchAuthFailureIncludesHelp(t *testing.T) {
	s := newTestServer(&stubFetcher{outcome: fetch.Outcome{Kind: fetch.OutcomeAuthFailed}}, nil)

	w := postFetch(t, s, validBody())

	require.Equal(t, http.StatusUnauthorized, w.Code)
	var resp types.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "https://myaccount.google.com/apppasswords", resp.Help)
	assert.Contains(t, resp.Message, "app-specific password")
}

func TestFetchTransportErrorExposesOnlyText(t *testing.T) {
	s := newTestServer(&stubFetcher{outcome: fetch.Outcome{
		Kind: fetch.OutcomeTransportError,
		Err:  errors.New("failed to search mailbox: BAD syntax"),
	}}, nil)

	w := postFetch(t, s, validBody())

	var resp types.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "failed to search mailbox: BAD syntax", resp.Message)
}

func TestFetchMethodNotAllowed(t *testing.T) {
	s := newTestServer(&stubFetcher{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/fetch", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestFetchBodyTooLarge(t *testing.T) {
	f := &stubFetcher{}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	cfg := &config.Config{Port: 3000, MaxBodyBytes: 64, FetchTimeout: 30 * time.Second}
	s := New(cfg, f, nil, logger)

	body := `{"provider":"gmail","username":"u","password":"p","subject":"` + strings.Repeat("x", 200) + `"}`
	w := postFetch(t, s, body)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, f.called)
}

func TestCORSPreflight(t *testing.T) {
	f := &stubFetcher{}
	s := newTestServer(f, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/fetch", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.False(t, f.called, "preflight must not invoke the core")
}

func TestHealth(t *testing.T) {
	s := newTestServer(&stubFetcher{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestRootDocs(t *testing.T) {
	s := newTestServer(&stubFetcher{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/fetch")
}

func TestCatchAll404(t *testing.T) {
	s := newTestServer(&stubFetcher{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
	var resp types.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not_found", resp.Error)
}

func TestHistoryEndpoint(t *testing.T) {
	h := &stubHistorian{entries: []types.HistoryEntry{
		{ID: 2, Provider: "gmail", Outcome: "found", DurationMS: 1200},
		{ID: 1, Provider: "yahoo", Outcome: "timed_out", DurationMS: 30000},
	}}
	s := newTestServer(&stubFetcher{}, h)

	req := httptest.NewRequest(http.MethodGet, "/api/history?limit=1", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool                 `json:"success"`
		Data    []types.HistoryEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "gmail", resp.Data[0].Provider)
}

func TestHistoryDisabled(t *testing.T) {
	s := newTestServer(&stubFetcher{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHistoryBadLimit(t *testing.T) {
	s := newTestServer(&stubFetcher{}, &stubHistorian{})

	req := httptest.NewRequest(http.MethodGet, "/api/history?limit=zero", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
