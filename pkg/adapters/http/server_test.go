package http_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/quarry"
	quarryhttp "github.com/aretw0/quarry/pkg/adapters/http"
	"github.com/aretw0/quarry/pkg/adapters/memory"
	"github.com/aretw0/quarry/pkg/domain"
	"github.com/aretw0/quarry/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var housing = domain.Ingestion{
	Headers:       []string{"house_age", "rooms", "income", "price"},
	SampleRows:    [][]string{{"30", "3", "1000", "250000"}},
	SourceLabel:   "housing.csv",
	FileReference: "/data/housing.csv",
}

func stubLoader(ctx context.Context, ref string) (domain.Ingestion, error) {
	if ref != "housing.csv" {
		return domain.Ingestion{}, errors.New("no such file")
	}
	return housing, nil
}

func newHandler(t *testing.T, opts ...quarryhttp.Option) http.Handler {
	t.Helper()
	mgr := session.NewManager(memory.NewStore(), quarry.New())
	opts = append([]quarryhttp.Option{
		quarryhttp.WithStreamDelay(0),
		quarryhttp.WithDatasetLoader(stubLoader),
	}, opts...)
	h, err := quarryhttp.NewHandler(mgr, opts...)
	require.NoError(t, err)
	return h
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) quarryhttp.SessionView {
	t.Helper()
	var view quarryhttp.SessionView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	return view
}

func send(t *testing.T, h http.Handler, id string, ev any) quarryhttp.SessionView {
	t.Helper()
	w := do(t, h, http.MethodPost, "/sessions/"+id+"/events", ev)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decodeView(t, w)
}

func TestServer_Flow(t *testing.T) {
	h := newHandler(t)

	w := do(t, h, http.MethodPost, "/sessions", map[string]string{"session_id": "s1"})
	require.Equal(t, http.StatusCreated, w.Code)
	view := decodeView(t, w)
	assert.Equal(t, domain.PhaseActionSelect, view.Session.Phase)
	assert.NotEmpty(t, view.Suggestions)

	send(t, h, "s1", domain.SelectAction(domain.QueryRecommend))
	view = send(t, h, "s1", map[string]any{"type": "ingest", "source": "housing.csv"})
	assert.Equal(t, domain.PhaseDropColumns, view.Session.Phase)

	w = do(t, h, http.MethodGet, "/sessions/s1/query", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	send(t, h, "s1", domain.DropColumns())
	send(t, h, "s1", domain.Utterance("maximize income"))
	send(t, h, "s1", domain.Finish())
	send(t, h, "s1", domain.Utterance("recommend on rooms"))
	send(t, h, "s1", domain.Finish())
	view = send(t, h, "s1", domain.Utterance("classification"))
	assert.True(t, view.Session.Completed())

	w = do(t, h, http.MethodGet, "/sessions/s1/query", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "housing.csv_recommend", doc["key"])
	assert.Equal(t, "classification", doc["task_type"])
	assert.Equal(t, map[string]any{"income": "maximize"}, doc["target"])
	assert.Equal(t, map[string]any{"rooms": true}, doc["query_features"])

	w = do(t, h, http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["s1"]`, w.Body.String())

	w = do(t, h, http.MethodDelete, "/sessions/s1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, h, http.MethodGet, "/sessions/s1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_CreateWithoutBody(t *testing.T) {
	h := newHandler(t)
	w := do(t, h, http.MethodPost, "/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, decodeView(t, w).Session.ID)
}

func TestServer_Errors(t *testing.T) {
	h := newHandler(t)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/sessions", map[string]string{"session_id": "s2"}).Code)

	tests := []struct {
		name   string
		path   string
		body   any
		status int
	}{
		{"UnknownSession", "/sessions/ghost/events", domain.Utterance("hi"), http.StatusNotFound},
		{"InvalidAction", "/sessions/s2/events", map[string]string{"type": "select_action", "action": "predict"}, http.StatusBadRequest},
		{"UnknownEvent", "/sessions/s2/events", map[string]string{"type": "jump"}, http.StatusBadRequest},
		{"IngestWithoutSource", "/sessions/s2/events", map[string]string{"type": "ingest"}, http.StatusBadRequest},
		{"MissingSource", "/sessions/s2/events", map[string]string{"type": "ingest", "source": "other.csv"}, http.StatusBadRequest},
		{"OversizedInput", "/sessions/s2/events", domain.Utterance(strings.Repeat("a", 5000)), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}

	t.Run("InputDisabled", func(t *testing.T) {
		send(t, h, "s2", domain.SelectAction(domain.QueryWhatIf))
		w := do(t, h, http.MethodPost, "/sessions/s2/events", domain.Utterance("hello"))
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("FormEntry", func(t *testing.T) {
		send(t, h, "s2", map[string]any{"type": "ingest", "source": "housing.csv"})
		send(t, h, "s2", domain.DropColumns())
		w := do(t, h, http.MethodPost, "/sessions/s2/events", domain.SubmitForm("rooms", 5, 1))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
}

func TestServer_DefaultLoaderStaysInRoot(t *testing.T) {
	mgr := session.NewManager(memory.NewStore(), quarry.New())
	h, err := quarryhttp.NewHandler(mgr, quarryhttp.WithStreamDelay(0))
	require.NoError(t, err)

	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/sessions", map[string]string{"session_id": "d1"}).Code)
	send(t, h, "d1", domain.SelectAction(domain.QueryRecommend))

	for _, source := range []string{"/etc/passwd", "../../../../etc/passwd", "http://169.254.169.254/latest/meta-data"} {
		t.Run(source, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/sessions/d1/events", map[string]string{"type": "ingest", "source": source})
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "not allowed")
			assert.NotContains(t, w.Body.String(), "root:")
		})
	}
}

func TestServer_EscapedSessionID(t *testing.T) {
	h := newHandler(t)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/sessions", map[string]string{"session_id": "team/a"}).Code)

	w := do(t, h, http.MethodGet, "/sessions/team%2Fa", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "team/a", decodeView(t, w).Session.ID)

	w = do(t, h, http.MethodGet, "/sessions/team%2Fa/suggestions", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestServer_Suggestions(t *testing.T) {
	h := newHandler(t)
	do(t, h, http.MethodPost, "/sessions", map[string]string{"session_id": "s3"})
	send(t, h, "s3", domain.SelectAction(domain.QueryRecommend))
	send(t, h, "s3", map[string]any{"type": "ingest", "source": "housing.csv"})
	send(t, h, "s3", domain.DropColumns())

	w := do(t, h, http.MethodGet, "/sessions/s3/suggestions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got []string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Contains(t, got, "Maximize income")
}

func TestServer_Info(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newHandler(t, quarryhttp.WithMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	w := do(t, h, http.MethodGet, "/info", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var info map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, strings.TrimSpace(quarry.Version), info["version"])
	assert.Equal(t, "0.3.0", info["api_version"])

	w = do(t, h, http.MethodGet, "/openapi.yaml", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"openapi":"3.0.3"`)

	doc, err := quarryhttp.GetSwagger()
	require.NoError(t, err)
	require.NoError(t, doc.Validate(context.Background()))
	assert.NotNil(t, doc.Paths.Find("/sessions/{sessionId}/events"))

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/metrics", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", nil).Code)
}

func TestServer_RequestValidation(t *testing.T) {
	h := newHandler(t, quarryhttp.WithRequestValidation(true))
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/sessions", map[string]string{"session_id": "v1"}).Code)

	w := do(t, h, http.MethodPost, "/sessions/v1/events", map[string]string{"type": "teleport"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/sessions/v1/events", map[string]any{"text": "missing type"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	send(t, h, "v1", domain.SelectAction(domain.QueryModify))
}

func TestServer_Stream(t *testing.T) {
	srv := httptest.NewServer(newHandler(t))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/sessions", "application/json", strings.NewReader(`{"session_id":"live"}`))
	require.NoError(t, err)
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/sessions/live/stream", nil)
	require.NoError(t, err)
	stream, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer stream.Body.Close()

	events := make(chan string, 256)
	go func() {
		defer close(events)
		scanner := bufio.NewScanner(stream.Body)
		for scanner.Scan() {
			events <- scanner.Text()
		}
	}()

	require.Equal(t, "event: ping", <-events)

	body := fmt.Sprintf(`{"type":"select_action","action":%q}`, domain.QueryRecommend)
	resp, err = http.Post(srv.URL+"/sessions/live/events", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var sawDiff, sawToken bool
	for line := range events {
		switch {
		case line == "event: diff":
			sawDiff = true
		case line == "event: token":
			sawToken = true
		}
		if sawDiff && sawToken {
			break
		}
	}
	assert.True(t, sawDiff, "expected a diff event")
	assert.True(t, sawToken, "expected a token event")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, quarryhttp.StatusFor(fmt.Errorf("load: %w", domain.ErrSessionNotFound)))
	assert.Equal(t, http.StatusConflict, quarryhttp.StatusFor(domain.ErrInputDisabled))
	assert.Equal(t, http.StatusUnprocessableEntity, quarryhttp.StatusFor(&domain.FormEntryError{Reason: "x"}))
	assert.Equal(t, http.StatusBadRequest, quarryhttp.StatusFor(domain.ErrNoHeaders))
	assert.Equal(t, http.StatusInternalServerError, quarryhttp.StatusFor(errors.New("disk full")))
}
