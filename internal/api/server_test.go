package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/basicrecords/moodjournal/internal/journal"
	"github.com/basicrecords/moodjournal/internal/storage/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreAnyFunction("github.com/valyala/fasthttp.updateServerDate.func1"))
}

type testServer struct {
	t     *testing.T
	srv   *Server
	clock time.Time
}

// newTestServer starts the clock on Monday 2024-01-01 09:00 UTC.
func newTestServer(t *testing.T) *testServer {
	ts := &testServer{t: t, clock: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	svc := journal.NewService(memory.NewStore(), journal.Options{
		Clock: func() time.Time { return ts.clock },
	})
	ts.srv = NewServer(Config{Addr: ":0", Precision: 1}, svc, nil)
	return ts
}

func (ts *testServer) do(method, path string, body any) (int, map[string]any) {
	ts.t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := ts.srv.App().Test(req, -1)
	require.NoError(ts.t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(ts.t, err)
	out := map[string]any{}
	if len(raw) > 0 && resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(ts.t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func (ts *testServer) createUser(firebaseID string) string {
	status, body := ts.do(http.MethodPost, "/api/v1/users", map[string]any{"firebaseId": firebaseID})
	require.Equal(ts.t, http.StatusCreated, status, body)
	return body["data"].(map[string]any)["id"].(string)
}

func (ts *testServer) createEntry(userID string, mood map[string]any) string {
	status, body := ts.do(http.MethodPost, "/api/v1/entries", map[string]any{
		"userId": userID, "title": "title", "body": "body", "mood": mood,
	})
	require.Equal(ts.t, http.StatusCreated, status, body)
	return body["data"].(map[string]any)["id"].(string)
}

func ids(body map[string]any) []string {
	var out []string
	for _, item := range body["data"].([]any) {
		out = append(out, item.(map[string]any)["id"].(string))
	}
	return out
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	status, body := ts.do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(http.MethodGet, "/healthz", nil)

	resp, err := ts.srv.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "moodjournal_http_request_duration_seconds")
}

func TestUserLifecycle(t *testing.T) {
	ts := newTestServer(t)
	id := ts.createUser("fb-1")

	status, _ := ts.do(http.MethodPost, "/api/v1/users", map[string]any{"firebaseId": "fb-1"})
	assert.Equal(t, http.StatusConflict, status)

	status, body := ts.do(http.MethodGet, "/api/v1/users?firebaseId=fb-1", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{id}, ids(body))

	status, body = ts.do(http.MethodGet, "/api/v1/users?firebaseId=unknown", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body["data"])

	status, _ = ts.do(http.MethodGet, "/api/v1/users", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = ts.do(http.MethodGet, "/api/v1/users/"+id, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = ts.do(http.MethodDelete, "/api/v1/users/"+id, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = ts.do(http.MethodGet, "/api/v1/users/"+id, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestEntryCRUD(t *testing.T) {
	ts := newTestServer(t)
	userID := ts.createUser("fb-1")
	id := ts.createEntry(userID, map[string]any{"happy": 80})

	status, body := ts.do(http.MethodGet, "/api/v1/entries/"+id, nil)
	require.Equal(t, http.StatusOK, status)
	entry := body["data"].(map[string]any)
	assert.Equal(t, "2024-01-01T09:00:00Z", entry["createdAt"])

	ts.clock = ts.clock.Add(time.Hour)
	status, body = ts.do(http.MethodPatch, "/api/v1/entries/"+id, map[string]any{"body": "edited"})
	require.Equal(t, http.StatusOK, status, body)
	entry = body["data"].(map[string]any)
	assert.Equal(t, "edited", entry["body"])
	assert.Equal(t, "title", entry["title"])
	assert.Equal(t, "2024-01-01T09:00:00Z", entry["createdAt"])
	assert.Equal(t, "2024-01-01T10:00:00Z", entry["updatedAt"])

	status, _ = ts.do(http.MethodDelete, "/api/v1/entries/"+id, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = ts.do(http.MethodDelete, "/api/v1/entries/"+id, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCreateEntryRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)
	userID := ts.createUser("fb-1")

	tests := []map[string]any{
		{"userId": userID, "title": "", "body": "b"},
		{"userId": userID, "title": "t", "body": "b", "mood": map[string]any{"happy": 120}},
		{"userId": userID, "title": "t", "body": "b", "mood": map[string]any{"happy": "lots"}},
		{"userId": "ghost", "title": "t", "body": "b"},
	}
	for i, payload := range tests {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			status, body := ts.do(http.MethodPost, "/api/v1/entries", payload)
			assert.Equal(t, http.StatusBadRequest, status)
			assert.NotEmpty(t, body["error"])
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/entries", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.srv.App().Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListEntriesWithMoodFilter(t *testing.T) {
	ts := newTestServer(t)
	userID := ts.createUser("fb-1")
	first := ts.createEntry(userID, map[string]any{"happy": 80})
	ts.clock = ts.clock.Add(time.Minute)
	second := ts.createEntry(userID, map[string]any{"happy": 60})
	ts.clock = ts.clock.AddDate(0, 0, 1)
	third := ts.createEntry(userID, map[string]any{"happy": 10, "anxious": 40})

	status, body := ts.do(http.MethodGet, "/api/v1/entries?userId="+userID, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{third, second, first}, ids(body))

	status, body = ts.do(http.MethodGet, "/api/v1/entries?userId="+userID+"&mood=happy:High", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{second, first}, ids(body))

	status, body = ts.do(http.MethodGet, "/api/v1/entries?userId="+userID+"&mood=happy:High&mood=anxious:medium&limit=2", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{third, second}, ids(body))

	status, body = ts.do(http.MethodGet, "/api/v1/entries?userId="+userID+"&mood=happy:High,happy:High", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["meta"].(map[string]any)["criteria"], 1)

	status, _ = ts.do(http.MethodGet, "/api/v1/entries?mood=happy:Ecstatic", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestWeeklyInsights(t *testing.T) {
	ts := newTestServer(t)
	userID := ts.createUser("fb-1")
	ts.createEntry(userID, map[string]any{"happy": 80})
	ts.createEntry(userID, map[string]any{"happy": 60.5})
	ts.clock = ts.clock.AddDate(0, 0, 1)
	ts.createEntry(userID, map[string]any{"happy": 10})

	status, body := ts.do(http.MethodGet, "/api/v1/insights/weekly?userId="+userID, nil)
	require.Equal(t, http.StatusOK, status, body)
	data := body["data"].(map[string]any)

	aggregate := data["aggregate"].(map[string]any)
	assert.Equal(t, map[string]any{"happy": 70.25}, aggregate["Monday"])
	assert.Equal(t, map[string]any{"happy": 10.0}, aggregate["Tuesday"])
	assert.NotContains(t, aggregate, "Sunday")

	days := data["days"].([]any)
	require.Len(t, days, 2)
	monday := days[0].(map[string]any)
	assert.Equal(t, "Monday", monday["weekday"])
	assert.Equal(t, 70.3, monday["moods"].([]any)[0].(map[string]any)["average"])

	status, body = ts.do(http.MethodGet, "/api/v1/insights/weekly?userId="+userID+"&mood=happy:Low&precision=0", nil)
	require.Equal(t, http.StatusOK, status)
	aggregate = body["data"].(map[string]any)["aggregate"].(map[string]any)
	assert.Len(t, aggregate, 1)
	assert.Contains(t, aggregate, "Tuesday")

	status, _ = ts.do(http.MethodGet, "/api/v1/insights/weekly", nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = ts.do(http.MethodGet, "/api/v1/insights/weekly?userId="+userID+"&precision=many", nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestClassify(t *testing.T) {
	ts := newTestServer(t)

	for score, want := range map[string]string{"0": "Low", "25": "Low", "26": "Medium", "50": "Medium", "51": "High"} {
		status, body := ts.do(http.MethodGet, "/api/v1/moods/classify?score="+score, nil)
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, want, body["data"].(map[string]any)["level"], score)
	}

	for _, score := range []string{"high", "NaN", "Inf", "-Inf", "%2BInf"} {
		status, body := ts.do(http.MethodGet, "/api/v1/moods/classify?score="+score, nil)
		assert.Equal(t, http.StatusBadRequest, status, score)
		assert.Equal(t, "score must be a finite number", body["error"], score)
	}
}

func TestPanicsAreRecoveredAndLogged(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	svc := journal.NewService(memory.NewStore(), journal.Options{})
	srv := NewServer(Config{Addr: ":0"}, svc, zap.New(core))
	srv.App().Get("/boom", func(*fiber.Ctx) error {
		panic("boom")
	})

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/boom", nil), -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	requests := logs.FilterMessage("request").All()
	require.Len(t, requests, 1)
	fields := requests[0].ContextMap()
	assert.Equal(t, "/boom", fields["path"])
	assert.EqualValues(t, http.StatusInternalServerError, fields["status"])
	assert.Len(t, logs.FilterMessage("request failed").All(), 1)
}
