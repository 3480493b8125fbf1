package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	app "vision-inspector/internal/application"
	"vision-inspector/internal/domain/entity"
	"vision-inspector/internal/infrastructure/gpio"
	"vision-inspector/internal/infrastructure/storage"
)

type staticCamera struct{ frame *entity.Frame }

func (c staticCamera) Capture(context.Context, entity.CaptureHints) (*entity.Frame, error) {
	return c.frame.Clone(), nil
}

type staticLoader struct{ frame *entity.Frame }

func (l staticLoader) LoadReference(context.Context, string) (*entity.Frame, error) {
	return l.frame, nil
}

func areaProgram(id string) *entity.Program {
	return &entity.Program{
		ID:        id,
		Trigger:   entity.Trigger{Mode: entity.TriggerInternal, IntervalMS: 10000},
		Reference: "ref",
		Tools: []entity.ToolConfig{
			{ID: "area", Kind: entity.ToolArea, ROI: entity.ROI{W: 10, H: 10}, Threshold: 40},
		},
	}
}

func newServer(t *testing.T) (*httptest.Server, *storage.MemoryRepository) {
	t.Helper()
	frame := entity.NewFrame(10, 10)
	frame.Fill(entity.ROI{X: 0, Y: 5, W: 10, H: 5}, 255, 255, 255)

	repo := storage.NewMemoryRepository(50)
	engine := app.NewEngine(app.Deps{
		Camera:  staticCamera{frame: frame},
		Loader:  staticLoader{frame: frame},
		Outputs: gpio.NewSimulatedDriver(nil),
		Sink:    repo,
		Pulse:   10 * time.Millisecond,
	})
	t.Cleanup(func() { _ = engine.Close() })
	require.NoError(t, repo.SaveProgram(context.Background(), areaProgram("caps")))

	h := &Handler{Inspection: app.NewInspectionService(engine, repo, repo)}
	srv := httptest.NewServer(NewRouter(h, 5*time.Second))
	t.Cleanup(srv.Close)
	return srv, repo
}

func do(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestRunLifecycle(t *testing.T) {
	srv, repo := newServer(t)

	resp, _ := do(t, http.MethodPost, srv.URL+"/run/start", startRequest{ProgramID: "caps"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := do(t, http.MethodGet, srv.URL+"/status", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "running", body["state"])
	require.Equal(t, "caps", body["program_id"])

	resp, _ = do(t, http.MethodPost, srv.URL+"/run/trigger", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Eventually(t, func() bool {
		list, _ := repo.ListResults(context.Background(), "caps", 10)
		return len(list) == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp, body = do(t, http.MethodGet, srv.URL+"/statistics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 1, body["total"])
	require.EqualValues(t, 1, body["ok"])

	resp, body = do(t, http.MethodPost, srv.URL+"/run/start", startRequest{ProgramID: "caps"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "INVALID_TRANSITION", body["code"])

	resp, body = do(t, http.MethodPost, srv.URL+"/run/pause", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "paused", body["state"])

	resp, body = do(t, http.MethodPost, srv.URL+"/run/trigger", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "NOT_RUNNING", body["code"])

	resp, _ = do(t, http.MethodPost, srv.URL+"/run/stop", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats, ok := repo.LastStatistics("caps")
	require.True(t, ok)
	require.EqualValues(t, 1, stats.Total)
}

func TestStartErrors(t *testing.T) {
	srv, _ := newServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/run/start", startRequest{ProgramID: "missing"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, "NOT_FOUND", body["code"])

	resp, _ = do(t, http.MethodPost, srv.URL+"/run/start", map[string]string{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodPost, srv.URL+"/run/stop", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestProgramCRUD(t *testing.T) {
	srv, _ := newServer(t)

	resp, _ := do(t, http.MethodPost, srv.URL+"/programs/", areaProgram("bolts"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := do(t, http.MethodGet, srv.URL+"/programs/bolts", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "bolts", body["id"])

	bad := areaProgram("bolts")
	bad.Tools[0].Threshold = 150
	resp, body = do(t, http.MethodPut, srv.URL+"/programs/bolts", bad)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, "INVALID_PROGRAM", body["code"])
	require.Equal(t, "tools[0].threshold", body["field"])

	resp, _ = do(t, http.MethodPut, srv.URL+"/programs/other", areaProgram("bolts"))
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/programs/bolts", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, http.MethodGet, srv.URL+"/programs/bolts", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRunningProgramIsLocked(t *testing.T) {
	srv, _ := newServer(t)

	resp, _ := do(t, http.MethodPost, srv.URL+"/run/start", startRequest{ProgramID: "caps"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = do(t, http.MethodDelete, srv.URL+"/programs/caps", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestResultsLimit(t *testing.T) {
	srv, _ := newServer(t)

	resp, _ := do(t, http.MethodGet, srv.URL+"/programs/caps/results?limit=zero", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/programs/caps/results", nil)
	require.NoError(t, err)
	r, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer r.Body.Close()
	var list []map[string]any
	require.NoError(t, json.NewDecoder(r.Body).Decode(&list))
	require.Empty(t, list)
}
