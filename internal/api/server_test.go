package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/placemap/internal/aggregate"
	"github.com/sells-group/placemap/internal/highlight"
	"github.com/sells-group/placemap/internal/model"
	"github.com/sells-group/placemap/internal/session"
)

type loaderFunc func(ctx context.Context) ([]model.Place, error)

func (f loaderFunc) Load(ctx context.Context) ([]model.Place, error) { return f(ctx) }

func testPlaces() []model.Place {
	mk := func(id, name, designation string, pop, density int64) model.Place {
		return model.Place{
			ID: id, GEOID: id, Name: name, Designation: designation,
			Population: pop, Density: density, CDP: model.IsCDP(designation),
			Income: model.Some(70000.0), PovertyRate: model.Some(9.5),
		}
	}
	return []model.Place{
		mk("0820000", "Denver", "Denver city", 715522, 4621),
		mk("0807850", "Boulder", "Boulder CDP", 108250, 4200),
		mk("0804000", "Aurora", "Aurora city", 386261, 2400),
		mk("0812815", "Castle Pines", "Castle Pines city", 11036, 1100),
		mk("0847070", "Lyons", "Lyons town", 2000, 1500),
	}
}

func staticSource(places []model.Place) loaderFunc {
	return func(context.Context) ([]model.Place, error) { return places, nil }
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func createSession(t *testing.T, h http.Handler, body any) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/sessions", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	info := decode[session.Info](t, rec)
	require.NotEmpty(t, info.ID)
	assert.Equal(t, "/sessions/"+info.ID, rec.Header().Get("Location"))
	return info.ID
}

func waitState(t *testing.T, h http.Handler, id string, want session.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		rec := do(t, h, http.MethodGet, "/sessions/"+id, nil)
		var info struct {
			State string `json:"state"`
		}
		_ = json.Unmarshal(rec.Body.Bytes(), &info)
		return info.State == want.String()
	}, 2*time.Second, 5*time.Millisecond)
}

func readySession(t *testing.T) (http.Handler, string) {
	t.Helper()
	srv := New(context.Background(), staticSource(testPlaces()), Options{TopN: 3})
	h := srv.Handler()
	id := createSession(t, h, nil)
	waitState(t, h, id, session.StateReady)
	return h, id
}

func TestHealth(t *testing.T) {
	srv := New(context.Background(), staticSource(testPlaces()), Options{})
	rec := do(t, srv.Handler(), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","sessions":0}`, rec.Body.String())
}

func TestCreateSession_BadInput(t *testing.T) {
	h := New(context.Background(), staticSource(testPlaces()), Options{}).Handler()

	rec := do(t, h, http.MethodPost, "/sessions", map[string]any{"metric": "area"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/sessions", map[string]any{"top_n": -1})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/sessions", bytes.NewBufferString("{"))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateSession_RateLimited(t *testing.T) {
	srv := New(context.Background(), staticSource(testPlaces()), Options{LoadRate: 0.001, LoadBurst: 2})
	h := srv.Handler()

	createSession(t, h, nil)
	createSession(t, h, nil)

	rec := do(t, h, http.MethodPost, "/sessions", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Equal(t, 2, srv.Registry().Len())
}

func TestUnknownSession(t *testing.T) {
	h := New(context.Background(), staticSource(testPlaces()), Options{}).Handler()

	for _, path := range []string{"/sessions/nope", "/sessions/nope/classes", "/sessions/nope/chart"} {
		rec := do(t, h, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
	}
	rec := do(t, h, http.MethodDelete, "/sessions/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionQueries(t *testing.T) {
	h, id := readySession(t)
	base := "/sessions/" + id

	rec := do(t, h, http.MethodGet, base+"/classes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	classes := decode[struct {
		Metric  string `json:"metric"`
		Classes []struct {
			ID    string `json:"id"`
			Class string `json:"class"`
			Color string `json:"color"`
		} `json:"classes"`
	}](t, rec)
	assert.Equal(t, "population", classes.Metric)
	require.Len(t, classes.Classes, 5)
	assert.Equal(t, "dark-purple", classes.Classes[0].Class)
	assert.Equal(t, "#A143C8", classes.Classes[0].Color)
	assert.Equal(t, "cdp", classes.Classes[1].Class)
	assert.Equal(t, "#808080", classes.Classes[1].Color)

	rec = do(t, h, http.MethodGet, base+"/legend", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	legend := decode[struct {
		Entries []struct {
			Bucket string `json:"bucket"`
			Label  string `json:"label"`
			Count  int    `json:"count"`
		} `json:"entries"`
	}](t, rec)
	require.Len(t, legend.Entries, 7)
	assert.Equal(t, "0-5000", legend.Entries[0].Label)
	assert.Equal(t, 1, legend.Entries[0].Count)

	rec = do(t, h, http.MethodGet, base+"/chart", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	chart := decode[struct {
		Title string `json:"title"`
		Bars  []struct {
			Name string `json:"name"`
		} `json:"bars"`
	}](t, rec)
	assert.Equal(t, "Top 3 Cities by Population", chart.Title)
	require.Len(t, chart.Bars, 3, "session default top_n")
	assert.Equal(t, "Denver", chart.Bars[0].Name)

	rec = do(t, h, http.MethodGet, base+"/chart?n=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, base+"/chart?n=zero", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, base+"/averages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	avg := decode[aggregate.Averages](t, rec)
	// (715522 + 386261 + 11036 + 2000) / 4
	assert.Equal(t, int64(278705), avg.Population)

	rec = do(t, h, http.MethodGet, base+"/places/0807850", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"type":"Census Designated Place"`)
	assert.Contains(t, rec.Body.String(), `"emphasis":"none"`)

	rec = do(t, h, http.MethodGet, base+"/places/9999999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEvents_PinToggleAndHover(t *testing.T) {
	h, id := readySession(t)
	events := "/sessions/" + id + "/events"

	rec := do(t, h, http.MethodPost, events, map[string]string{"kind": "bucket_click", "bucket": "5000-25000"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"queued":false,"changes":[{"id":"0812815","emphasis":"pinned"}]}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, events, map[string]string{"kind": "bucket_click", "bucket": "light", "metric": "population"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queued":false,"changes":[{"id":"0812815","emphasis":"none"}]}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, events, map[string]string{"kind": "pointer_enter", "id": "0820000"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodPost, events, map[string]string{"kind": "pointer_enter", "id": "0804000"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queued":false,"changes":[
		{"id":"0820000","emphasis":"none"},
		{"id":"0804000","emphasis":"hovered"}
	]}`, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/sessions/"+id+"/places/0804000", nil)
	assert.Contains(t, rec.Body.String(), `"emphasis":"hovered"`)
}

func TestEvents_MetricChangeAndDemographics(t *testing.T) {
	h, id := readySession(t)
	base := "/sessions/" + id

	rec := do(t, h, http.MethodGet, base+"/demographics", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/events", map[string]string{"kind": "entity_click", "id": "0820000"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodPost, base+"/events", map[string]string{"kind": "metric_change", "metric": "density"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, base, nil)
	assert.Contains(t, rec.Body.String(), `"metric":"density"`)

	rec = do(t, h, http.MethodGet, base+"/demographics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cmp := decode[aggregate.Comparison](t, rec)
	assert.Equal(t, "0820000", cmp.PlaceID)
	assert.Len(t, cmp.Categories, 5)

	rec = do(t, h, http.MethodGet, base+"/demographics?place=0804000", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"place_id":"0804000"`)
}

func TestEvents_BadInput(t *testing.T) {
	h, id := readySession(t)
	events := "/sessions/" + id + "/events"

	tests := []struct {
		name string
		body map[string]string
	}{
		{"unknown kind", map[string]string{"kind": "double_click"}},
		{"missing id", map[string]string{"kind": "pointer_enter"}},
		{"bad metric", map[string]string{"kind": "bucket_click", "bucket": "light", "metric": "area"}},
		{"metric change without metric", map[string]string{"kind": "metric_change"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, events, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestEvents_UnknownBucketIsNoOp(t *testing.T) {
	h, id := readySession(t)
	events := "/sessions/" + id + "/events"

	for _, kind := range []string{"bucket_enter", "bucket_click", "bucket_leave"} {
		rec := do(t, h, http.MethodPost, events, map[string]string{"kind": kind, "bucket": "huge"})
		require.Equal(t, http.StatusOK, rec.Code, kind)
		resp := decode[struct {
			Queued  bool               `json:"queued"`
			Changes []highlight.Change `json:"changes"`
		}](t, rec)
		assert.False(t, resp.Queued)
		assert.Empty(t, resp.Changes, kind)
	}

	// Same as an unknown place id.
	rec := do(t, h, http.MethodPost, events, map[string]string{"kind": "pointer_enter", "id": "nowhere"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"queued":false,"changes":[]}`, rec.Body.String())
}

func TestDecodeEvent_UnknownBucket(t *testing.T) {
	ev, msg := decodeEvent(eventRequest{Kind: "bucket_click", Bucket: "huge"}, model.MetricDensity)
	assert.Empty(t, msg)
	assert.Equal(t, highlight.KindBucketClick, ev.Kind)
	assert.False(t, ev.Bucket.Valid())
	assert.Equal(t, model.MetricDensity, ev.Metric)
}

func TestSession_LoadingThenReady(t *testing.T) {
	release := make(chan struct{})
	src := loaderFunc(func(ctx context.Context) ([]model.Place, error) {
		<-release
		return testPlaces(), nil
	})
	h := New(context.Background(), src, Options{}).Handler()
	id := createSession(t, h, map[string]any{"metric": "density"})
	base := "/sessions/" + id

	rec := do(t, h, http.MethodGet, base+"/classes", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"loading"`)

	rec = do(t, h, http.MethodPost, base+"/events", map[string]string{"kind": "pointer_enter", "id": "0820000"})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.JSONEq(t, `{"queued":true,"changes":[]}`, rec.Body.String())

	close(release)
	waitState(t, h, id, session.StateReady)

	rec = do(t, h, http.MethodGet, base+"/places/0820000", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"emphasis":"hovered"`)

	rec = do(t, h, http.MethodGet, base+"/classes", nil)
	assert.Contains(t, rec.Body.String(), `"metric":"density"`)
}

func TestSession_LoadFailure(t *testing.T) {
	src := loaderFunc(func(context.Context) ([]model.Place, error) {
		return nil, errors.New("file not found")
	})
	h := New(context.Background(), src, Options{}).Handler()
	id := createSession(t, h, nil)
	waitState(t, h, id, session.StateFailed)

	rec := do(t, h, http.MethodGet, "/sessions/"+id, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "file not found")

	rec = do(t, h, http.MethodGet, "/sessions/"+id+"/legend", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"failed"`)

	rec = do(t, h, http.MethodPost, "/sessions/"+id+"/events", map[string]string{"kind": "pointer_enter", "id": "x"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAverages_AllCDP(t *testing.T) {
	places := []model.Place{{ID: "1", Name: "Boulder", Designation: "Boulder CDP", CDP: true, Population: 100}}
	h := New(context.Background(), staticSource(places), Options{}).Handler()
	id := createSession(t, h, nil)
	waitState(t, h, id, session.StateReady)

	rec := do(t, h, http.MethodGet, "/sessions/"+id+"/averages", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestListAndDelete(t *testing.T) {
	h, id := readySession(t)

	rec := do(t, h, http.MethodGet, "/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]session.Info](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, id, list[0].ID)

	rec = do(t, h, http.MethodDelete, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	h := New(context.Background(), staticSource(testPlaces()), Options{
		AllowedOrigins: []string{"https://maps.example.com"},
	}).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/sessions", nil)
	req.Header.Set("Origin", "https://maps.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://maps.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(session.ErrNotFound))
	assert.Equal(t, http.StatusConflict, statusFor(session.ErrNotReady))
	assert.Equal(t, http.StatusServiceUnavailable, statusFor(&session.LoadError{Cause: errors.New("x")}))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(aggregate.ErrEmptyInput))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
