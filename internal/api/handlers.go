package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/placemap/internal/aggregate"
	"github.com/sells-group/placemap/internal/classify"
	"github.com/sells-group/placemap/internal/highlight"
	"github.com/sells-group/placemap/internal/model"
	"github.com/sells-group/placemap/internal/session"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
	State string `json:"state,omitempty"`
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrUnknownPlace):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNotReady), errors.Is(err, session.ErrNoSelection):
		return http.StatusConflict
	case errors.Is(err, session.ErrLoadFailure):
		return http.StatusServiceUnavailable
	case errors.Is(err, aggregate.ErrEmptyInput):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	switch status {
	case http.StatusServiceUnavailable:
		body.State = session.StateFailed.String()
	case http.StatusConflict:
		if errors.Is(err, session.ErrNotReady) {
			body.State = session.StateLoading.String()
		}
	case http.StatusInternalServerError:
		s.log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, body)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.registry.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.registry.Len(),
	})
}

type createRequest struct {
	Metric string `json:"metric"`
	TopN   int    `json:"top_n"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "invalid request body")
			return
		}
	}

	metric := s.opts.Metric
	if req.Metric != "" {
		m, err := model.ParseMetric(req.Metric)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		metric = m
	}
	topN := s.opts.TopN
	if req.TopN < 0 {
		badRequest(w, "top_n must be >= 0")
		return
	}
	if req.TopN > 0 {
		topN = req.TopN
	}

	if s.loads != nil && !s.loads.Allow() {
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many session loads"})
		return
	}

	sess := session.New(session.WithMetric(metric), session.WithTopN(topN))
	s.registry.Add(sess)

	go func() {
		if err := sess.Load(s.ctx, s.src); err != nil {
			s.log.Error("session load failed", zap.String("session_id", sess.ID()), zap.Error(err))
		}
	}()

	w.Header().Set("Location", "/sessions/"+sess.ID())
	writeJSON(w, http.StatusCreated, sess.Info())
}

func (s *Server) listSessions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Info())
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.registry.Remove(chi.URLParam(r, "sessionID")) {
		s.writeError(w, session.ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) classes(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	classes, err := sess.Classes()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"metric":  sess.Metric(),
		"classes": classes,
	})
}

func (s *Server) legend(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	legend, err := sess.Legend()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"metric":  sess.Metric(),
		"entries": legend,
	})
}

func (s *Server) chart(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	n := 0
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			badRequest(w, "n must be a positive integer")
			return
		}
		n = parsed
	}
	chart, err := sess.Chart(n)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chart)
}

func (s *Server) averages(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	avg, err := sess.Averages()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, avg)
}

func (s *Server) demographics(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	cmp, err := sess.Demographics(r.URL.Query().Get("place"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

func (s *Server) place(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	detail, emphasis, err := sess.Detail(chi.URLParam(r, "placeID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"detail":   detail,
		"emphasis": emphasis,
	})
}

// eventRequest is the wire form of a highlight event. Bucket accepts a
// legend id ("light") or a range label ("5000-25000"); Metric defaults to
// the session's active metric.
type eventRequest struct {
	Kind   string `json:"kind"`
	ID     string `json:"id"`
	Bucket string `json:"bucket"`
	Metric string `json:"metric"`
}

// unknownBucket is never a valid class.
const unknownBucket model.ColorClass = -1

type eventResponse struct {
	Queued  bool               `json:"queued"`
	Changes []highlight.Change `json:"changes"`
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}

	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	ev, msg := decodeEvent(req, sess.Metric())
	if msg != "" {
		badRequest(w, msg)
		return
	}

	changes, queued, err := sess.Dispatch(ev)
	if err != nil {
		s.writeError(w, err)
		return
	}
	status := http.StatusOK
	if queued {
		status = http.StatusAccepted
	}
	writeJSON(w, status, eventResponse{Queued: queued, Changes: changes})
}

// decodeEvent validates a wire event. It returns a message describing the
// first problem, or "" when the event is well formed.
func decodeEvent(req eventRequest, active model.Metric) (highlight.Event, string) {
	kind, ok := highlight.ParseKind(req.Kind)
	if !ok {
		return highlight.Event{}, "unknown event kind"
	}
	ev := highlight.Event{Kind: kind}

	metric := active
	if req.Metric != "" {
		m, err := model.ParseMetric(req.Metric)
		if err != nil {
			return highlight.Event{}, err.Error()
		}
		metric = m
	}

	switch {
	case kind.TargetsEntity():
		if req.ID == "" {
			return highlight.Event{}, "id is required for " + kind.String()
		}
		ev.EntityID = req.ID
	case kind.TargetsBucket():
		// An unrecognized bucket is delivered like an unknown place id: the
		// coordinator ignores it and no emphasis changes.
		b, ok := classify.ParseBucket(req.Bucket, metric)
		if !ok {
			b = unknownBucket
		}
		ev.Bucket, ev.Metric = b, metric
	case kind == highlight.KindMetricChange:
		if req.Metric == "" {
			return highlight.Event{}, "metric is required for metric_change"
		}
		ev.Metric = metric
	}
	return ev, ""
}
