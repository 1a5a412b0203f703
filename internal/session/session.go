// Package session holds one visualization: a loaded place collection, its
// active metric, and the highlight coordinator driving emphasis.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/placemap/internal/aggregate"
	"github.com/sells-group/placemap/internal/classify"
	"github.com/sells-group/placemap/internal/highlight"
	"github.com/sells-group/placemap/internal/model"
	"github.com/sells-group/placemap/internal/rank"
)

// Loader produces the place collection. source.Source satisfies it.
type Loader interface {
	Load(ctx context.Context) ([]model.Place, error)
}

// State is the session lifecycle phase.
type State int

const (
	StateLoading State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{StateLoading, StateReady, StateFailed} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return eris.Errorf("session: unknown state %q", text)
}

// Info summarizes a session for status endpoints.
type Info struct {
	ID        string       `json:"id"`
	State     State        `json:"state"`
	Metric    model.Metric `json:"metric"`
	Places    int          `json:"places"`
	Pending   int          `json:"pending_events"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// ClassAssignment is the color class of one place under the active metric.
type ClassAssignment struct {
	ID    string           `json:"id"`
	Name  string           `json:"name"`
	Class model.ColorClass `json:"class"`
	Color string           `json:"color"`
}

// Option configures a Session.
type Option func(*Session)

// WithRenderer forwards every emphasis transition to r, including those
// produced while replaying queued events. Transitions are delivered in order
// from outside the session lock, so r may call back into the session.
func WithRenderer(r highlight.Renderer) Option {
	return func(s *Session) { s.renderer = r }
}

// WithTopN sets the default chart length.
func WithTopN(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.topN = n
		}
	}
}

// WithMetric sets the initial active metric.
func WithMetric(m model.Metric) Option {
	return func(s *Session) {
		if m.Valid() {
			s.metric = m
		}
	}
}

// MaxPending bounds the events queued while a load is in progress. When the
// queue is full the oldest event is dropped.
const MaxPending = 4096

// Session is safe for concurrent use. All operations serialize on one mutex;
// the collection is never mutated after Load.
type Session struct {
	id        string
	createdAt time.Time
	topN      int
	renderer  highlight.Renderer
	log       *zap.Logger

	mu       sync.Mutex
	state    State
	started  bool
	err      error
	metric   model.Metric
	pending  []highlight.Event
	dropped  int
	outbox   []highlight.Change
	flushing bool
	u        *universe
	coord    *highlight.Coordinator
	rec      *highlight.Recorder
}

// New creates a session in the loading state.
func New(opts ...Option) *Session {
	s := &Session{
		id:        uuid.New().String(),
		createdAt: time.Now().UTC(),
		topN:      rank.DefaultTopN,
		metric:    model.MetricPopulation,
		state:     StateLoading,
		rec:       &highlight.Recorder{},
	}
	for _, o := range opts {
		o(s)
	}
	s.log = zap.L().With(zap.String("component", "session"), zap.String("session_id", s.id))
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Load reads the collection from src. It may be called once; the source is
// read without holding the session lock so events can queue meanwhile. On
// success queued events are replayed in arrival order. On failure they are
// dropped and the session stays failed.
func (s *Session) Load(ctx context.Context, src Loader) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyLoaded
	}
	s.started = true
	s.mu.Unlock()

	start := time.Now()
	places, err := src.Load(ctx)
	if err == nil && len(places) == 0 {
		err = eris.New("session: source returned no places")
	}

	s.mu.Lock()
	if err != nil {
		defer s.mu.Unlock()
		s.state = StateFailed
		s.err = &LoadError{Cause: err}
		s.log.Error("load failed", zap.Error(err), zap.Int("dropped_events", len(s.pending)+s.dropped))
		s.pending = nil
		return s.err
	}

	s.u = newUniverse(places)
	s.coord = highlight.New(s.u, s.rec, s.metric)
	s.state = StateReady

	replayed := len(s.pending)
	for _, ev := range s.pending {
		s.coord.Handle(ev)
	}
	s.pending = nil
	s.queueRender(s.rec.Drain())

	s.log.Info("collection loaded",
		zap.Int("places", len(places)),
		zap.Int("replayed_events", replayed),
		zap.Int("dropped_events", s.dropped),
		zap.Duration("elapsed", time.Since(start)),
	)
	s.mu.Unlock()

	s.flush()
	return nil
}

// queueRender must be called with mu held.
func (s *Session) queueRender(changes []highlight.Change) {
	if s.renderer != nil {
		s.outbox = append(s.outbox, changes...)
	}
}

// flush forwards queued transitions to the renderer without holding mu.
// Only one goroutine forwards at a time, so transitions arrive in the order
// they were produced; transitions queued by a concurrent or reentrant call
// are picked up by the active forwarder.
func (s *Session) flush() {
	s.mu.Lock()
	if s.flushing {
		s.mu.Unlock()
		return
	}
	s.flushing = true
	for len(s.outbox) > 0 {
		batch := s.outbox
		s.outbox = nil
		s.mu.Unlock()
		for _, c := range batch {
			s.renderer.Emphasize(c.ID, c.Emphasis)
		}
		s.mu.Lock()
	}
	s.flushing = false
	s.mu.Unlock()
}

// Dispatch delivers one event. Before the collection is ready the event is
// queued and queued is true. After a failed load the event is dropped and
// the load error returned. Otherwise it returns the emphasis changes the
// event caused, in transition order.
func (s *Session) Dispatch(ev highlight.Event) (changes []highlight.Change, queued bool, err error) {
	s.mu.Lock()
	switch s.state {
	case StateLoading:
		defer s.mu.Unlock()
		if len(s.pending) >= MaxPending {
			s.log.Debug("pending queue full, dropping oldest event",
				zap.Stringer("kind", s.pending[0].Kind))
			s.pending = append(s.pending[:0], s.pending[1:]...)
			s.dropped++
		}
		s.pending = append(s.pending, ev)
		if ev.Kind == highlight.KindMetricChange && ev.Metric.Valid() {
			s.metric = ev.Metric
		}
		return []highlight.Change{}, true, nil
	case StateFailed:
		defer s.mu.Unlock()
		return nil, false, s.err
	}

	s.coord.Handle(ev)
	s.metric = s.coord.Metric()
	changes = s.rec.Drain()
	s.queueRender(changes)
	s.mu.Unlock()

	s.flush()
	return changes, false, nil
}

// Info reports the session status.
func (s *Session) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := Info{
		ID:        s.id,
		State:     s.state,
		Metric:    s.metric,
		Pending:   len(s.pending),
		CreatedAt: s.createdAt,
	}
	if s.u != nil {
		info.Places = len(s.u.places)
	}
	if s.err != nil {
		info.Error = s.err.Error()
	}
	return info
}

// Err returns the load error of a failed session.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// ready must be called with mu held.
func (s *Session) ready() error {
	switch s.state {
	case StateReady:
		return nil
	case StateFailed:
		return s.err
	default:
		return ErrNotReady
	}
}

// Metric returns the active metric.
func (s *Session) Metric() model.Metric {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metric
}

// Places returns the loaded collection. Callers must not modify it.
func (s *Session) Places() ([]model.Place, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.u.places, nil
}

// Classes assigns every place its color class under the active metric.
func (s *Session) Classes() ([]ClassAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return nil, err
	}

	out := make([]ClassAssignment, len(s.u.places))
	for i := range s.u.places {
		p := &s.u.places[i]
		c := classify.Classify(p, s.metric)
		out[i] = ClassAssignment{ID: p.ID, Name: p.Name, Class: c, Color: c.Color()}
	}
	return out, nil
}

// Legend returns legend entries with member counts under the active metric.
func (s *Session) Legend() ([]classify.LegendEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return nil, err
	}
	return classify.Legend(s.u.places, s.metric), nil
}

// Chart ranks the top n places by the active metric. n <= 0 uses the
// session default.
func (s *Session) Chart(n int) (rank.Chart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return rank.Chart{}, err
	}
	if n <= 0 {
		n = s.topN
	}
	return rank.BuildChart(s.u.places, s.metric, n), nil
}

// Averages returns the non-CDP state averages.
func (s *Session) Averages() (aggregate.Averages, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return aggregate.Averages{}, err
	}
	return aggregate.StateAverages(s.u.places)
}

// Demographics compares a place against the state averages. An empty id
// uses the selected place.
func (s *Session) Demographics(id string) (aggregate.Comparison, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return aggregate.Comparison{}, err
	}

	if id == "" {
		sel, ok := s.coord.Selected()
		if !ok {
			return aggregate.Comparison{}, ErrNoSelection
		}
		id = sel
	}
	p, ok := s.u.place(id)
	if !ok {
		return aggregate.Comparison{}, eris.Wrapf(ErrUnknownPlace, "id %q", id)
	}

	avg, err := aggregate.StateAverages(s.u.places)
	if err != nil {
		return aggregate.Comparison{}, err
	}
	return aggregate.Compare(p, avg), nil
}

// Detail returns the detail card of a place along with its emphasis.
func (s *Session) Detail(id string) (rank.Detail, highlight.Emphasis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return rank.Detail{}, highlight.EmphasisNone, err
	}

	p, ok := s.u.place(id)
	if !ok {
		return rank.Detail{}, highlight.EmphasisNone, eris.Wrapf(ErrUnknownPlace, "id %q", id)
	}
	return rank.BuildDetail(p), s.coord.Emphasis(id), nil
}

// Emphasis returns the effective emphasis of a place.
func (s *Session) Emphasis(id string) (highlight.Emphasis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ready(); err != nil {
		return highlight.EmphasisNone, err
	}
	return s.coord.Emphasis(id), nil
}

// Selected returns the selected place id.
func (s *Session) Selected() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coord == nil {
		return "", false
	}
	return s.coord.Selected()
}
