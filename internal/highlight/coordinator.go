package highlight

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/placemap/internal/model"
)

// Universe answers membership questions about the loaded collection.
type Universe interface {
	Contains(id string) bool
	Members(bucket model.ColorClass, m model.Metric) []string
}

type bucketRef struct {
	bucket model.ColorClass
	metric model.Metric
}

// bucketSet is the membership of one highlighted bucket, kept in collection
// order so transitions are emitted deterministically.
type bucketSet struct {
	ref     bucketRef
	ids     []string
	members map[string]struct{}
}

func newBucketSet(ref bucketRef, ids []string) *bucketSet {
	members := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		members[id] = struct{}{}
	}
	return &bucketSet{ref: ref, ids: ids, members: members}
}

func (b *bucketSet) has(id string) bool {
	if b == nil {
		return false
	}
	_, ok := b.members[id]
	return ok
}

func (b *bucketSet) is(ref bucketRef) bool {
	return b != nil && b.ref == ref
}

// state is replaced wholesale on every transition; bucket sets are never
// mutated in place so the previous state stays readable while diffing.
type state struct {
	hovered  string
	hovering bool
	pinned   *bucketSet
	probe    *bucketSet
}

func (s state) emphasis(id string) Emphasis {
	if s.hovering && s.hovered == id {
		return EmphasisHovered
	}
	if s.pinned.has(id) || s.probe.has(id) {
		return EmphasisPinned
	}
	return EmphasisNone
}

// touched lists every id whose emphasis may be non-neutral in s: the hovered
// id first, then pinned members, then probed members.
func (s state) touched() []string {
	var ids []string
	if s.hovering {
		ids = append(ids, s.hovered)
	}
	if s.pinned != nil {
		ids = append(ids, s.pinned.ids...)
	}
	if s.probe != nil {
		ids = append(ids, s.probe.ids...)
	}
	return ids
}

// Coordinator owns the hover slot, the pinned bucket, the legend hover and the
// selected place. It is not safe for concurrent use; callers serialize access
// through a lock or through Run.
type Coordinator struct {
	universe Universe
	renderer Renderer
	log      *zap.Logger

	st       state
	metric   model.Metric
	selected string
}

// New creates a coordinator in the neutral state with the given active metric.
// A nil renderer discards transitions.
func New(universe Universe, renderer Renderer, metric model.Metric) *Coordinator {
	if renderer == nil {
		renderer = RendererFunc(func(string, Emphasis) {})
	}
	if !metric.Valid() {
		metric = model.MetricPopulation
	}
	return &Coordinator{
		universe: universe,
		renderer: renderer,
		log:      zap.L().With(zap.String("component", "highlight")),
		metric:   metric,
	}
}

// SetRenderer replaces the transition sink.
func (c *Coordinator) SetRenderer(r Renderer) {
	if r == nil {
		r = RendererFunc(func(string, Emphasis) {})
	}
	c.renderer = r
}

// commit installs next and notifies the renderer of every id whose effective
// emphasis changed. Ids leaving the previous state are reported before ids
// entering the new one.
func (c *Coordinator) commit(next state) {
	prev := c.st
	c.st = next

	candidates := append(prev.touched(), next.touched()...)
	seen := make(map[string]struct{}, len(candidates))
	for _, id := range candidates {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		before, after := prev.emphasis(id), next.emphasis(id)
		if before != after {
			c.renderer.Emphasize(id, after)
		}
	}
}

// PointerEnter places id in the hover slot, evicting any previous occupant.
func (c *Coordinator) PointerEnter(id string) {
	if !c.universe.Contains(id) {
		c.log.Debug("ignoring pointer enter for unknown place", zap.String("id", id))
		return
	}
	if c.st.hovering && c.st.hovered == id {
		return
	}
	next := c.st
	next.hovered, next.hovering = id, true
	c.commit(next)
}

// PointerLeave clears the hover slot if it holds id. Stale leaves for an
// already-evicted id are ignored.
func (c *Coordinator) PointerLeave(id string) {
	if !c.st.hovering || c.st.hovered != id {
		c.log.Debug("ignoring stale pointer leave", zap.String("id", id))
		return
	}
	next := c.st
	next.hovered, next.hovering = "", false
	c.commit(next)
}

// EntityClick records id as the selected place.
func (c *Coordinator) EntityClick(id string) {
	if !c.universe.Contains(id) {
		c.log.Debug("ignoring click for unknown place", zap.String("id", id))
		return
	}
	c.selected = id
}

// BucketEnter highlights the bucket's members unless another bucket is pinned.
func (c *Coordinator) BucketEnter(b model.ColorClass, m model.Metric) {
	ref, ok := c.ref(b, m)
	if !ok {
		return
	}
	if c.st.pinned != nil {
		if !c.st.pinned.is(ref) {
			c.log.Debug("bucket hover suppressed by pin",
				zap.Stringer("bucket", b), zap.String("metric", string(m)))
		}
		return
	}
	if c.st.probe.is(ref) {
		return
	}
	next := c.st
	next.probe = newBucketSet(ref, c.universe.Members(b, m))
	c.commit(next)
}

// BucketLeave clears the hover highlight of the bucket unless it is pinned.
func (c *Coordinator) BucketLeave(b model.ColorClass, m model.Metric) {
	ref, ok := c.ref(b, m)
	if !ok {
		return
	}
	if c.st.pinned.is(ref) || !c.st.probe.is(ref) {
		return
	}
	next := c.st
	next.probe = nil
	c.commit(next)
}

// BucketClick toggles the pin. Clicking the pinned bucket returns to neutral;
// clicking any other bucket moves the pin there.
func (c *Coordinator) BucketClick(b model.ColorClass, m model.Metric) {
	ref, ok := c.ref(b, m)
	if !ok {
		return
	}
	next := c.st
	next.probe = nil
	if c.st.pinned.is(ref) {
		next.pinned = nil
	} else {
		next.pinned = newBucketSet(ref, c.universe.Members(b, m))
	}
	c.commit(next)
}

// MetricChange switches the active metric and clears all hover and pin state.
// The selected place is kept.
func (c *Coordinator) MetricChange(m model.Metric) {
	if !m.Valid() {
		c.log.Debug("ignoring unknown metric", zap.String("metric", string(m)))
		return
	}
	c.metric = m
	c.commit(state{})
}

func (c *Coordinator) ref(b model.ColorClass, m model.Metric) (bucketRef, bool) {
	if !b.Valid() || !m.Valid() {
		c.log.Debug("ignoring bucket event",
			zap.Stringer("bucket", b), zap.String("metric", string(m)))
		return bucketRef{}, false
	}
	return bucketRef{bucket: b, metric: m}, true
}

// Handle dispatches one event.
func (c *Coordinator) Handle(ev Event) {
	switch ev.Kind {
	case KindPointerEnter:
		c.PointerEnter(ev.EntityID)
	case KindPointerLeave:
		c.PointerLeave(ev.EntityID)
	case KindEntityClick:
		c.EntityClick(ev.EntityID)
	case KindBucketEnter:
		c.BucketEnter(ev.Bucket, ev.Metric)
	case KindBucketLeave:
		c.BucketLeave(ev.Bucket, ev.Metric)
	case KindBucketClick:
		c.BucketClick(ev.Bucket, ev.Metric)
	case KindMetricChange:
		c.MetricChange(ev.Metric)
	default:
		c.log.Debug("ignoring unknown event kind", zap.Int("kind", int(ev.Kind)))
	}
}

// Run consumes events until the channel closes or ctx is done. It is the
// single consumer for producers that emit from several goroutines.
func (c *Coordinator) Run(ctx context.Context, events <-chan Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			c.Handle(ev)
		}
	}
}

// Emphasis returns the effective emphasis of id.
func (c *Coordinator) Emphasis(id string) Emphasis {
	return c.st.emphasis(id)
}

// Metric returns the active metric.
func (c *Coordinator) Metric() model.Metric { return c.metric }

// Hovered returns the place in the hover slot.
func (c *Coordinator) Hovered() (string, bool) { return c.st.hovered, c.st.hovering }

// Selected returns the last clicked place.
func (c *Coordinator) Selected() (string, bool) { return c.selected, c.selected != "" }

// Pinned returns the pinned bucket and the metric it was pinned under.
func (c *Coordinator) Pinned() (model.ColorClass, model.Metric, bool) {
	if c.st.pinned == nil {
		return 0, "", false
	}
	return c.st.pinned.ref.bucket, c.st.pinned.ref.metric, true
}
