package highlight

import (
	"strings"

	"github.com/sells-group/placemap/internal/model"
)

// Kind tags an inbound interaction event.
type Kind int

const (
	KindPointerEnter Kind = iota + 1
	KindPointerLeave
	KindEntityClick
	KindBucketEnter
	KindBucketLeave
	KindBucketClick
	KindMetricChange
)

var kindNames = map[Kind]string{
	KindPointerEnter: "pointer_enter",
	KindPointerLeave: "pointer_leave",
	KindEntityClick:  "entity_click",
	KindBucketEnter:  "bucket_enter",
	KindBucketLeave:  "bucket_leave",
	KindBucketClick:  "bucket_click",
	KindMetricChange: "metric_change",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// ParseKind parses an event kind name such as "bucket_click".
func ParseKind(s string) (Kind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// TargetsEntity reports whether the event is tagged with a place id.
func (k Kind) TargetsEntity() bool {
	return k == KindPointerEnter || k == KindPointerLeave || k == KindEntityClick
}

// TargetsBucket reports whether the event is tagged with a (bucket, metric) pair.
func (k Kind) TargetsBucket() bool {
	return k == KindBucketEnter || k == KindBucketLeave || k == KindBucketClick
}

// Event is one interaction reported by the presentation layer. Entity events
// carry EntityID, bucket events carry Bucket and Metric, and metric changes
// carry Metric.
type Event struct {
	Kind     Kind
	EntityID string
	Bucket   model.ColorClass
	Metric   model.Metric
}

// PointerEnter builds a pointer-enter event.
func PointerEnter(id string) Event { return Event{Kind: KindPointerEnter, EntityID: id} }

// PointerLeave builds a pointer-leave event.
func PointerLeave(id string) Event { return Event{Kind: KindPointerLeave, EntityID: id} }

// EntityClick builds a place click event.
func EntityClick(id string) Event { return Event{Kind: KindEntityClick, EntityID: id} }

// BucketEnter builds a legend hover event.
func BucketEnter(b model.ColorClass, m model.Metric) Event {
	return Event{Kind: KindBucketEnter, Bucket: b, Metric: m}
}

// BucketLeave builds a legend leave event.
func BucketLeave(b model.ColorClass, m model.Metric) Event {
	return Event{Kind: KindBucketLeave, Bucket: b, Metric: m}
}

// BucketClick builds a legend click event.
func BucketClick(b model.ColorClass, m model.Metric) Event {
	return Event{Kind: KindBucketClick, Bucket: b, Metric: m}
}

// MetricChange builds a metric switch event.
func MetricChange(m model.Metric) Event { return Event{Kind: KindMetricChange, Metric: m} }
