package session

import (
	"github.com/sells-group/placemap/internal/classify"
	"github.com/sells-group/placemap/internal/model"
)

type bucketKey struct {
	bucket model.ColorClass
	metric model.Metric
}

// universe indexes a loaded collection for the highlight coordinator.
// Membership sets are computed once per (bucket, metric) and reused.
type universe struct {
	places  []model.Place
	index   map[string]int
	members map[bucketKey][]string
}

func newUniverse(places []model.Place) *universe {
	u := &universe{
		places:  places,
		index:   make(map[string]int, len(places)),
		members: make(map[bucketKey][]string),
	}
	for i := range places {
		u.index[places[i].ID] = i
	}
	for _, m := range model.Metrics {
		for _, c := range model.Classes {
			u.members[bucketKey{c, m}] = classify.Members(places, c, m)
		}
	}
	return u
}

func (u *universe) Contains(id string) bool {
	_, ok := u.index[id]
	return ok
}

func (u *universe) Members(b model.ColorClass, m model.Metric) []string {
	return u.members[bucketKey{b, m}]
}

func (u *universe) place(id string) (*model.Place, bool) {
	i, ok := u.index[id]
	if !ok {
		return nil, false
	}
	return &u.places[i], true
}
