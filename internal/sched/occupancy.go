package sched

import (
	"sort"
	"time"
)

// occupancy is a sorted interval index over committed sessions of all tasks.
// It is owned entirely by one Schedule invocation; never shared.
type occupancy struct {
	spans []Instance // sorted by Start
}

func newOccupancy(existing []Instance) *occupancy {
	o := &occupancy{spans: make([]Instance, len(existing))}
	copy(o.spans, existing)
	sort.SliceStable(o.spans, func(i, j int) bool { return o.spans[i].Start.Before(o.spans[j].Start) })
	return o
}

// overlaps reports whether [start, end) intersects any committed span.
func (o *occupancy) overlaps(start, end time.Time) bool {
	// Spans are Start-sorted, so only the prefix with Start < end can
	// collide; ends are not sorted, so that prefix is scanned.
	n := sort.Search(len(o.spans), func(i int) bool { return !o.spans[i].Start.Before(end) })
	for i := 0; i < n; i++ {
		if o.spans[i].End.After(start) {
			return true
		}
	}
	return false
}

func (o *occupancy) add(inst Instance) {
	i := sort.Search(len(o.spans), func(i int) bool { return o.spans[i].Start.After(inst.Start) })
	o.spans = append(o.spans, Instance{})
	copy(o.spans[i+1:], o.spans[i:])
	o.spans[i] = inst
}
