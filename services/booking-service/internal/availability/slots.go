package availability

import (
	"sort"
	"time"

	"github.com/md-rashed-zaman/meetslot/services/booking-service/internal/model"
)

// GridStep is the spacing of candidate slot starts in host-local time,
// independent of the requested duration.
const GridStep = 30 * time.Minute

const DefaultDuration = 30 * time.Minute

// Request carries everything needed to enumerate slots. All instants are absolute.
type Request struct {
	Windows  []model.Window
	Busy     []model.BusyInterval
	Duration time.Duration
	Now      time.Time
	// VisitorDay is the visitor's civil day as [start, end). Zero means no filter.
	VisitorDay model.Interval
	TimeOfDay  model.TimeOfDay
}

// AvailableSlots returns every grid-aligned slot of req.Duration that fits inside
// a window, has not ended by req.Now, overlaps no busy interval, intersects the
// visitor's day and passes the time-of-day filter. Output is sorted by start and
// free of duplicates; identical inputs give identical output.
func AvailableSlots(req Request) []model.Slot {
	duration := req.Duration
	if duration <= 0 {
		duration = DefaultDuration
	}

	seen := map[int64]bool{}
	var slots []model.Slot
	for _, win := range req.Windows {
		if win.Empty() || win.Start.Add(duration).After(win.End) {
			continue
		}
		loc := win.Location
		if loc == nil {
			loc = time.UTC
		}
		for t := alignToGrid(win.Start, loc); !t.Add(duration).After(win.End); t = t.Add(GridStep) {
			end := t.Add(duration)
			if !end.After(req.Now) {
				continue
			}
			if overlapsAny(t, end, req.Busy) {
				continue
			}
			if !req.VisitorDay.IsZero() && !req.VisitorDay.Overlaps(t, end) {
				continue
			}
			if !req.TimeOfDay.Allows(t.In(loc).Hour()) {
				continue
			}
			key := t.Unix()
			if seen[key] {
				continue
			}
			seen[key] = true
			slots = append(slots, model.Slot{
				Start:        t.UTC(),
				End:          end.UTC(),
				HostTimezone: win.HostTimezone,
				LocationTag:  win.LocationTag(t),
			})
		}
	}

	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	return slots
}

// OnGrid reports whether t starts on a grid boundary in loc.
func OnGrid(t time.Time, loc *time.Location) bool {
	local := t.In(loc)
	return local.Second() == 0 && local.Nanosecond() == 0 && local.Minute()%int(GridStep/time.Minute) == 0
}

// alignToGrid moves t forward to the next :00 or :30 in host-local time.
func alignToGrid(t time.Time, loc *time.Location) time.Time {
	if OnGrid(t, loc) {
		return t
	}
	local := t.In(loc)
	step := int(GridStep / time.Minute)
	into := time.Duration(local.Minute()%step)*time.Minute +
		time.Duration(local.Second())*time.Second +
		time.Duration(local.Nanosecond())
	return t.Add(GridStep - into)
}

func overlapsAny(start, end time.Time, busy []model.BusyInterval) bool {
	for _, b := range busy {
		// Half-open intervals: [start,end) overlaps [b.Start,b.End) iff start < b.End && b.Start < end.
		if start.Before(b.End) && b.Start.Before(end) {
			return true
		}
	}
	return false
}
