package booking

import (
	"sort"
	"strings"
	"time"
)

// MatchActivity finds the activity called name. An exact match wins; otherwise
// a single case-insensitive match is accepted. Anything else is an
// ActivityNotFoundError.
func MatchActivity(name string, activities []Activity) (Activity, error) {
	var exact, folded []Activity
	want := strings.TrimSpace(name)
	for _, a := range activities {
		switch {
		case a.Name == want:
			exact = append(exact, a)
		case strings.EqualFold(strings.TrimSpace(a.Name), want):
			folded = append(folded, a)
		}
	}
	for _, set := range [][]Activity{exact, folded} {
		switch len(set) {
		case 0:
			continue
		case 1:
			return set[0], nil
		default:
			return Activity{}, ActivityNotFoundError{Name: name, Ambiguous: true, Candidates: activityIDs(set)}
		}
	}
	return Activity{}, ActivityNotFoundError{Name: name, Candidates: activityNames(activities)}
}

// MatchSlot returns the slot starting at start. Matching is to the second and
// ignores location, so a slot parsed in another zone still matches.
func MatchSlot(start time.Time, slots []Slot) (Slot, bool) {
	want := start.Truncate(time.Second)
	for _, s := range slots {
		if s.Start.Truncate(time.Second).Equal(want) {
			return s, true
		}
	}
	return Slot{}, false
}

func activityNames(activities []Activity) []string {
	seen := make(map[string]struct{}, len(activities))
	names := make([]string, 0, len(activities))
	for _, a := range activities {
		if _, ok := seen[a.Name]; ok {
			continue
		}
		seen[a.Name] = struct{}{}
		names = append(names, a.Name)
	}
	sort.Strings(names)
	return names
}

func activityIDs(activities []Activity) []string {
	out := make([]string, 0, len(activities))
	for _, a := range activities {
		out = append(out, a.Name+" ("+a.ID+")")
	}
	return out
}
