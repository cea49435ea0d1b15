package gallery

import (
	"sort"
	"time"
)

// DayKeyLayout is the layout of a DayKey
const DayKeyLayout = "2006-01-02"

// DayKey is a calendar date in UTC, formatted YYYY-MM-DD
type DayKey string

// DayKeyOf truncates t to its UTC calendar date.
func DayKeyOf(t time.Time) DayKey {
	return DayKey(t.UTC().Format(DayKeyLayout))
}

// Year returns the calendar year of the key, or 0 if the key is malformed.
func (k DayKey) Year() int {
	t, err := time.Parse(DayKeyLayout, string(k))
	if err != nil {
		return 0
	}
	return t.Year()
}

// Activity maps calendar days to upload counts.
// It is rebuilt from the full item list and never mutated afterwards.
type Activity struct {
	counts map[DayKey]int
}

// Aggregate buckets every item with an embedded timestamp into its UTC day.
// Items without a timestamp are skipped.
func Aggregate(names []string) Activity {
	counts := make(map[DayKey]int)
	for _, name := range names {
		t, ok := ExtractTime(name)
		if !ok {
			continue
		}
		counts[DayKeyOf(t)]++
	}
	return Activity{counts: counts}
}

// Count returns the number of uploads on the given day
func (a Activity) Count(key DayKey) int {
	return a.counts[key]
}

// Days returns how many distinct days have activity
func (a Activity) Days() int {
	return len(a.counts)
}

// Counts returns a copy of the underlying day counts
func (a Activity) Counts() map[DayKey]int {
	out := make(map[DayKey]int, len(a.counts))
	for k, v := range a.counts {
		out[k] = v
	}
	return out
}

// TotalForYear sums the counts of days falling in year.
func (a Activity) TotalForYear(year int) int {
	total := 0
	for k, v := range a.counts {
		if k.Year() == year {
			total += v
		}
	}
	return total
}

// TotalAll sums every count.
func (a Activity) TotalAll() int {
	total := 0
	for _, v := range a.counts {
		total += v
	}
	return total
}

// AvailableYears returns the distinct years with activity, most recent first.
func (a Activity) AvailableYears() []int {
	seen := make(map[int]bool)
	years := []int{}
	for k := range a.counts {
		y := k.Year()
		if y == 0 || seen[y] {
			continue
		}
		seen[y] = true
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}
