package gallery

import "time"

// Activity level tiers
const (
	LevelNone = iota
	LevelLow
	LevelMedium
	LevelHigh
	LevelMax
)

// CalendarCell is one day of a rendered year grid
type CalendarCell struct {
	Date   time.Time `json:"date"`
	Key    DayKey    `json:"key"`
	Count  int       `json:"count"`
	Level  int       `json:"level"`
	InYear bool      `json:"inYear"`
}

// Week is a Sunday-first row of seven cells
type Week [7]CalendarCell

// MonthLabel places a month name over an approximate grid column
type MonthLabel struct {
	Name   string `json:"name"`
	Column int    `json:"column"`
}

var monthNames = [12]string{
	"Jan", "Feb", "Mar", "Apr", "May", "Jun",
	"Jul", "Aug", "Sep", "Oct", "Nov", "Dec",
}

// LevelFor maps a day's upload count to a heatmap tier.
func LevelFor(count int) int {
	switch {
	case count <= 0:
		return LevelNone
	case count == 1:
		return LevelLow
	case count <= 3:
		return LevelMedium
	case count <= 6:
		return LevelHigh
	default:
		return LevelMax
	}
}

// BuildCalendar lays out year as full weeks starting on the Sunday on or
// before January 1 and ending with the week that contains December 31.
// Days outside year pad the first and last week.
func BuildCalendar(year int, activity Activity) []Week {
	first := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)

	day := first.AddDate(0, 0, -int(first.Weekday()))

	weeks := make([]Week, 0, 54)
	for !day.After(last) {
		var week Week
		for i := range week {
			key := DayKeyOf(day)
			count := activity.Count(key)
			week[i] = CalendarCell{
				Date:   day,
				Key:    key,
				Count:  count,
				Level:  LevelFor(count),
				InYear: day.Year() == year,
			}
			day = day.AddDate(0, 0, 1)
		}
		weeks = append(weeks, week)
	}
	return weeks
}

// MonthLabels returns the heatmap month headers. Columns assume ~4.33 weeks
// per month and are only a visual approximation of where each month starts.
func MonthLabels() []MonthLabel {
	labels := make([]MonthLabel, len(monthNames))
	for i, name := range monthNames {
		labels[i] = MonthLabel{
			Name:   name,
			Column: i*433/100 + 1,
		}
	}
	return labels
}
