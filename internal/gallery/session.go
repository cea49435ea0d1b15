package gallery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrFetchFailed marks a manifest fetch failure. The session keeps its previous state.
var ErrFetchFailed = errors.New("manifest fetch failed")

// ManifestClient fetches the raw list of item names
type ManifestClient interface {
	FetchManifest(ctx context.Context) ([]string, error)
}

// SessionConfig configures a Session
type SessionConfig struct {
	BatchSize int
	Exclude   []string
	Location  *time.Location
	Now       func() time.Time
}

// Item is a displayed gallery entry
type Item struct {
	Name  string `json:"name"`
	Label string `json:"label,omitempty"`
}

// Snapshot is a read-only view of a session for rendering
type Snapshot struct {
	Loaded       bool         `json:"loaded"`
	Error        string       `json:"error,omitempty"`
	Items        []Item       `json:"items"`
	Total        int          `json:"total"`
	Remaining    int          `json:"remaining"`
	NextBatch    int          `json:"nextBatch"`
	AllRevealed  bool         `json:"allRevealed"`
	SelectedYear int          `json:"selectedYear"`
	Years        []int        `json:"years"`
	YearTotal    int          `json:"yearTotal"`
	TotalAll     int          `json:"totalAll"`
	Calendar     []Week       `json:"calendar"`
	MonthLabels  []MonthLabel `json:"monthLabels"`
}

// Session holds one viewer's gallery: the sorted item list, its activity
// and the reveal cursor. Only one manifest fetch is in flight at a time.
type Session struct {
	client   ManifestClient
	exclude  []string
	location *time.Location
	now      func() time.Time

	group singleflight.Group

	mu           sync.Mutex
	items        []string
	activity     Activity
	pager        *Pager
	selectedYear int
	loaded       bool
	err          error
}

// NewSession creates an empty session; call Load to populate it.
func NewSession(client ManifestClient, cfg SessionConfig) *Session {
	exclude := cfg.Exclude
	if exclude == nil {
		exclude = DefaultExclude
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Session{
		client:       client,
		exclude:      exclude,
		location:     loc,
		now:          now,
		activity:     Aggregate(nil),
		pager:        NewPager(cfg.BatchSize),
		selectedYear: now().UTC().Year(),
	}
}

// Load fetches the manifest and replaces the item list. Concurrent callers
// share a single fetch. On failure the previous state is kept and the error
// is recorded on the session.
func (s *Session) Load(ctx context.Context) error {
	_, err, _ := s.group.Do("manifest", func() (interface{}, error) {
		names, err := s.client.FetchManifest(ctx)
		if err != nil {
			err = fmt.Errorf("%w: %w", ErrFetchFailed, err)
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			return nil, err
		}

		items := PrepareItems(names, s.exclude)
		activity := Aggregate(items)

		s.mu.Lock()
		s.items = items
		s.activity = activity
		s.pager.Initialize(items)
		s.loaded = true
		s.err = nil
		s.mu.Unlock()
		return nil, nil
	})
	return err
}

// Err returns the last fetch failure, if any
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Loaded reports whether a manifest was installed at least once
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// RevealNext shows the next batch
func (s *Session) RevealNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pager.RevealNext()
}

// RevealAll shows every item
func (s *Session) RevealAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pager.RevealAll()
}

// SelectYear changes the year shown by the heatmap
func (s *Session) SelectYear(year int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedYear = year
}

// SelectedYear returns the heatmap year
func (s *Session) SelectedYear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedYear
}

// Displayed returns the revealed items, newest first
func (s *Session) Displayed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pager.Displayed()
}

// Remaining returns the number of hidden items
func (s *Session) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pager.Remaining()
}

// NextBatch returns how many items the next reveal adds
func (s *Session) NextBatch() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pager.NextBatch()
}

// Calendar builds the heatmap grid for year
func (s *Session) Calendar(year int) []Week {
	s.mu.Lock()
	activity := s.activity
	s.mu.Unlock()
	return BuildCalendar(year, activity)
}

// AvailableYears returns the years with activity, newest first
func (s *Session) AvailableYears() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activity.AvailableYears()
}

// TotalForYear returns the number of uploads in year
func (s *Session) TotalForYear(year int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activity.TotalForYear(year)
}

// TotalAll returns the number of timestamped uploads
func (s *Session) TotalAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activity.TotalAll()
}

// Snapshot captures everything a renderer needs in one consistent read.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	displayed := s.pager.Displayed()
	items := make([]Item, len(displayed))
	for i, name := range displayed {
		label, _ := Label(name, s.location)
		items[i] = Item{Name: name, Label: label}
	}

	snap := Snapshot{
		Loaded:       s.loaded,
		Items:        items,
		Total:        s.pager.Len(),
		Remaining:    s.pager.Remaining(),
		NextBatch:    s.pager.NextBatch(),
		AllRevealed:  s.pager.AllRevealed(),
		SelectedYear: s.selectedYear,
		Years:        s.activity.AvailableYears(),
		YearTotal:    s.activity.TotalForYear(s.selectedYear),
		TotalAll:     s.activity.TotalAll(),
		Calendar:     BuildCalendar(s.selectedYear, s.activity),
		MonthLabels:  MonthLabels(),
	}
	if s.err != nil {
		snap.Error = s.err.Error()
	}
	return snap
}
