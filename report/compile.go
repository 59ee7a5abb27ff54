package report

import (
	"cmp"
	"slices"
	"time"
)

const (
	// DefaultRemovalThresholdDays is the inactivity span at which a member is removed.
	DefaultRemovalThresholdDays = 3
	// DefaultLeaderboardSize is the number of streaks shown in the report.
	DefaultLeaderboardSize = 5
)

// Options tunes a compilation. Zero values fall back to the defaults.
type Options struct {
	RemovalThresholdDays int
	LeaderboardSize      int
	// IncludeOtherYears renders members whose class year is outside 1-4 in an
	// extra section instead of leaving them out of the report body.
	IncludeOtherYears bool
}

func (o Options) withDefaults() Options {
	if o.RemovalThresholdDays <= 0 {
		o.RemovalThresholdDays = DefaultRemovalThresholdDays
	}
	if o.LeaderboardSize <= 0 {
		o.LeaderboardSize = DefaultLeaderboardSize
	}
	return o
}

// InactiveMember is a processed memberDidNotSend entry.
type InactiveMember struct {
	Index     int
	FullName  string
	UserID    uint64
	ClassYear ClassYear
	Days      int
	Label     string
}

// StreakEntry is one leaderboard row.
type StreakEntry struct {
	FullName string
	Streak   int
}

// Removal is a member slated for removal, with the name shown in the report.
type Removal struct {
	UserID   uint64
	FullName string
}

// Result is the outcome of a compilation.
type Result struct {
	Text string
	// RemovedIDs keeps first-seen order and is not deduplicated.
	RemovedIDs []uint64
	Removed    []Removal
	Buckets    map[ClassYear][]InactiveMember
	// Unbucketed holds members whose class year has no section. They are
	// only rendered when Options.IncludeOtherYears is set.
	Unbucketed  []InactiveMember
	Leaderboard []StreakEntry
}

// Compile parses the document and builds the report for the reference date.
// It fails without partial output on any document or record error.
func Compile(data []byte, reference time.Time, opts Options) (*Result, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return doc.Compile(reference, opts)
}

// Compile builds the report for an already parsed document.
func (d *Document) Compile(reference time.Time, opts Options) (*Result, error) {
	opts = opts.withDefaults()

	res := &Result{
		Buckets: make(map[ClassYear][]InactiveMember),
	}

	inactive, err := d.inactiveMembers(reference)
	if err != nil {
		return nil, err
	}

	// Names for the removal list are looked up by ID, first entry wins.
	names := make(map[uint64]string, len(inactive))
	for _, m := range inactive {
		if _, ok := names[m.UserID]; !ok {
			names[m.UserID] = m.FullName
		}
	}

	for _, m := range inactive {
		if m.ClassYear.Bucketed() {
			res.Buckets[m.ClassYear] = append(res.Buckets[m.ClassYear], m)
		} else {
			res.Unbucketed = append(res.Unbucketed, m)
		}

		if m.Days >= opts.RemovalThresholdDays {
			res.RemovedIDs = append(res.RemovedIDs, m.UserID)
			res.Removed = append(res.Removed, Removal{UserID: m.UserID, FullName: names[m.UserID]})
		}
	}

	res.Leaderboard, err = d.leaderboard(opts.LeaderboardSize)
	if err != nil {
		return nil, err
	}

	res.Text = render(res, opts)
	return res, nil
}

// inactiveMembers decodes memberDidNotSend, skipping entries without a usable
// lastStatusUpdate. Entries that are processed must carry a name, an ID and
// an admission year.
func (d *Document) inactiveMembers(reference time.Time) ([]InactiveMember, error) {
	r := recordReader{list: ListDidNotSend}
	var members []InactiveMember

	for i, raw := range d.DidNotSend {
		rec, err := r.decode(i, raw)
		if err != nil {
			return nil, err
		}

		last, ok := rec.LastUpdate()
		if !ok {
			continue
		}

		name, err := r.str(i, "fullName", rec.FullName)
		if err != nil {
			return nil, err
		}
		userID, err := r.id(i, "userID", rec.UserID)
		if err != nil {
			return nil, err
		}
		admission, err := r.integer(i, "admissionYear", rec.AdmissionYear)
		if err != nil {
			return nil, err
		}

		days := DaysBetween(last, reference)
		members = append(members, InactiveMember{
			Index:     i,
			FullName:  name,
			UserID:    userID,
			ClassYear: ClassYearOf(reference.Year(), admission),
			Days:      days,
			Label:     FormatDuration(days),
		})
	}

	return members, nil
}

// leaderboard ranks memberDidSend by streak, highest first. The sort is
// stable so tied streaks keep their document order.
func (d *Document) leaderboard(size int) ([]StreakEntry, error) {
	r := recordReader{list: ListDidSend}
	entries := make([]StreakEntry, 0, len(d.DidSend))

	for i, raw := range d.DidSend {
		rec, err := r.decode(i, raw)
		if err != nil {
			return nil, err
		}
		name, err := r.str(i, "fullName", rec.FullName)
		if err != nil {
			return nil, err
		}
		streak, err := r.integer(i, "streak", rec.Streak)
		if err != nil {
			return nil, err
		}
		entries = append(entries, StreakEntry{FullName: name, Streak: streak})
	}

	slices.SortStableFunc(entries, func(a, b StreakEntry) int {
		return cmp.Compare(b.Streak, a.Streak)
	})

	if len(entries) > size {
		entries = entries[:size]
	}
	return entries, nil
}
