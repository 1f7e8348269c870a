package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/colthorp/headlines-go/internal/core"
)

const defaultMaxAgeHours = core.DefaultMaxAgeHours

// Journal receives a record of every refresh attempt and every decision.
// Journal errors are logged and never fail a resolution.
type Journal interface {
	RecordRefresh(ctx context.Context, forced bool, out Outcome, elapsed time.Duration) error
	RecordDecision(ctx context.Context, d *Decision) error
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Resolver picks which snapshot to serve for a request.
//
// Resolution is read-only apart from the refresh action it may trigger and
// EnsureRoot before an unforced refresh. It holds no per-request state, so one
// Resolver is safe for concurrent use; concurrent forced requests may each
// trigger a refresh.
type Resolver struct {
	store   Store
	trigger Trigger
	journal Journal

	forcedWait  time.Duration
	refreshWait time.Duration
	loc         *time.Location
	now         func() time.Time
	sleep       Sleeper
	verbose     bool
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithWaits sets the delays after a forced and an unforced refresh.
func WithWaits(forced, unforced time.Duration) Option {
	return func(r *Resolver) {
		r.forcedWait = forced
		r.refreshWait = unforced
	}
}

// WithLocation sets the timezone that decides which calendar day is "today".
func WithLocation(loc *time.Location) Option {
	return func(r *Resolver) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// WithClock replaces time.Now (for testing).
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithSleeper replaces the context-aware sleep (for testing).
func WithSleeper(s Sleeper) Option {
	return func(r *Resolver) {
		if s != nil {
			r.sleep = s
		}
	}
}

// WithJournal records refresh attempts and decisions.
func WithJournal(j Journal) Option {
	return func(r *Resolver) {
		r.journal = j
	}
}

// WithVerbose enables [Cache] debug output on stderr.
func WithVerbose(v bool) Option {
	return func(r *Resolver) {
		r.verbose = v
	}
}

// NewResolver creates a resolver over store. A nil trigger always fails.
func NewResolver(store Store, trigger Trigger, opts ...Option) *Resolver {
	if trigger == nil {
		trigger = noTrigger
	}
	r := &Resolver{
		store:       store,
		trigger:     trigger,
		forcedWait:  core.ForcedRefreshWait,
		refreshWait: core.RefreshWait,
		loc:         time.Local,
		now:         time.Now,
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Store returns the underlying snapshot store.
func (r *Resolver) Store() Store {
	return r.store
}

func (r *Resolver) log(msg string) {
	core.Eprint(fmt.Sprintf("[Cache] %s", msg), r.verbose)
}

// today returns the current calendar day in the resolver's timezone.
func (r *Resolver) today() time.Time {
	return core.DateOnly(r.now().In(r.loc))
}

// Resolve walks the tier chain and returns the first match.
//
// Only ErrStorageUnavailable, ErrMalformedData and context cancellation
// during a wait are returned as errors. A failed refresh demotes the result
// to a lower tier. The refresh action runs at most once per call: if the
// forced attempt did not produce a result, the unforced tier does not
// trigger again.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Decision, error) {
	d, err := r.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	r.log(fmt.Sprintf("Serving %s (%d records)", d.Source, len(d.Records)))
	if r.journal != nil {
		if jerr := r.journal.RecordDecision(ctx, d); jerr != nil {
			r.log(fmt.Sprintf("Failed to journal decision: %v", jerr))
		}
	}
	return d, nil
}

func (r *Resolver) resolve(ctx context.Context, req Request) (*Decision, error) {
	triggered := false

	// 1. forced refresh
	if req.Force {
		r.log("Force refresh requested")
		out := r.runTrigger(ctx, true)
		triggered = true
		// The forced wait applies whatever the outcome.
		if err := r.sleep(ctx, r.forcedWait); err != nil {
			return nil, err
		}
		if out.OK {
			snap, err := r.todayOrLatest()
			if err != nil {
				return nil, err
			}
			if snap != nil {
				return r.serve(SourceForcedRefresh, *snap, Detail{Note: NoteForcedRefresh})
			}
			r.log("Forced refresh reported success but no snapshot is visible")
		}
	}

	// 2. today fresh
	today, err := r.store.ForDate(r.today())
	if err != nil {
		return nil, err
	}
	if today != nil {
		now := r.now()
		if IsFresh(today.ModifiedAt, now, req.MaxAgeHours) {
			age := AgeHours(today.ModifiedAt, now)
			modified := today.ModifiedAt
			return r.serve(SourceTodayFresh, *today, Detail{
				LastModified: &modified,
				AgeHours:     &age,
			})
		}
		r.log(fmt.Sprintf("Today's snapshot %s is stale (max age %gh)", today.Name, req.MaxAgeHours))
	}

	// 3. trigger + newly fetched
	if !triggered {
		if err := r.store.EnsureRoot(); err != nil {
			return nil, err
		}
		out := r.runTrigger(ctx, false)
		if out.OK {
			if err := r.sleep(ctx, r.refreshWait); err != nil {
				return nil, err
			}
			snap, err := r.todayOrLatest()
			if err != nil {
				return nil, err
			}
			if snap != nil {
				return r.serve(SourceNewlyFetched, *snap, Detail{Note: NoteNewlyFetched})
			}
			r.log("Refresh reported success but no snapshot is visible")
		}
	}

	// 4. latest available
	latest, err := r.store.Latest()
	if err != nil {
		return nil, err
	}
	if latest != nil {
		return r.serve(SourceLatestAvailable, *latest, Detail{Note: NoteLatestAvailable})
	}

	// 5. none
	return &Decision{
		Source:  SourceNone,
		Records: []Record{},
		Detail:  Detail{Note: NoteNone},
	}, nil
}

// runTrigger invokes the refresh action detached from ctx cancellation; once
// started it runs to completion or its own timeout.
func (r *Resolver) runTrigger(ctx context.Context, forced bool) Outcome {
	start := r.now()
	out := r.trigger.Trigger(context.WithoutCancel(ctx))
	elapsed := r.now().Sub(start)

	if out.OK {
		r.log(fmt.Sprintf("Refresh succeeded in %s", elapsed.Round(time.Millisecond)))
	} else {
		r.log(fmt.Sprintf("Refresh failed: %s", out.Message))
	}
	if out.OK && out.Message != "" {
		r.log(fmt.Sprintf("Refresh diagnostics: %s", out.Message))
	}

	if r.journal != nil {
		if err := r.journal.RecordRefresh(ctx, forced, out, elapsed); err != nil {
			r.log(fmt.Sprintf("Failed to journal refresh: %v", err))
		}
	}
	return out
}

func (r *Resolver) todayOrLatest() (*Snapshot, error) {
	snap, err := r.store.ForDate(r.today())
	if err != nil || snap != nil {
		return snap, err
	}
	return r.store.Latest()
}

func (r *Resolver) serve(source Source, snap Snapshot, detail Detail) (*Decision, error) {
	records, err := r.store.Load(snap)
	if err != nil {
		return nil, err
	}
	count := len(records)
	detail.Path = snap.Path
	detail.RecordCount = &count
	return &Decision{
		Source:   source,
		Records:  records,
		Detail:   detail,
		Snapshot: &snap,
	}, nil
}

// Response converts a decision into the JSON shape served to callers.
func (d *Decision) Response() Response {
	news := d.Records
	if news == nil {
		news = []Record{}
	}
	info := CacheInfo{
		Source:       d.Source,
		LastModified: d.Detail.LastModified,
		FilePath:     d.Detail.Path,
		RecordCount:  d.Detail.RecordCount,
		Note:         d.Detail.Note,
	}
	if d.Snapshot != nil {
		fetched := d.Snapshot.ModifiedAt
		info.LastFetch = &fetched
	}
	if d.Detail.AgeHours != nil {
		info.AgeHours = fmt.Sprintf("%.2f", *d.Detail.AgeHours)
	}
	return Response{News: news, CacheInfo: info}
}

// Status summarizes the store for the status command and endpoint.
type Status struct {
	Root        string     `json:"root"`
	Snapshots   []Snapshot `json:"snapshots"`
	Today       *Snapshot  `json:"today,omitempty"`
	TodayFresh  bool       `json:"today_fresh"`
	TodayAge    string     `json:"today_age_hours,omitempty"`
	Latest      *Snapshot  `json:"latest,omitempty"`
	MaxAgeHours float64    `json:"max_age_hours"`
}

// Status reports what Resolve would see without triggering a refresh.
func (r *Resolver) Status(maxAgeHours float64) (*Status, error) {
	list, err := r.store.List()
	if err != nil {
		return nil, err
	}
	st := &Status{
		Root:        r.store.Root(),
		Snapshots:   list,
		Latest:      latestOf(list, nil),
		MaxAgeHours: maxAgeHours,
	}
	day := r.today()
	st.Today = latestOf(list, &day)
	if st.Today != nil {
		now := r.now()
		st.TodayFresh = IsFresh(st.Today.ModifiedAt, now, maxAgeHours)
		st.TodayAge = fmt.Sprintf("%.2f", AgeHours(st.Today.ModifiedAt, now))
	}
	return st, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
