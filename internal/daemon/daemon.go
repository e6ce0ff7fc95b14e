// Package daemon keeps the snapshot cache warm for the configured watch list
// and records what each poll returned for the terminal dashboard.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/marcin-skalski/workflow-monitor/internal/github"
	"github.com/marcin-skalski/workflow-monitor/internal/monitor"
	"github.com/marcin-skalski/workflow-monitor/internal/snapshot"
	"github.com/marcin-skalski/workflow-monitor/internal/tui"
)

const (
	defaultPollInterval  = 60 * time.Second
	defaultMaxConcurrent = 4
)

type SnapshotService interface {
	Snapshot(ctx context.Context, req monitor.Request) (*snapshot.Snapshot, error)
}

// Target is one watched repository, optionally focused on a PR.
type Target struct {
	Repo string
	PR   int
}

func (t Target) String() string {
	return tui.TargetState{Repo: t.Repo, PR: t.PR}.Label()
}

// BackoffConfig controls how long a rate-limited target waits before its
// next attempt.
type BackoffConfig struct {
	Initial        time.Duration
	Max            time.Duration
	JitterFraction float64 // 0.0 to 1.0
}

func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		Initial:        5 * time.Second,
		Max:            5 * time.Minute,
		JitterFraction: 0.2,
	}
}

// delay is Initial*2^attempt capped at Max, then spread by +/- JitterFraction.
// rnd returns a value in [0, 1).
func (b BackoffConfig) delay(attempt int, rnd func() float64) time.Duration {
	base := float64(b.Initial) * math.Pow(2, float64(attempt))
	if base > float64(b.Max) {
		base = float64(b.Max)
	}
	jitter := base * b.JitterFraction * (rnd()*2 - 1)
	d := time.Duration(base + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

type Options struct {
	Targets       []Target
	PollInterval  time.Duration
	Backoff       BackoffConfig
	MaxConcurrent int
}

type targetState struct {
	snap       *snapshot.Snapshot
	lastErr    string
	code       monitor.ErrorCode
	lastPolled time.Time
	nextPoll   time.Time
	failures   int
	// rateLimited counts consecutive rate-limit failures; it drives backoff.
	rateLimited int
}

type Daemon struct {
	svc      SnapshotService
	opts     Options
	logger   *slog.Logger
	now      func() time.Time
	rand     func() float64
	schedule time.Duration
	refresh  chan struct{}

	mu     sync.Mutex
	states []targetState
}

func New(svc SnapshotService, opts Options, logger *slog.Logger) *Daemon {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Backoff.Initial <= 0 || opts.Backoff.Max <= 0 {
		def := DefaultBackoff()
		opts.Backoff.Initial = def.Initial
		opts.Backoff.Max = def.Max
		if opts.Backoff.JitterFraction == 0 {
			opts.Backoff.JitterFraction = def.JitterFraction
		}
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultMaxConcurrent
	}

	return &Daemon{
		svc:      svc,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		rand:     rand.Float64,
		schedule: min(time.Second, opts.PollInterval),
		refresh:  make(chan struct{}, 1),
		states:   make([]targetState, len(opts.Targets)),
	}
}

// Run polls every target once, then keeps each on its own schedule until
// ctx is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	if len(d.opts.Targets) == 0 {
		d.logger.Info("no watch targets configured, poller idle")
		<-ctx.Done()
		return nil
	}

	d.logger.Info("poller started", "poll_interval", d.opts.PollInterval, "targets", len(d.opts.Targets))

	d.pollDue(ctx, true)

	ticker := time.NewTicker(d.schedule)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("poller stopped")
			return nil
		case <-ticker.C:
			d.pollDue(ctx, false)
		case <-d.refresh:
			d.logger.Debug("manual refresh requested")
			d.pollDue(ctx, true)
		}
	}
}

// RequestRefresh schedules an immediate poll of every target that is not
// backing off. Extra requests while one is pending are dropped.
func (d *Daemon) RequestRefresh() {
	select {
	case d.refresh <- struct{}{}:
	default:
	}
}

func (d *Daemon) pollDue(ctx context.Context, force bool) {
	now := d.now()

	var g errgroup.Group
	g.SetLimit(d.opts.MaxConcurrent)

	for i := range d.opts.Targets {
		if !d.due(i, now, force) {
			continue
		}
		g.Go(func() error {
			d.pollTarget(ctx, i)
			return nil
		})
	}

	_ = g.Wait()
}

// due reports whether target i should be polled at now. A forced poll never
// cuts a rate-limit backoff short.
func (d *Daemon) due(i int, now time.Time, force bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := d.states[i]
	if st.rateLimited > 0 && now.Before(st.nextPoll) {
		return false
	}
	return force || !now.Before(st.nextPoll)
}

func (d *Daemon) pollTarget(ctx context.Context, i int) {
	t := d.opts.Targets[i]
	start := d.now()

	snap, err := d.svc.Snapshot(ctx, monitor.Request{Repo: t.Repo, PR: t.PR, ForceRefresh: true})
	if ctx.Err() != nil {
		return
	}

	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()

	st := &d.states[i]
	st.lastPolled = now

	if err == nil {
		st.snap = snap
		st.lastErr = ""
		st.code = ""
		st.failures = 0
		st.rateLimited = 0
		st.nextPoll = now.Add(d.opts.PollInterval)
		d.logger.Debug("polled target", "target", t, "open_prs", snap.BoardGroups.Total(), "duration", now.Sub(start))
		return
	}

	st.failures++
	st.code = monitor.CodeOf(err)
	st.lastErr = monitor.PublicMessage(err)

	if !errors.Is(err, github.ErrRateLimited) {
		st.rateLimited = 0
		st.nextPoll = now.Add(d.opts.PollInterval)
		d.logger.Error("poll target failed", "target", t, "code", st.code, "failures", st.failures, "err", err)
		return
	}

	wait := max(d.opts.PollInterval, d.opts.Backoff.delay(st.rateLimited, d.rand))
	var rl *github.RateLimitError
	if errors.As(err, &rl) && rl.RetryAfter > wait {
		wait = rl.RetryAfter
	}
	st.rateLimited++
	st.nextPoll = now.Add(wait)
	d.logger.Warn("rate limited, backing off", "target", t, "attempt", st.rateLimited, "wait", wait)
}

func (d *Daemon) GetSnapshot() tui.Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	targets := make([]tui.TargetState, len(d.opts.Targets))
	for i, t := range d.opts.Targets {
		st := d.states[i]
		targets[i] = tui.TargetState{
			Repo:       t.Repo,
			PR:         t.PR,
			Snapshot:   st.snap,
			LastError:  st.lastErr,
			ErrorCode:  string(st.code),
			LastPolled: st.lastPolled,
			NextPoll:   st.nextPoll,
			Failures:   st.failures,
		}
	}

	return tui.Snapshot{
		Timestamp: d.now(),
		Targets:   targets,
	}
}
