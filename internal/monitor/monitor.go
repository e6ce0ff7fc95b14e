// Package monitor answers snapshot requests: cache first, GitHub on a miss,
// and the fresh result written back.
package monitor

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/marcin-skalski/workflow-monitor/internal/cache"
	"github.com/marcin-skalski/workflow-monitor/internal/snapshot"
)

type Fetcher interface {
	Fetch(ctx context.Context, repo string, pr int) (*snapshot.Snapshot, error)
}

type Cache interface {
	Get(repo string, pr int) (*snapshot.Snapshot, bool)
	Set(repo string, pr int, s *snapshot.Snapshot)
}

// Request asks for one repository's snapshot. PR 0 means board-only.
type Request struct {
	Repo         string `validate:"required,repo"`
	PR           int    `validate:"gte=0"`
	ForceRefresh bool
}

type Options struct {
	DefaultRepo string
	// DedupeInflight collapses concurrent misses on one key into a single
	// upstream fetch.
	DedupeInflight bool
}

type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Fetches int64 `json:"fetches"`
	Errors  int64 `json:"errors"`
}

type Service struct {
	fetcher   Fetcher
	cache     Cache
	opts      Options
	logger    *slog.Logger
	validator *validator.Validate
	group     singleflight.Group
	now       func() time.Time

	hits, misses, fetches, failures atomic.Int64
}

func New(f Fetcher, c Cache, opts Options, logger *slog.Logger) *Service {
	opts.DefaultRepo = strings.TrimSpace(opts.DefaultRepo)
	return &Service{
		fetcher:   f,
		cache:     c,
		opts:      opts,
		logger:    logger,
		validator: newValidator(),
		now:       time.Now,
	}
}

func (s *Service) DefaultRepo() string {
	return s.opts.DefaultRepo
}

// Snapshot returns the repository snapshot. A cache hit is a fresh copy
// flagged cached, with CachedAt holding the original assembly time.
func (s *Service) Snapshot(ctx context.Context, req Request) (*snapshot.Snapshot, error) {
	req.Repo = strings.TrimSpace(req.Repo)
	if req.Repo == "" {
		req.Repo = s.opts.DefaultRepo
	}
	if err := s.validate(req); err != nil {
		return nil, err
	}

	if !req.ForceRefresh {
		if snap, ok := s.cache.Get(req.Repo, req.PR); ok {
			s.hits.Add(1)
			s.logger.Debug("cache hit", "key", cache.Key(req.Repo, req.PR))
			return s.markCached(snap), nil
		}
		s.misses.Add(1)
		s.logger.Debug("cache miss", "key", cache.Key(req.Repo, req.PR))
	}

	if !s.opts.DedupeInflight {
		return s.fetch(ctx, req)
	}

	// The shared fetch outlives any single waiter; the HTTP client timeout
	// bounds it. Each waiter gets its own copy of the result.
	fetchCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(cache.Key(req.Repo, req.PR), func() (any, error) {
		return s.fetch(fetchCtx, req)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*snapshot.Snapshot).Clone(), nil
	}
}

func (s *Service) fetch(ctx context.Context, req Request) (*snapshot.Snapshot, error) {
	s.fetches.Add(1)
	start := s.now()

	snap, err := s.fetcher.Fetch(ctx, req.Repo, req.PR)
	if err != nil {
		s.failures.Add(1)
		s.logger.Error("fetch snapshot failed",
			"repo", req.Repo, "pr", req.PR, "code", CodeOf(err), "err", err)
		return nil, err
	}

	s.cache.Set(req.Repo, req.PR, snap)
	s.logger.Info("fetched snapshot",
		"repo", req.Repo,
		"pr", req.PR,
		"refresh", req.ForceRefresh,
		"prs", snap.BoardGroups.Total(),
		"commits", len(snap.Commits.Items),
		"duration", s.now().Sub(start).Round(time.Millisecond))
	return snap, nil
}

func (s *Service) markCached(snap *snapshot.Snapshot) *snapshot.Snapshot {
	at := snap.LastUpdated
	snap.Cached = true
	snap.CachedAt = &at
	snap.LastUpdated = s.now().UTC()
	return snap
}

func (s *Service) Stats() Stats {
	return Stats{
		Hits:    s.hits.Load(),
		Misses:  s.misses.Load(),
		Fetches: s.fetches.Load(),
		Errors:  s.failures.Load(),
	}
}
