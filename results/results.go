// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package results

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/danielhkuo/vote-kiosk/models"
)

// DefaultInterval is the poll cadence when none is configured.
const DefaultInterval = 5 * time.Second

// API is the slice of the client the poller needs.
type API interface {
	FetchPaslon(ctx context.Context) ([]models.Paslon, error)
	FetchLifeResult(ctx context.Context) (map[string]int, error)
}

// Poller repeatedly fetches the live tally while the voting phase is
// active. One fetch is in flight at a time; the poller terminates
// itself when the phase leaves active.
type Poller struct {
	api      API
	interval time.Duration

	// phase is the externally owned voting-phase flag; the poller only
	// reads it.
	phase func() string

	mu        sync.Mutex
	started   bool
	active    bool
	inFlight  bool
	stop      chan struct{}
	standings []models.PaslonStanding
}

func New(api API, interval time.Duration, phase func() string) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{api: api, interval: interval, phase: phase}
}

// Start is idempotent: only the first call in the poller's lifetime
// installs the timer. It performs one immediate fetch, then polls on
// the configured cadence.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.active = true
	p.stop = make(chan struct{})
	stop := p.stop
	p.mu.Unlock()

	p.fetch(ctx)
	go p.loop(ctx, stop)
}

func (p *Poller) loop(ctx context.Context, stop chan struct{}) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			p.Stop()
			return
		case <-ticker.C:
			if p.phase() != models.PhaseActive {
				slog.Info("voting phase no longer active, stopping result poll")
				p.Stop()
				return
			}
			p.fetch(ctx)
		}
	}
}

// fetch retrieves roster and counts, single-flight: if one fetch is
// still outstanding when the next tick fires, the tick is skipped.
func (p *Poller) fetch(ctx context.Context) {
	p.mu.Lock()
	if p.inFlight {
		p.mu.Unlock()
		return
	}
	p.inFlight = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inFlight = false
		p.mu.Unlock()
	}()

	var roster []models.Paslon
	var counts map[string]int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		roster, err = p.api.FetchPaslon(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		counts, err = p.api.FetchLifeResult(gctx)
		return err
	})

	if err := g.Wait(); err != nil {
		var shapeErr *models.DataShapeError
		if errors.As(err, &shapeErr) {
			// Malformed payload degrades to an empty result.
			slog.Error("result payload failed validation", "error", err)
			p.mu.Lock()
			p.standings = []models.PaslonStanding{}
			p.mu.Unlock()
			return
		}
		// Transient failure: keep the previous standings.
		slog.Warn("result fetch failed", "error", err)
		return
	}

	standings := Transform(roster, counts)
	p.mu.Lock()
	p.standings = standings
	p.mu.Unlock()
}

// Transform computes the standings from the raw roster and count map.
// Percentages are always computed client-side from the counts, and the
// sort is stable: descending by percentage, ties kept in ascending
// paslon id order. Deterministic for identical input.
func Transform(roster []models.Paslon, counts map[string]int) []models.PaslonStanding {
	if len(roster) == 0 {
		return []models.PaslonStanding{}
	}

	ordered := make([]models.Paslon, len(roster))
	copy(ordered, roster)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	total := 0
	for _, p := range ordered {
		total += counts["paslon"+strconv.Itoa(p.ID)]
	}

	standings := make([]models.PaslonStanding, 0, len(ordered))
	for _, p := range ordered {
		count := counts["paslon"+strconv.Itoa(p.ID)]
		percentage := 0.0
		if total > 0 {
			percentage = float64(count) / float64(total) * 100
		}
		standings = append(standings, models.PaslonStanding{
			PaslonID:   p.ID,
			Name:       p.Name,
			VoteCount:  count,
			Percentage: percentage,
		})
	}

	sort.SliceStable(standings, func(i, j int) bool {
		return standings[i].Percentage > standings[j].Percentage
	})
	return standings
}

// Stop clears the timer and marks the poller inactive. Safe to call
// multiple times; teardown always goes through here so no callback
// outlives the owning view.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.active {
		return
	}
	p.active = false
	close(p.stop)
}

// Active reports whether the poll timer is installed and running.
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Snapshot returns the latest computed standings.
func (p *Poller) Snapshot() []models.PaslonStanding {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.standings
}
