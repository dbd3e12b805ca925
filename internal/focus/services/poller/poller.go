// Package poller follows the companion application's focus state.
package poller

import (
	"context"
	"time"

	"github.com/haukened/focusgate/internal/focus/common/clock"
	"github.com/haukened/focusgate/internal/focus/common/log"
)

const DefaultInterval = 2 * time.Second

// StatusSource reports whether the user is in a focus session.
type StatusSource interface {
	IsFocusing(ctx context.Context) (bool, error)
}

// StateSink receives the observed focus state after every poll.
type StateSink interface {
	SetFocusing(ctx context.Context, focusing bool) error
}

type Options struct {
	Source   StatusSource
	Sink     StateSink
	Clock    clock.Clock
	Interval time.Duration
	Logger   log.Logger
}

// Poller queries the StatusSource on a fixed interval. An unreachable source
// counts as "not focusing".
type Poller struct {
	source   StatusSource
	sink     StateSink
	clock    clock.Clock
	interval time.Duration
	logger   log.Logger
	last     *bool
}

func New(opts Options) *Poller {
	p := &Poller{
		source:   opts.Source,
		sink:     opts.Sink,
		clock:    opts.Clock,
		interval: opts.Interval,
		logger:   log.Component(opts.Logger, "poller"),
	}
	if p.clock == nil {
		p.clock = clock.RealClock{}
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	return p
}

// Run polls immediately and then once per interval until ctx is done.
// Neither source nor sink errors stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info(map[string]any{"interval": p.interval.String()}, "status poller started")
	p.Poll(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info(nil, "status poller stopped")
			return nil
		case <-ticker.C():
			p.Poll(ctx)
		}
	}
}

// Poll performs a single status query and forwards the result to the sink.
func (p *Poller) Poll(ctx context.Context) bool {
	focusing, err := p.source.IsFocusing(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Debug(map[string]any{"error": err}, "status query failed, treating as not focusing")
		focusing = false
	}

	if p.last == nil || *p.last != focusing {
		p.logger.Info(map[string]any{"focusing": focusing}, "focus state observed")
	}
	p.last = &focusing

	if err := p.sink.SetFocusing(ctx, focusing); err != nil {
		p.logger.Error(map[string]any{"error": err, "focusing": focusing}, "failed to apply focus state")
	}
	return focusing
}
