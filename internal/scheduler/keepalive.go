// Package scheduler keeps the shared store connection warm.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	DefaultKeepAliveSchedule = "@every 15m"
	defaultKeepAliveTimeout  = 30 * time.Second
)

// KeepAliveFunc pings the store once.
type KeepAliveFunc func(ctx context.Context) error

type Observer interface {
	ObserveKeepAlive(err error)
}

type KeepAliveSchedulerDependencies struct {
	KeepAlive KeepAliveFunc
	Schedule  string
	Timeout   time.Duration
	Observer  Observer
}

type KeepAliveScheduler struct {
	cron      *cron.Cron
	keepAlive KeepAliveFunc
	timeout   time.Duration
	observer  Observer
}

func NewKeepAliveScheduler(deps KeepAliveSchedulerDependencies) (*KeepAliveScheduler, error) {
	schedule := deps.Schedule
	if schedule == "" {
		schedule = DefaultKeepAliveSchedule
	}

	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = defaultKeepAliveTimeout
	}

	s := &KeepAliveScheduler{
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		keepAlive: deps.KeepAlive,
		timeout:   timeout,
		observer:  deps.Observer,
	}

	if _, err := s.cron.AddFunc(schedule, func() { _ = s.RunOnce(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid keep-alive schedule %q: %w", schedule, err)
	}

	return s, nil
}

func (s *KeepAliveScheduler) Start() {
	s.cron.Start()
	log.Info().Msg("Store keep-alive scheduler started")
}

// Stop waits for a running ping to finish or for ctx to end.
func (s *KeepAliveScheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (s *KeepAliveScheduler) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.keepAlive(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Store keep-alive failed")
	} else {
		log.Debug().Msg("Store keep-alive succeeded")
	}

	if s.observer != nil {
		s.observer.ObserveKeepAlive(err)
	}

	return err
}
