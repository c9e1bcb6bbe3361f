package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type State int

const (
	Running State = iota
	Recovering
)

func (s State) String() string {
	if s == Recovering {
		return "recovering"
	}
	return "running"
}

var restartsTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "collabpads",
		Name:      "restarts_total",
		Help:      "Times the supervisor restarted the hub after a failure",
	},
)

// Collectors returns the supervisor metrics.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{restartsTotal}
}

// Supervisor keeps the hub alive. Every failure of a Running period, panics included, is
// followed by a fixed pause and a fresh start. Only cancelling the context ends Run.
type Supervisor struct {
	run        func(ctx context.Context) error
	retryDelay time.Duration
	logger     *zap.SugaredLogger

	mu       sync.Mutex
	state    State
	attempts int
}

func NewSupervisor(retryDelay time.Duration, logger *zap.SugaredLogger, run func(ctx context.Context) error) *Supervisor {
	return &Supervisor{
		run:        run,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Attempts is the number of Running periods started so far.
func (s *Supervisor) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

func (s *Supervisor) enter(state State) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	if state == Running {
		s.attempts++
	}
	return s.attempts
}

func (s *Supervisor) Run(ctx context.Context) error {
	for {
		attempt := s.enter(Running)
		s.logger.Infow("System: starting server", "count", attempt-1)

		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.enter(Recovering)
		restartsTotal.Inc()
		s.logger.Errorw(fmt.Sprintf("Error: %v Retrying in %s...", err, s.retryDelay), "count", attempt-1)

		timer := time.NewTimer(s.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Supervisor) runOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	err = s.run(ctx)
	if err == nil {
		err = errServerStopped
	}
	return err
}
