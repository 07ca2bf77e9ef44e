package bridge

import (
	"context"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/dsmr-bridge/bus"
	"github.com/temoto/dsmr-bridge/helpers"
	"github.com/temoto/dsmr-bridge/log2"
)

type SourceFunc func(ctx context.Context) (Source, error)
type PublisherFunc func(ctx context.Context) (bus.Publisher, error)

// Supervisor restarts pipeline forever: fresh Source and Publisher per run,
// error report, cleanup, constant backoff.
type Supervisor struct {
	OpenSource   SourceFunc
	NewPublisher PublisherFunc
	Runner       *Runner
	Reporter     Reporter
	Backoff      *helpers.Backoff
	Log          *log2.Log
	Stats        *Stats

	alive *alive.Alive
}

func NewSupervisor(s Supervisor) *Supervisor {
	if s.Backoff == nil {
		s.Backoff = helpers.NewConstantBackoff(5 * time.Second)
	}
	if s.Runner == nil {
		s.Runner = &Runner{Log: s.Log, Stats: s.Stats}
	}
	s.alive = alive.NewAlive()
	return &s
}

// Run returns only after ctx is canceled or Stop, with ctx.Err() or context.Canceled.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.alive.Add(1) {
		return context.Canceled
	}
	defer s.alive.Done()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.alive.StopChan():
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		s.Log.Debugf("supervisor starting pipeline")
		err := s.runOnce(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			s.Log.Debugf("supervisor stop, last run err=%v", err)
			return ctxErr
		}

		s.Backoff.Failure()
		delay := s.Backoff.DelayBefore()
		s.Log.Debugf("supervisor backoff=%v", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if s.Stats != nil {
			s.Stats.Restarts.Inc()
		}
	}
}

func (s *Supervisor) Stop() { s.alive.Stop() }

func (s *Supervisor) Wait() { s.alive.Wait() }

// report is called before the run's connections are released.
func (s *Supervisor) report(err error) {
	if s.Stats != nil {
		s.Stats.Failures.WithLabelValues(KindOf(err).String()).Inc()
	}
	if s.Reporter != nil {
		s.Reporter.Report(err)
	}
}

func (s *Supervisor) runOnce(ctx context.Context) (err error) {
	var cleanup []func()
	defer func() {
		if x := recover(); x != nil {
			err = errors.Errorf("panic: %v", x)
		}
		if ctx.Err() == nil {
			if err == nil {
				err = errors.New("code error pipeline run returned nil")
			}
			s.report(err)
		}
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}()

	pub, err := s.NewPublisher(ctx)
	if err != nil {
		return NewError(KindConnection, errors.Annotate(err, "publisher"))
	}
	cleanup = append(cleanup, func() {
		if e := pub.Disconnect(); e != nil {
			s.Log.Debugf("publisher disconnect err=%v", e)
		}
	})
	if err = pub.Connect(ctx); err != nil {
		return NewError(KindConnection, errors.Annotate(err, "publisher connect"))
	}

	src, err := s.OpenSource(ctx)
	if err != nil {
		return NewError(KindConnection, errors.Annotate(err, "source open"))
	}
	cleanup = append(cleanup, func() {
		if e := src.Close(); e != nil {
			s.Log.Debugf("source close err=%v", e)
		}
	})
	s.Log.Infof("pipeline running")

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	errch := make(chan error, 1)
	go func() {
		defer func() {
			if x := recover(); x != nil {
				errch <- errors.Errorf("runner panic: %v", x)
			}
		}()
		errch <- s.Runner.Run(runCtx, src, pub)
	}()

	select {
	case err = <-errch:
		return err

	case <-pub.Done():
		reason := pub.Err()
		if reason == nil {
			reason = errors.New("stopped without reason")
		}
		err = NewError(KindConnection, errors.Annotate(reason, "publisher background"))

	case <-ctx.Done():
		err = ctx.Err()
	}
	// unblock runner waiting on serial read
	cancel()
	_ = src.Close()
	if e := <-errch; e != nil {
		s.Log.Debugf("runner stopped err=%v", e)
	}
	return err
}
