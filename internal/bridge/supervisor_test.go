package bridge

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/dsmr-bridge/bus"
	"github.com/temoto/dsmr-bridge/hardware/serial"
	"github.com/temoto/dsmr-bridge/helpers"
	"github.com/temoto/dsmr-bridge/log2"
	"github.com/temoto/dsmr-bridge/measure"
)

type report struct {
	err    error
	at     time.Time
	opened int // sources opened when error was reported
	// state of the failed run's connections when error was reported
	pubDisconnected bool
	portClosed      bool
}

type supervisorEnv struct {
	sync.Mutex
	ports   []*serial.MockPort
	pubs    []*bus.Mock
	started []time.Time // publisher creation, one per run
	reports chan report
	stats   *Stats
	sup     *Supervisor
	backoff time.Duration
	// run counts from 0, separately for publishers and sources
	onPublisher func(run int, pub *bus.Mock)
	onSource    func(run int, port *serial.MockPort, pub *bus.Mock)
	onTelegram  func()
}

func newSupervisorEnv() *supervisorEnv {
	return &supervisorEnv{
		backoff: time.Millisecond,
		reports: make(chan report, 16),
		stats:   NewStats(nil),
	}
}

func (env *supervisorEnv) start(t testing.TB) (cancel func() error) {
	log := log2.NewTest(t, log2.LDebug)
	env.sup = NewSupervisor(Supervisor{
		NewPublisher: env.newPublisher,
		OpenSource:   env.openSource,
		Runner: &Runner{
			Options:    measure.Options{Prefix: "dsmr"},
			Log:        log,
			Stats:      env.stats,
			OnTelegram: env.onTelegram,
		},
		Reporter: ReporterFunc(func(err error) {
			select {
			case env.reports <- env.snapshot(err):
			default:
			}
		}),
		Backoff: helpers.NewConstantBackoff(env.backoff),
		Log:     log,
		Stats:   env.stats,
	})
	ctx, cancelCtx := context.WithCancel(context.Background())
	errch := make(chan error, 1)
	go func() { errch <- env.sup.Run(ctx) }()
	return func() error {
		cancelCtx()
		return <-errch
	}
}

func (env *supervisorEnv) newPublisher(ctx context.Context) (bus.Publisher, error) {
	pub := bus.NewMock()
	env.Lock()
	run := len(env.pubs)
	env.pubs = append(env.pubs, pub)
	env.started = append(env.started, time.Now())
	env.Unlock()
	if env.onPublisher != nil {
		env.onPublisher(run, pub)
	}
	return pub, nil
}

func (env *supervisorEnv) openSource(ctx context.Context) (Source, error) {
	port := serial.NewMockPort()
	env.Lock()
	run := len(env.ports)
	env.ports = append(env.ports, port)
	pub := env.pubs[len(env.pubs)-1]
	env.Unlock()
	if env.onSource != nil {
		env.onSource(run, port, pub)
	}
	return NewSource(port, env.stats), nil
}

func (env *supervisorEnv) snapshot(err error) report {
	env.Lock()
	defer env.Unlock()
	r := report{err: err, at: time.Now(), opened: len(env.ports)}
	if n := len(env.pubs); n != 0 {
		r.pubDisconnected = env.pubs[n-1].Disconnected()
	}
	if n := len(env.ports); n != 0 {
		r.portClosed = env.ports[n-1].IsClosed()
	}
	return r
}

func (env *supervisorEnv) startedAt(i int) time.Time {
	env.Lock()
	defer env.Unlock()
	return env.started[i]
}

func (env *supervisorEnv) opened() int {
	env.Lock()
	defer env.Unlock()
	return len(env.ports)
}

func (env *supervisorEnv) port(i int) *serial.MockPort {
	env.Lock()
	defer env.Unlock()
	return env.ports[i]
}

func (env *supervisorEnv) pub(i int) *bus.Mock {
	env.Lock()
	defer env.Unlock()
	return env.pubs[i]
}

func (env *supervisorEnv) next(t testing.TB) report {
	select {
	case r := <-env.reports:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for report")
	}
	return report{}
}

func TestSupervisorEndOfStream(t *testing.T) {
	t.Parallel()

	env := newSupervisorEnv()
	env.onSource = func(run int, port *serial.MockPort, _ *bus.Mock) {
		port.Feed(testTelegram("1-0:1.7.0(01.193*kW)"))
		port.EOF()
	}
	stop := env.start(t)
	r1, r2 := env.next(t), env.next(t)
	assert.Equal(t, context.Canceled, stop())

	assert.Equal(t, KindEndOfStream, KindOf(r1.err))
	assert.Equal(t, KindEndOfStream, KindOf(r2.err))
	assert.Equal(t, 2, r2.opened)
	// reported before disconnect and close
	assert.False(t, r1.pubDisconnected)
	assert.False(t, r1.portClosed)
	for i := 0; i < 2; i++ {
		assert.Equal(t, []string{"dsmr/power_delivered"}, env.pub(i).Topics())
		assert.True(t, env.pub(i).Disconnected())
		assert.True(t, env.port(i).IsClosed())
	}
	assert.True(t, testutil.ToFloat64(env.stats.Failures.WithLabelValues("end_of_stream")) >= 2)
	assert.True(t, testutil.ToFloat64(env.stats.Restarts) >= 1)
}

func TestSupervisorDecodeFailure(t *testing.T) {
	t.Parallel()

	env := newSupervisorEnv()
	env.onSource = func(run int, port *serial.MockPort, _ *bus.Mock) {
		tg := testTelegram("1-0:1.7.0(01.193*kW)")
		if run == 0 {
			tg = []byte(strings.Replace(string(tg), "01.193", "01.194", 1))
		}
		port.Feed(tg)
		port.EOF()
	}
	stop := env.start(t)
	r1, r2 := env.next(t), env.next(t)
	assert.Equal(t, context.Canceled, stop())

	assert.Equal(t, KindDecode, KindOf(r1.err), errors.ErrorStack(r1.err))
	assert.Equal(t, KindEndOfStream, KindOf(r2.err))
	assert.Empty(t, env.pub(0).Messages())
	assert.Equal(t, []string{"dsmr/power_delivered"}, env.pub(1).Topics())
}

func TestSupervisorPublisherLost(t *testing.T) {
	t.Parallel()

	env := newSupervisorEnv()
	// no data, runner blocks on read until source is closed
	env.onSource = func(run int, port *serial.MockPort, pub *bus.Mock) {
		if run == 0 {
			go pub.Kill(errors.New("keepalive timeout"))
		}
	}
	stop := env.start(t)
	r := env.next(t)
	assert.Equal(t, KindConnection, KindOf(r.err))
	assert.Contains(t, r.err.Error(), "publisher background")
	assert.Contains(t, r.err.Error(), "keepalive timeout")
	assert.True(t, r.portClosed, "source must be closed to stop runner")
	assert.False(t, r.pubDisconnected)
	assert.True(t, env.port(0).IsClosed())
	require.Eventually(t, env.pub(0).Disconnected, 5*time.Second, time.Millisecond)

	require.Eventually(t, func() bool { return env.opened() >= 2 }, 5*time.Second, time.Millisecond)
	assert.Equal(t, context.Canceled, stop())
	assert.True(t, env.port(1).IsClosed())
	assert.True(t, env.pub(1).Disconnected())
}

func TestSupervisorConstantBackoff(t *testing.T) {
	t.Parallel()

	const backoff = 50 * time.Millisecond
	const failures = 5
	env := newSupervisorEnv()
	env.backoff = backoff
	env.onSource = func(run int, port *serial.MockPort, _ *bus.Mock) { port.EOF() }
	stop := env.start(t)
	reports := make([]report, failures)
	for i := range reports {
		reports[i] = env.next(t)
	}
	require.Eventually(t, func() bool { return env.opened() > failures }, 5*time.Second, time.Millisecond)
	assert.Equal(t, context.Canceled, stop())

	for i, r := range reports {
		assert.Equal(t, KindEndOfStream, KindOf(r.err))
		gap := env.startedAt(i + 1).Sub(r.at)
		assert.True(t, gap >= backoff-2*time.Millisecond, "failure=%d restarted after %v, before backoff=%v", i+1, gap, backoff)
		// exponential growth would reach 16x by the last failure
		assert.True(t, gap < 6*backoff, "failure=%d restarted after %v, backoff must stay %v", i+1, gap, backoff)
	}
}

func TestSupervisorPublisherStoppedWithoutReason(t *testing.T) {
	t.Parallel()

	env := newSupervisorEnv()
	env.onSource = func(run int, port *serial.MockPort, pub *bus.Mock) {
		if run == 0 {
			pub.Kill(nil)
		}
	}
	stop := env.start(t)
	r := env.next(t)
	assert.Equal(t, context.Canceled, stop())
	require.Error(t, r.err)
	assert.Equal(t, KindConnection, KindOf(r.err))
}

func TestSupervisorConnectFailure(t *testing.T) {
	t.Parallel()

	env := newSupervisorEnv()
	env.onPublisher = func(run int, pub *bus.Mock) {
		if run == 0 {
			pub.ConnectErr = errors.New("connection refused")
		}
	}
	stop := env.start(t)
	r := env.next(t)
	assert.Equal(t, KindConnection, KindOf(r.err))
	assert.Contains(t, r.err.Error(), "connection refused")
	assert.Equal(t, 0, r.opened)

	require.Eventually(t, func() bool { return env.opened() >= 1 }, 5*time.Second, time.Millisecond)
	assert.Equal(t, context.Canceled, stop())
}

func TestSupervisorPanic(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		setup  func(env *supervisorEnv)
		expect string
	}{
		{"source", func(env *supervisorEnv) {
			env.onSource = func(run int, port *serial.MockPort, _ *bus.Mock) {
				if run == 0 {
					panic("open")
				}
			}
		}, "panic: open"},
		{"runner", func(env *supervisorEnv) {
			var once sync.Once
			env.onSource = func(run int, port *serial.MockPort, _ *bus.Mock) {
				port.Feed(testTelegram("1-0:1.7.0(01.193*kW)"))
			}
			env.onTelegram = func() { once.Do(func() { panic("hook") }) }
		}, "runner panic: hook"},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			env := newSupervisorEnv()
			c.setup(env)
			stop := env.start(t)
			r := env.next(t)
			assert.Equal(t, KindUnknown, KindOf(r.err))
			assert.Contains(t, r.err.Error(), c.expect)
			require.Eventually(t, func() bool { return env.opened() >= 2 }, 5*time.Second, time.Millisecond)
			assert.Equal(t, context.Canceled, stop())
		})
	}
}

func TestSupervisorStop(t *testing.T) {
	t.Parallel()

	env := newSupervisorEnv()
	opened := make(chan struct{})
	env.onSource = func(run int, port *serial.MockPort, _ *bus.Mock) { close(opened) }
	stop := env.start(t)
	<-opened
	env.sup.Stop()
	env.sup.Wait()
	assert.Equal(t, context.Canceled, stop())
	assert.True(t, env.port(0).IsClosed())
	assert.Equal(t, context.Canceled, env.sup.Run(context.Background()))
	assert.Equal(t, 1, env.opened())
}

func TestNewSupervisorDefaults(t *testing.T) {
	t.Parallel()

	s := NewSupervisor(Supervisor{})
	require.NotNil(t, s.Runner)
	assert.Equal(t, 5*time.Second, s.Backoff.Min)
}
