// Package run is the bridge service: supervised serial to MQTT pipeline.
package run

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/temoto/dsmr-bridge/bus"
	"github.com/temoto/dsmr-bridge/bus/mqtt"
	"github.com/temoto/dsmr-bridge/bus/paho"
	"github.com/temoto/dsmr-bridge/cmd/dsmr-bridge/subcmd"
	"github.com/temoto/dsmr-bridge/helpers"
	"github.com/temoto/dsmr-bridge/internal/bridge"
	"github.com/temoto/dsmr-bridge/internal/config"
	"github.com/temoto/dsmr-bridge/log2"
)

var Mod = subcmd.Mod{Name: "run", Usage: "read serial port, publish to MQTT (default)", Main: Main}

func Main(ctx context.Context, c *config.Config, log *log2.Log, args []string) error {
	if len(args) != 0 {
		return errors.NotValidf("run arguments=%q", args)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	stats := bridge.NewStats(reg)
	log.SetErrorFunc(func(error) { stats.LogErrors.Inc() })
	if c.Metrics.Listen != "" {
		srv := &http.Server{
			Addr:    c.Metrics.Listen,
			Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}
		go func() {
			log.Infof("metrics listen=%s", c.Metrics.Listen)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Errorf("metrics listen=%s err=%v", c.Metrics.Listen, err)
			}
		}()
		defer func() {
			shutCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		}()
	}

	reporter, err := newReporter(c, log)
	if err != nil {
		return err
	}
	newPublisher, err := PublisherFunc(c, log)
	if err != nil {
		return err
	}
	sup := bridge.NewSupervisor(bridge.Supervisor{
		OpenSource: func(context.Context) (bridge.Source, error) {
			return bridge.OpenSerialSource(c, stats, log)
		},
		NewPublisher: newPublisher,
		Runner: &bridge.Runner{
			Options:    c.MeasureOptions(),
			Log:        log,
			Stats:      stats,
			OnTelegram: func() { subcmd.SdNotify(log, daemon.SdNotifyWatchdog) },
		},
		Reporter: reporter,
		Backoff:  helpers.NewConstantBackoff(c.Backoff()),
		Log:      log,
		Stats:    stats,
	})

	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigch)
	go func() {
		s, ok := <-sigch
		if ok {
			log.Infof("signal=%v stopping", s)
			subcmd.SdNotify(log, daemon.SdNotifyStopping)
			sup.Stop()
		}
	}()

	subcmd.SdNotify(log, daemon.SdNotifyReady)
	log.Infof("running serial=%s mqtt=%s topic=%s", c.Serial.Port, c.Mqtt.Host, c.Mqtt.Topic)
	err = sup.Run(ctx)
	if errors.Cause(err) == context.Canceled {
		return nil
	}
	return err
}

func newReporter(c *config.Config, log *log2.Log) (bridge.Reporter, error) {
	rs := []bridge.Reporter{bridge.NewLogReporter(log)}
	if c.Persist.Root != "" {
		p, err := bridge.NewPersistReporter(c.Persist.Root, log)
		if err != nil {
			return nil, errors.Annotate(err, "persist")
		}
		if s := p.State(); s.Failures != 0 {
			log.Infof("previous failures=%d last kind=%s time=%s err=%s",
				s.Failures, s.LastKind, s.LastErrorTime.Format(time.RFC3339), s.LastError)
		}
		rs = append(rs, p)
	}
	return bridge.MultiReporter(rs...), nil
}

// PublisherFunc makes fresh publisher of configured backend for each pipeline run.
func PublisherFunc(c *config.Config, log *log2.Log) (bridge.PublisherFunc, error) {
	mlog := log.Clone(log2.LInfo)
	if c.Mqtt.LogDebug {
		mlog.SetLevel(log2.LDebug)
	}
	switch c.Mqtt.Backend {
	case config.BackendPaho:
		paho.SetLogger(mlog, c.Mqtt.LogDebug)
		opt := paho.Options{
			BrokerURL:      c.Mqtt.Host,
			NetworkTimeout: c.NetworkTimeout(),
			KeepaliveSec:   uint16(c.Mqtt.KeepaliveSec),
			ClientID:       c.Mqtt.ClientID,
			Username:       c.Mqtt.Username,
			Password:       c.Mqtt.Password,
			Log:            mlog,
		}
		return func(context.Context) (bus.Publisher, error) { return paho.NewPublisher(opt) }, nil

	case config.BackendGomqtt, "":
		opt := mqtt.Options{
			BrokerURL:      c.Mqtt.Host,
			NetworkTimeout: c.NetworkTimeout(),
			KeepaliveSec:   uint16(c.Mqtt.KeepaliveSec),
			ClientID:       c.Mqtt.ClientID,
			Username:       c.Mqtt.Username,
			Password:       c.Mqtt.Password,
			Log:            mlog,
		}
		return func(context.Context) (bus.Publisher, error) { return mqtt.NewPublisher(opt) }, nil
	}
	return nil, errors.NotSupportedf("mqtt backend=%s", c.Mqtt.Backend)
}
