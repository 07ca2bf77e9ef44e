// Package paho is alternate bus.Publisher on eclipse paho client.
package paho

import (
	"context"
	"net/url"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"github.com/temoto/dsmr-bridge/bus"
	"github.com/temoto/dsmr-bridge/log2"
	"github.com/temoto/dsmr-bridge/measure"
)

const (
	DefaultNetworkTimeout = 30 * time.Second
	disconnectQuiesceMs   = 250
)

var ErrClosing = errors.New("paho publisher is closing")

type Options struct {
	BrokerURL      string
	NetworkTimeout time.Duration
	KeepaliveSec   uint16
	ClientID       string
	Username       string
	Password       string
	Log            *log2.Log
}

// Publisher wraps paho client with automatic reconnect disabled,
// lost connection closes Done() like gomqtt backend.
type Publisher struct {
	client mqtt.Client
	opt    Options

	mu       sync.Mutex
	done     chan struct{}
	doneOnce sync.Once
	err      error
}

var _ bus.Publisher = &Publisher{} // compile-time interface test

// SetLogger routes paho package level diagnostics to log.
// Paho loggers are global, call once at startup.
func SetLogger(log *log2.Log, debug bool) {
	if log == nil {
		return
	}
	mqtt.ERROR = log
	mqtt.CRITICAL = log
	mqtt.WARN = log
	if debug {
		mqtt.DEBUG = log
	}
}

func NewPublisher(opt Options) (*Publisher, error) {
	if opt.NetworkTimeout == 0 {
		opt.NetworkTimeout = DefaultNetworkTimeout
	}
	u, err := url.ParseRequestURI(opt.BrokerURL)
	if err != nil {
		return nil, errors.Annotatef(err, "config error mqtt BrokerURL=%s", opt.BrokerURL)
	}
	if u.User != nil && opt.Username == "" && opt.Password == "" {
		opt.Username = u.User.Username()
		opt.Password, _ = u.User.Password()
		u.User = nil
	}
	p := &Publisher{
		opt:  opt,
		done: make(chan struct{}),
	}
	copt := mqtt.NewClientOptions().
		AddBroker(u.String()).
		SetClientID(opt.ClientID).
		SetUsername(opt.Username).
		SetPassword(opt.Password).
		SetCleanSession(true).
		SetProtocolVersion(4).
		SetKeepAlive(time.Duration(opt.KeepaliveSec) * time.Second).
		SetPingTimeout(opt.NetworkTimeout).
		SetConnectTimeout(opt.NetworkTimeout).
		SetWriteTimeout(opt.NetworkTimeout).
		SetAutoReconnect(false).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			p.opt.Log.Debugf("paho connection lost broker=%s err=%v", p.opt.BrokerURL, err)
			p.die(errors.Annotate(err, "connection lost"))
		})
	p.client = mqtt.NewClient(copt)
	return p, nil
}

func (p *Publisher) Connect(ctx context.Context) error {
	if err := p.Err(); err != nil {
		return err
	}
	if err := p.wait(ctx, p.client.Connect(), "connect"); err != nil {
		return p.die(errors.Annotatef(err, "broker=%s", p.opt.BrokerURL))
	}
	return nil
}

func (p *Publisher) Publish(ctx context.Context, m measure.Message) error {
	if m.QOS > 1 {
		return errors.NotSupportedf("QOS=%d", m.QOS)
	}
	if err := p.Err(); err != nil {
		return errors.Annotate(err, "publish")
	}
	tok := p.client.Publish(m.Topic, m.QOS, m.Retain, m.Payload)
	if err := p.wait(ctx, tok, "publish topic="+m.Topic); err != nil {
		if errors.IsTimeout(err) {
			// no retry, connection is considered broken
			return p.die(err)
		}
		return err
	}
	return nil
}

func (p *Publisher) Disconnect() error {
	if p.client.IsConnected() {
		p.client.Disconnect(disconnectQuiesceMs)
	}
	p.die(ErrClosing)
	return nil
}

func (p *Publisher) Done() <-chan struct{} { return p.done }

func (p *Publisher) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

func (p *Publisher) die(e error) error {
	p.doneOnce.Do(func() {
		p.mu.Lock()
		p.err = e
		p.mu.Unlock()
		close(p.done)
	})
	return e
}

func (p *Publisher) wait(ctx context.Context, tok mqtt.Token, what string) error {
	timeout := p.opt.NetworkTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d < timeout {
			timeout = d
		}
	}
	if !tok.WaitTimeout(timeout) {
		return errors.Timeoutf(what)
	}
	return errors.Annotate(tok.Error(), what)
}
