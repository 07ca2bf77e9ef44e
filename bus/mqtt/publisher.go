// Package mqtt is single connection MQTT 3.1.1 publisher on top of gomqtt transport.
package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/256dpi/gomqtt/client"
	"github.com/256dpi/gomqtt/client/future"
	"github.com/256dpi/gomqtt/packet"
	"github.com/256dpi/gomqtt/transport"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/atomic_clock"
	"github.com/temoto/dsmr-bridge/bus"
	"github.com/temoto/dsmr-bridge/log2"
	"github.com/temoto/dsmr-bridge/measure"
)

const DefaultNetworkTimeout = 30 * time.Second

var ErrClosing = fmt.Errorf("MQTT publisher is closing")

type Options struct {
	BrokerURL      string
	TLS            *tls.Config
	NetworkTimeout time.Duration
	KeepaliveSec   uint16
	ClientID       string
	Username       string
	Password       string
	Log            *log2.Log
}

// Publisher is one MQTT connection.
// - NewPublisher() returns only configuration errors, network IO starts in Connect
// - clean session, no subscriptions
// - no reconnect: connection failure closes Done(), caller creates new Publisher
// - QOS 0,1, QOS 1 waits for PUBACK up to NetworkTimeout
// - no in-flight storage, serialized Publish
type Publisher struct { //nolint:maligned
	alive  *alive.Alive
	closed uint32
	conn   atomic.Value // transport.Conn
	conpkt *packet.Connect
	dialer *transport.Dialer
	err    atomic.Value // errBox
	lastID uint32
	opt    Options
	pingat *atomic_clock.Clock // timestamp of last outgoing control packet
	pongat *atomic_clock.Clock // timestamp of last incoming control packet

	flowPublish struct {
		sync.Mutex
		fu *future.Future
		id packet.ID
	}
}

var _ bus.Publisher = &Publisher{} // compile-time interface test

type errBox struct{ error }

func NewPublisher(opt Options) (*Publisher, error) {
	if opt.NetworkTimeout == 0 {
		opt.NetworkTimeout = DefaultNetworkTimeout
	}
	if u, err := url.ParseRequestURI(opt.BrokerURL); err != nil {
		return nil, errors.Annotatef(err, "config error mqtt BrokerURL=%s", opt.BrokerURL)
	} else if u.User != nil && opt.Username == "" && opt.Password == "" {
		opt.Username = u.User.Username()
		opt.Password, _ = u.User.Password()
	}
	p := &Publisher{
		alive:  alive.NewAlive(),
		conpkt: packet.NewConnect(),
		lastID: uint32(time.Now().UnixNano()),
		opt:    opt,
		pingat: atomic_clock.New(),
		pongat: atomic_clock.New(),
	}
	p.conpkt.ClientID = defaultString(opt.ClientID, opt.Username)
	p.conpkt.KeepAlive = opt.KeepaliveSec
	p.conpkt.CleanSession = true
	p.conpkt.Username = opt.Username
	p.conpkt.Password = opt.Password
	p.dialer = transport.NewDialer(transport.DialConfig{
		TLSConfig: opt.TLS,
		Timeout:   opt.NetworkTimeout,
	})
	return p, nil
}

// Connect dials broker, sends CONNECT, waits CONNACK, then starts pinger and reader.
func (p *Publisher) Connect(ctx context.Context) error {
	if !p.alive.Add(1) {
		return p.reason()
	}
	defer p.alive.Done()

	connected := make(chan struct{})
	defer close(connected)
	go func() {
		select {
		case <-ctx.Done():
			_ = p.die(errors.Annotate(ctx.Err(), "connect"))
		case <-connected:
		}
	}()

	conn, err := p.dialer.Dial(p.opt.BrokerURL)
	if err != nil {
		return p.die(errors.Annotatef(err, "connect: dial broker=%s", p.opt.BrokerURL))
	}
	p.conn.Store(conn)
	if !p.alive.IsRunning() {
		_ = conn.Close()
		return p.reason()
	}
	if err = p.send(p.conpkt); err != nil {
		return err
	}

	// expect CONNACK
	conn.SetReadTimeout(p.opt.NetworkTimeout)
	pkt, err := conn.Receive()
	if err != nil {
		return p.die(errors.Annotate(err, "connect: expect CONNACK"))
	}
	connack, ok := pkt.(*packet.Connack)
	if !ok {
		return p.die(errors.Annotatef(client.ErrClientExpectedConnack, "connect: server error pkt=%s", PacketString(pkt)))
	}
	p.opt.Log.Debugf("CONNACK=%s", connack.String())
	if connack.ReturnCode != packet.ConnectionAccepted {
		return p.die(errors.Annotate(client.ErrClientConnectionDenied, connack.ReturnCode.String()))
	}
	conn.SetReadTimeout(0)

	if !p.alive.Add(2) {
		return p.reason()
	}
	p.pongat.SetNow()
	go p.pinger()
	go p.reader()
	return nil
}

// Publish sends one message. QOS 1 waits for PUBACK.
// Any transport error kills the connection.
func (p *Publisher) Publish(ctx context.Context, m measure.Message) error {
	if m.QOS >= byte(packet.QOSExactlyOnce) {
		return errors.NotSupportedf("QOS=%d", m.QOS)
	}
	if !p.alive.IsRunning() || p.getConn() == nil {
		return errors.Annotate(p.reason(), "publish")
	}

	publish := packet.NewPublish()
	publish.Message = packet.Message{
		Topic:   m.Topic,
		Payload: m.Payload,
		QOS:     packet.QOS(m.QOS),
		Retain:  m.Retain,
	}
	if publish.Message.QOS == packet.QOSAtMostOnce {
		return errors.Annotate(p.send(publish), "send PUBLISH")
	}

	publish.ID = p.nextID()
	fu := future.New()
	p.flowPublish.Lock()
	p.flowPublish.fu = fu
	p.flowPublish.id = publish.ID
	p.flowPublish.Unlock()
	defer func() {
		p.flowPublish.Lock()
		p.flowPublish.fu = nil
		p.flowPublish.Unlock()
	}()
	if err := p.send(publish); err != nil {
		return errors.Annotate(err, "send PUBLISH")
	}

	waitDone := make(chan struct{})
	defer close(waitDone)
	go func() {
		select {
		case <-ctx.Done():
			fu.Cancel(errors.Annotatef(ctx.Err(), "PUBACK id=%d", publish.ID))
		case <-waitDone:
		}
	}()
	switch err := fu.Wait(p.opt.NetworkTimeout); err {
	case nil:
		return nil

	case future.ErrCanceled:
		e, ok := fu.Result().(error)
		if !ok {
			return p.reason()
		}
		if cause := errors.Cause(e); cause == context.Canceled || cause == context.DeadlineExceeded {
			// late PUBACK would break next flow, connection is not reusable
			return p.die(e)
		}
		return e

	case future.ErrTimeout:
		// no resend with DUP, connection is considered broken
		err = errors.Timeoutf("PUBACK id=%d", publish.ID)
		return p.die(err)

	default:
		return errors.Errorf("code error future.Wait()=%v", err)
	}
}

// Disconnect is best effort: DISCONNECT packet, close connection, wait background tasks.
func (p *Publisher) Disconnect() error {
	var err error
	if p.alive.IsRunning() && p.getConn() != nil {
		err = p.send(packet.NewDisconnect())
	}
	_ = p.die(ErrClosing)
	p.alive.Wait()
	return err
}

func (p *Publisher) Done() <-chan struct{} { return p.alive.StopChan() }

func (p *Publisher) Err() error {
	if b, ok := p.err.Load().(errBox); ok {
		return b.error
	}
	return nil
}

func (p *Publisher) reason() error {
	if err := p.Err(); err != nil {
		return err
	}
	return ErrClosing
}

func (p *Publisher) die(e error) error {
	if e == nil {
		e = ErrClosing
	}
	if !atomic.CompareAndSwapUint32(&p.closed, 0, 1) {
		return e
	}
	p.err.Store(errBox{e})
	p.alive.Stop()
	p.flowPublish.Lock()
	if p.flowPublish.fu != nil {
		p.flowPublish.fu.Cancel(e)
	}
	p.flowPublish.Unlock()
	if conn := p.getConn(); conn != nil {
		_ = conn.Close()
	}
	if e != ErrClosing {
		p.opt.Log.Debugf("mqtt connection broker=%s closed err=%v", p.opt.BrokerURL, e)
	}
	return e
}

func (p *Publisher) getConn() transport.Conn {
	if x := p.conn.Load(); x != nil {
		return x.(transport.Conn)
	}
	return nil
}

func (p *Publisher) nextID() packet.ID {
	u32 := atomic.AddUint32(&p.lastID, 1)
	id := packet.ID(u32 % (1 << 16))
	if id == 0 {
		id = 1
	}
	return id
}

func (p *Publisher) onPuback(id packet.ID) {
	p.flowPublish.Lock()
	defer p.flowPublish.Unlock()
	if p.flowPublish.fu == nil {
		p.opt.Log.Errorf("unexpected PUBACK id=%d", id)
		return
	}
	if p.flowPublish.id != id {
		// no concurrent publish flow, PUBACK for unexpected id is severe error
		go p.die(errors.Errorf("PUBACK id=%d expected=%d", id, p.flowPublish.id)) //nolint:errcheck
		return
	}
	p.flowPublish.fu.Complete(id)
}

// Sends ping packets to keep the connection alive.
// PINGREQ is only sent if Keepalive-NetworkTimeout has passed since last command.
func (p *Publisher) pinger() {
	defer p.alive.Done()
	if p.opt.KeepaliveSec == 0 {
		return
	}

	// [MQTT-3.1.2-24] basically says control packets must arrive at most KeepaliveSec*1.5 apart.
	keepalive := keepaliveAndHalf(p.opt.KeepaliveSec)
	// Try to send PINGREQ as late as possible to keep network traffic to minimum while respecting possible network issues.
	interval := keepalive - p.opt.NetworkTimeout
	if interval <= 0 {
		interval = keepalive / 2
	}
	stopch := p.alive.StopChan()
	for p.alive.IsRunning() {
		now := atomic_clock.Now()
		window := now.Sub(p.pingat)
		sincePong := now.Sub(p.pongat)

		if sincePong > keepalive {
			_ = p.die(client.ErrClientMissingPong)
			return
		}
		if window >= interval {
			if err := p.send(packet.NewPingreq()); err != nil {
				return
			}
			continue
		}
		sleep := interval - window
		if untilDead := keepalive - sincePong; untilDead < sleep {
			sleep = untilDead + time.Millisecond
		}
		select {
		case <-time.After(sleep):
		case <-stopch:
			return
		}
	}
}

func (p *Publisher) reader() {
	defer p.alive.Done()

	conn := p.getConn()
	for {
		pkt, err := conn.Receive()
		if !p.alive.IsRunning() {
			return
		}
		switch errors.Cause(err) {
		case nil: // success path

		case io.EOF:
			_ = p.die(errors.New("server closed connection"))
			return

		default:
			_ = p.die(errors.Annotate(err, "receive"))
			return
		}
		p.opt.Log.Debugf("received=%s", PacketString(pkt))

		switch pt := pkt.(type) {
		case *packet.Connack:
			_ = p.die(errors.Errorf("server error duplicate CONNACK pkt=%s", PacketString(pkt)))
			return

		case *packet.Pingresp:
			p.pongat.SetNow()

		case *packet.Puback:
			p.pongat.SetNow()
			p.onPuback(pt.ID)

		default:
			p.opt.Log.Debugf("unexpected packet %s", PacketString(pkt))
		}
	}
}

func (p *Publisher) send(pkt packet.Generic) error {
	conn := p.getConn()
	if conn == nil {
		return client.ErrClientNotConnected
	}
	if err := conn.Send(pkt, false); err != nil {
		err = errors.Annotatef(err, "send %s", pkt.Type().String())
		return p.die(err)
	}
	p.pingat.SetNow()
	p.opt.Log.Debugf("sent %s", PacketString(pkt))
	return nil
}
