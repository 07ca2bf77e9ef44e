package bus

import (
	"context"
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/dsmr-bridge/measure"
)

var _ Publisher = &Mock{} // compile-time interface test

// Mock records published messages. Safe for concurrent use.
type Mock struct {
	sync.Mutex
	ConnectErr error
	// Publish returns PublishErr after PublishOK successful calls. Zero PublishOK means unlimited.
	PublishOK  int
	PublishErr error
	// OnPublish is called before message is recorded.
	OnPublish func(measure.Message)

	connected    bool
	disconnected bool
	msgs         []measure.Message
	done         chan struct{}
	doneOnce     sync.Once
	err          error
}

func NewMock() *Mock { return &Mock{done: make(chan struct{})} }

func (self *Mock) Connect(ctx context.Context) error {
	self.Lock()
	defer self.Unlock()
	if self.ConnectErr != nil {
		return self.ConnectErr
	}
	self.connected = true
	return nil
}

func (self *Mock) Publish(ctx context.Context, m measure.Message) error {
	self.Lock()
	if !self.connected || self.disconnected {
		self.Unlock()
		return errors.New("mock publisher not connected")
	}
	if self.PublishOK != 0 && len(self.msgs) >= self.PublishOK {
		err := self.PublishErr
		self.Unlock()
		if err == nil {
			err = errors.New("mock publish failure")
		}
		return err
	}
	fun := self.OnPublish
	self.Unlock()
	if fun != nil {
		fun(m)
	}
	self.Lock()
	self.msgs = append(self.msgs, m)
	self.Unlock()
	return nil
}

func (self *Mock) Disconnect() error {
	self.Lock()
	defer self.Unlock()
	self.disconnected = true
	return nil
}

func (self *Mock) Done() <-chan struct{} { return self.done }

func (self *Mock) Err() error {
	self.Lock()
	defer self.Unlock()
	return self.err
}

// Kill simulates background connection failure.
func (self *Mock) Kill(err error) {
	self.doneOnce.Do(func() {
		self.Lock()
		self.err = err
		self.Unlock()
		close(self.done)
	})
}

func (self *Mock) Messages() []measure.Message {
	self.Lock()
	defer self.Unlock()
	return append([]measure.Message(nil), self.msgs...)
}

func (self *Mock) Topics() []string {
	ms := self.Messages()
	ts := make([]string, len(ms))
	for i, m := range ms {
		ts[i] = m.Topic
	}
	return ts
}

func (self *Mock) Disconnected() bool {
	self.Lock()
	defer self.Unlock()
	return self.disconnected
}
