package bridge

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/dsmr-bridge/log2"
	"github.com/temoto/extremofile"
	"gopkg.in/yaml.v3"
)

// Reporter receives every error that ended a pipeline run.
type Reporter interface {
	Report(err error)
}

type ReporterFunc func(error)

func (f ReporterFunc) Report(err error) { f(err) }

type multiReporter []Reporter

func MultiReporter(rs ...Reporter) Reporter { return multiReporter(rs) }

func (m multiReporter) Report(err error) {
	for _, r := range m {
		if r != nil {
			r.Report(err)
		}
	}
}

func NewLogReporter(log *log2.Log) Reporter {
	return ReporterFunc(func(err error) {
		log.Errorf("pipeline kind=%s err=%v", KindOf(err), err)
		log.Debugf("pipeline error stack:\n%s", errors.ErrorStack(err))
	})
}

// RunState is crash-safe run statistics. Never contains measurements.
type RunState struct {
	Failures      uint64    `yaml:"failures"`
	LastKind      string    `yaml:"last_kind,omitempty"`
	LastError     string    `yaml:"last_error,omitempty"`
	LastErrorTime time.Time `yaml:"last_error_time,omitempty"`
}

type storage interface {
	Read() ([]byte, error)
	Write([]byte) (int, error)
}

// PersistReporter keeps RunState across restarts in extremofile storage.
type PersistReporter struct {
	sync.Mutex
	log     *log2.Log
	state   RunState
	storage storage
}

func NewPersistReporter(root string, log *log2.Log) (*PersistReporter, error) {
	if root == "" {
		return nil, errors.NotValidf("persist root empty")
	}
	p := &PersistReporter{
		log: log,
		storage: extremofile.New(extremofile.Config{
			Dir:      filepath.Join(root, "run-state"),
			DirPerm:  0755,
			FilePerm: 0644,
		}),
	}
	return p, p.load()
}

func (p *PersistReporter) load() error {
	p.Lock()
	defer p.Unlock()
	tbegin := time.Now()
	b, err := p.storage.Read()
	p.log.Debugf("persist run-state read duration=%v", time.Since(tbegin))
	if b == nil {
		return errors.Annotate(err, "persist run-state load")
	}
	if err != nil {
		p.log.Errorf("persist run-state ignore non-critical storage err=%v", err)
	}
	return errors.Annotate(yaml.Unmarshal(b, &p.state), "persist run-state load")
}

func (p *PersistReporter) State() RunState {
	p.Lock()
	defer p.Unlock()
	return p.state
}

func (p *PersistReporter) Report(err error) {
	p.Lock()
	defer p.Unlock()
	p.state.Failures++
	p.state.LastKind = KindOf(err).String()
	p.state.LastError = err.Error()
	p.state.LastErrorTime = time.Now().UTC().Truncate(time.Second)
	b, e := yaml.Marshal(&p.state)
	if e == nil {
		_, e = p.storage.Write(b)
	}
	if e != nil {
		p.log.Errorf("persist run-state store err=%v", e)
	}
}
