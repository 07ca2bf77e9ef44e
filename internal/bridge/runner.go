// Package bridge is the P1 to bus pipeline and its supervisor.
package bridge

import (
	"context"
	"io"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/dsmr-bridge/bus"
	"github.com/temoto/dsmr-bridge/log2"
	"github.com/temoto/dsmr-bridge/measure"
	"github.com/temoto/dsmr-bridge/p1"
)

// Runner is one connection lifetime of the pipeline.
type Runner struct {
	Options measure.Options
	Log     *log2.Log
	Stats   *Stats
	// OnTelegram is called after every fully published telegram, e.g. watchdog ping.
	OnTelegram func()
}

// Run reads, decodes and publishes until first error. Never returns nil.
// Errors are classified with Kind, ctx cancel returns ctx.Err() as is.
func (r *Runner) Run(ctx context.Context, src Source, pub bus.Publisher) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ro, err := src.Next()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return classifyRead(err)
		}
		if err = r.telegram(ctx, ro, pub); err != nil {
			return err
		}
	}
}

func (r *Runner) telegram(ctx context.Context, ro p1.Readout, pub bus.Publisher) error {
	tg, err := ro.Telegram()
	if err != nil {
		r.Log.Debugf("telegram raw=%q", ro.Raw)
		return NewError(KindDecode, errors.Annotate(err, "telegram"))
	}
	set, skipped := measure.Collect(tg)
	msgs, unencodable := set.Messages(r.Options)
	skipped = append(skipped, unencodable...)
	for _, e := range skipped {
		r.Log.Debugf("telegram header=%s skip: %v", tg.Header, e)
	}
	for i, m := range msgs {
		if err = pub.Publish(ctx, m); err != nil {
			return NewError(KindPublish, errors.Annotatef(err, "message %d/%d topic=%s", i+1, len(msgs), m.Topic))
		}
		if r.Stats != nil {
			r.Stats.Published.Inc()
		}
	}
	r.Log.Debugf("telegram header=%s published=%d skipped=%d", tg.Header, len(msgs), len(skipped))
	if r.Stats != nil {
		r.Stats.Telegrams.Inc()
		r.Stats.LastTelegram.Set(float64(time.Now().Unix()))
	}
	if r.OnTelegram != nil {
		r.OnTelegram()
	}
	return nil
}

func classifyRead(err error) error {
	switch {
	case errors.Cause(err) == io.EOF:
		return NewError(KindEndOfStream, err)
	case p1.IsDecodeError(err):
		return NewError(KindDecode, err)
	}
	return NewError(KindRead, err)
}
