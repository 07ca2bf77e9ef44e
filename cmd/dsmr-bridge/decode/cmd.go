// Package decode prints bus messages of captured telegrams without connecting anywhere.
package decode

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/juju/errors"
	"github.com/temoto/dsmr-bridge/cmd/dsmr-bridge/subcmd"
	"github.com/temoto/dsmr-bridge/helpers/cli"
	"github.com/temoto/dsmr-bridge/internal/config"
	"github.com/temoto/dsmr-bridge/log2"
	"github.com/temoto/dsmr-bridge/measure"
	"github.com/temoto/dsmr-bridge/p1"
)

const modName = "decode"

var Mod = subcmd.Mod{Name: modName, Usage: "print messages for telegram files, from arguments or stdin lines", Main: Main}

func Main(ctx context.Context, c *config.Config, log *log2.Log, args []string) error {
	d := &Decoder{Options: c.MeasureOptions(), Out: os.Stdout, Log: log}
	if len(args) != 0 {
		for _, path := range args {
			if err := d.File(path); err != nil {
				return err
			}
		}
		return nil
	}
	return cli.MainLoop(modName, d.Exec, cli.NoComplete)
}

type Decoder struct {
	Options measure.Options
	Out     io.Writer
	Log     *log2.Log
}

func (d *Decoder) Exec(path string) {
	if err := d.File(path); err != nil {
		d.Log.Errorf("decode file=%s err=%v", path, err)
	}
}

func (d *Decoder) File(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Trace(err)
	}
	defer f.Close()
	return errors.Annotatef(d.Decode(f), "file=%s", path)
}

// Decode prints every telegram in serial capture r, one message per line.
func (d *Decoder) Decode(r io.Reader) error {
	pr := p1.NewReader(r)
	for n := 1; ; n++ {
		ro, err := pr.Next()
		if errors.Cause(err) == io.EOF {
			if n == 1 {
				return errors.NotFoundf("telegram")
			}
			return nil
		}
		if err != nil {
			return errors.Annotatef(err, "telegram=%d", n)
		}
		tg, err := ro.Telegram()
		if err != nil {
			return errors.Annotatef(err, "telegram=%d", n)
		}
		set, skipped := measure.Collect(tg)
		msgs, unencodable := set.Messages(d.Options)
		skipped = append(skipped, unencodable...)
		fmt.Fprintf(d.Out, "# telegram=%d header=%s messages=%d skipped=%d\n", n, tg.Header, len(msgs), len(skipped))
		for _, e := range skipped {
			fmt.Fprintf(d.Out, "# skip %v\n", e)
		}
		for _, m := range msgs {
			if d.Options.Format == measure.PayloadProto {
				fmt.Fprintf(d.Out, "%s %x\n", m.Topic, m.Payload)
			} else {
				fmt.Fprintf(d.Out, "%s %s\n", m.Topic, m.Payload)
			}
		}
	}
}
