package main

import (
	"context"

	"github.com/GriffinCanCode/shmbus/internal/bench"
)

func runBench(ctx context.Context, a *app, args []string) error {
	opts := bench.DefaultOptions()
	fs := a.newFlagSet("bench")
	fs.StringVar(&opts.Topic, "topic", opts.Topic, "topic to publish on")
	fs.StringVar(&opts.Segment, "segment", opts.Segment, "segment to write")
	fs.IntVar(&opts.Messages, "n", opts.Messages, "messages to publish")
	fs.Float64Var(&opts.Rate, "rate", opts.Rate, "messages per second (0 for unpaced)")
	fs.IntVar(&opts.PayloadSize, "size", opts.PayloadSize, "payload size in bytes")
	fs.DurationVar(&opts.Timeout, "timeout", opts.Timeout, "how long the subscriber waits for a straggler")
	if err := parse(fs, args); err != nil {
		return err
	}

	result, err := bench.Run(ctx, a.cfg.Bus.Namespace(), opts, a.logger)
	if err != nil {
		return err
	}
	return writeJSON(a.stdout, result)
}
