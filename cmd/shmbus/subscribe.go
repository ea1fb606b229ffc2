package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/shmbus/internal/topic"
)

// Subscribe modes
const (
	modeWait    = "wait"
	modeNoWait  = "nowait"
	modeTimeout = "timeout"
)

func runSubscribe(ctx context.Context, a *app, args []string) error {
	fs := a.newFlagSet("subscribe")
	name := fs.String("topic", "", "topic to wait on")
	segment := fs.String("segment", "", "segment to read (defaults to the topic)")
	mode := fs.String("mode", modeWait, "wait, nowait or timeout")
	timeout := fs.Duration("timeout", time.Second, "how long to wait in timeout mode")
	follow := fs.Bool("follow", false, "keep printing notifications until interrupted")
	var pf payloadFlags
	pf.register(fs)
	if err := parse(fs, args); err != nil {
		return err
	}

	if *name == "" {
		return usageErr("-topic is required")
	}
	if *segment == "" {
		*segment = *name
	}
	if *timeout <= 0 {
		return usageErr("-timeout must be positive")
	}
	switch *mode {
	case modeWait, modeNoWait, modeTimeout:
	default:
		return usageErr("unknown mode %q", *mode)
	}

	c, err := pf.codec()
	if err != nil {
		return err
	}
	emit := func(payload []byte) error {
		v, err := c.Decode(payload)
		if err != nil {
			return err
		}
		return pf.write(a.stdout, v)
	}

	bus := topic.New(a.cfg.Bus.Namespace(), topic.WithLogger(a.logger))
	defer bus.Close()

	if *follow {
		a.logger.Debug("Following topic", zap.String("topic", *name), zap.String("segment", *segment))
		return topic.Watch(ctx, bus, *name, *segment, topic.DefaultPoll, emit)
	}

	delivered := true
	switch *mode {
	case modeWait:
		err = waitOnce(ctx, bus, *name, *segment, emit)
	case modeNoWait:
		delivered, err = bus.SubscribeNoWait(*name, *segment, emit)
	case modeTimeout:
		delivered, err = bus.SubscribeTimeout(*name, *segment, *timeout, emit)
	}
	if err != nil {
		return err
	}
	if !delivered {
		return errNoMessage
	}
	return nil
}

// waitOnce blocks until one delivery, waiting in slices so an interrupt is
// noticed
func waitOnce(ctx context.Context, bus *topic.Bus, name, segment string, fn func([]byte) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		delivered, err := bus.SubscribeTimeout(name, segment, topic.DefaultPoll, fn)
		if err != nil || delivered {
			return err
		}
	}
}
