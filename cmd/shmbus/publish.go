package main

import (
	"context"
	"strings"

	"github.com/GriffinCanCode/shmbus/internal/infrastructure/logging"
	"github.com/GriffinCanCode/shmbus/internal/topic"
)

func runPublish(_ context.Context, a *app, args []string) error {
	fs := a.newFlagSet("publish")
	topics := fs.String("topic", "", "comma-separated topics to notify")
	segment := fs.String("segment", "", "segment to write (defaults to the first topic)")
	data := fs.String("data", "", "payload text; -file or stdin when empty")
	file := fs.String("file", "", "read the payload from a file")
	var pf payloadFlags
	pf.register(fs)
	if err := parse(fs, args); err != nil {
		return err
	}

	names := splitList(*topics)
	if len(names) == 0 {
		return usageErr("-topic is required")
	}
	if *segment == "" {
		*segment = names[0]
	}

	c, err := pf.codec()
	if err != nil {
		return err
	}
	raw, err := pf.read(*data, *file, a.stdin)
	if err != nil {
		return err
	}
	payload, err := c.Encode(raw)
	if err != nil {
		return err
	}

	bus := topic.New(a.cfg.Bus.Namespace(), topic.WithLogger(a.logger))
	defer bus.Close()

	if err := bus.PublishList(names, *segment, payload); err != nil {
		return err
	}
	a.logger.Info("Published",
		logging.Topics(names),
		logging.Segment(*segment),
		logging.Size(len(payload)),
	)
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
