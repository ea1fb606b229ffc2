package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/bytedance/sonic"

	"github.com/GriffinCanCode/shmbus/internal/admin"
)

func (a *app) manager() *admin.Manager {
	return admin.NewManager(a.cfg.Bus.Namespace(), a.logger)
}

func runList(_ context.Context, a *app, args []string) error {
	fs := a.newFlagSet("list")
	pattern := fs.String("pattern", "", "glob over object names, ** allowed")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := parse(fs, args); err != nil {
		return err
	}

	objects, err := a.manager().List(*pattern)
	if err != nil {
		return err
	}
	if *asJSON {
		if objects == nil {
			objects = []admin.Object{}
		}
		return writeJSON(a.stdout, objects)
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tNAME\tSIZE\tVALUE")
	for _, obj := range objects {
		size, value := "-", "-"
		if obj.Kind == admin.KindSegment {
			size = strconv.FormatInt(obj.Size, 10)
		}
		if obj.Value != nil {
			value = strconv.Itoa(*obj.Value)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", obj.Kind, obj.Name, size, value)
	}
	return tw.Flush()
}

func runInspect(_ context.Context, a *app, args []string) error {
	fs := a.newFlagSet("inspect")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageErr("expected one object name")
	}

	report, err := a.manager().Inspect(fs.Arg(0))
	if err != nil {
		return err
	}
	return writeJSON(a.stdout, report)
}

func runProvision(_ context.Context, a *app, args []string) error {
	fs := a.newFlagSet("provision")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageErr("expected one manifest path")
	}

	manifest, err := admin.LoadManifest(fs.Arg(0))
	if err != nil {
		return err
	}
	result, err := a.manager().Provision(manifest)
	if result != nil {
		if werr := writeJSON(a.stdout, result); err == nil {
			err = werr
		}
	}
	return err
}

func runTeardown(_ context.Context, a *app, args []string) error {
	fs := a.newFlagSet("teardown")
	ignoreMissing := fs.Bool("ignore-missing", false, "do not fail on objects that are already gone")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageErr("expected one manifest path")
	}

	manifest, err := admin.LoadManifest(fs.Arg(0))
	if err != nil {
		return err
	}
	return a.manager().Teardown(manifest, admin.TeardownOptions{IgnoreMissing: *ignoreMissing})
}

func runDestroy(_ context.Context, a *app, args []string) error {
	fs := a.newFlagSet("destroy")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageErr("expected one pattern")
	}

	removed, err := a.manager().DestroyMatching(fs.Arg(0))
	for _, obj := range removed {
		fmt.Fprintf(a.stdout, "%s\t%s\n", obj.Kind, obj.Name)
	}
	return err
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := sonic.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
