package admin

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/shmbus/internal/infrastructure/logging"
	"github.com/GriffinCanCode/shmbus/internal/ipc"
	"github.com/GriffinCanCode/shmbus/internal/ipc/sem"
	"github.com/GriffinCanCode/shmbus/internal/ipc/shm"
	"github.com/GriffinCanCode/shmbus/internal/shared/paths"
)

// Kind classifies a listed object
type Kind string

const (
	KindSegment Kind = "segment"
	KindTopic   Kind = "topic"
	KindMutex   Kind = "mutex"
)

// Object describes one kernel object in the namespace
type Object struct {
	Kind Kind   `json:"kind"`
	Name string `json:"name"`
	Path string `json:"path"`
	// Size is the segment size in bytes
	Size int64 `json:"size,omitempty"`
	// Value is the semaphore counter; nil for segments
	Value *int `json:"value,omitempty"`
}

// Report is the state of a name as both a segment and a topic
type Report struct {
	Name    string        `json:"name"`
	Segment *SegmentState `json:"segment,omitempty"`
	Topic   *TopicState   `json:"topic,omitempty"`
}

// SegmentState describes a segment and its mutex
type SegmentState struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Mutex  int    `json:"mutex"`
	Locked bool   `json:"locked"`
}

// TopicState describes a topic's notification semaphore
type TopicState struct {
	Path    string `json:"path"`
	Pending int    `json:"pending"`
}

// ProvisionResult lists which objects a provision created
type ProvisionResult struct {
	Created  []string `json:"created"`
	Existing []string `json:"existing"`
}

// TeardownOptions tunes Teardown
type TeardownOptions struct {
	// IgnoreMissing treats objects that are already gone as removed
	IgnoreMissing bool
}

// Manager performs administrative operations on one namespace
type Manager struct {
	ns     paths.Namespace
	logger *logging.Logger
}

// NewManager creates a manager
func NewManager(ns paths.Namespace, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{ns: ns, logger: logger}
}

// Namespace returns the managed namespace
func (m *Manager) Namespace() paths.Namespace { return m.ns }

// List returns the objects whose logical name matches pattern, a
// doublestar glob; an empty pattern matches everything. Results are sorted
// by kind, then name.
func (m *Manager) List(pattern string) ([]Object, error) {
	if err := m.ns.Validate(); err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	if pattern == "" {
		pattern = "*"
	}
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}

	root := filepath.Clean(m.ns.Dir)
	var (
		mu      sync.Mutex
		objects []Object
	)
	conf := fastwalk.Config{Follow: false}

	err := fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != root {
				return filepath.SkipDir
			}
			return nil
		}

		kind, name, ok := m.ns.Parse(d.Name())
		if !ok || !doublestar.MatchUnvalidated(pattern, name) {
			return nil
		}

		obj, ok := m.describe(kind, name, p)
		if !ok {
			return nil
		}
		mu.Lock()
		objects = append(objects, obj)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", root, err)
	}

	sort.Slice(objects, func(i, j int) bool {
		if objects[i].Kind != objects[j].Kind {
			return objects[i].Kind < objects[j].Kind
		}
		return objects[i].Name < objects[j].Name
	})
	return objects, nil
}

// describe stats one object; objects that vanish mid-listing are skipped
func (m *Manager) describe(kind paths.Kind, name, path string) (Object, bool) {
	switch kind {
	case paths.KindSegment:
		info, err := os.Stat(path)
		if err != nil {
			return Object{}, false
		}
		return Object{Kind: KindSegment, Name: name, Path: path, Size: info.Size()}, true

	case paths.KindSemaphore:
		v, err := sem.Peek(m.ns, name)
		if err != nil {
			m.logger.Debug("Skipping unreadable semaphore", logging.Path(path), zap.Error(err))
			return Object{}, false
		}
		obj := Object{Kind: KindTopic, Name: name, Path: path, Value: &v}
		if paths.IsMutexName(name) {
			obj.Kind = KindMutex
		}
		return obj, true
	}
	return Object{}, false
}

// Inspect reports name as a segment and as a topic. It fails with
// ipc.ErrObjectMissing when neither exists.
func (m *Manager) Inspect(name string) (*Report, error) {
	if err := m.ns.ValidateName(name); err != nil {
		return nil, err
	}
	report := &Report{Name: name}

	segPath := m.ns.SegmentPath(name)
	if info, err := os.Stat(segPath); err == nil {
		state := &SegmentState{Path: segPath, Size: info.Size()}
		if v, err := sem.Peek(m.ns, paths.MutexName(name)); err == nil {
			state.Mutex = v
			state.Locked = v == 0
		} else if !errors.Is(err, ipc.ErrObjectMissing) {
			return nil, err
		}
		report.Segment = state
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("inspect segment %q: %w", name, err)
	}

	if !paths.IsMutexName(name) {
		v, err := sem.Peek(m.ns, name)
		switch {
		case err == nil:
			report.Topic = &TopicState{Path: m.ns.SemaphorePath(name), Pending: v}
		case !errors.Is(err, ipc.ErrObjectMissing):
			return nil, err
		}
	}

	if report.Segment == nil && report.Topic == nil {
		return nil, fmt.Errorf("inspect %q: %w", name, ipc.ErrObjectMissing)
	}
	return report, nil
}

// Provision creates every segment and topic in the manifest that does not
// exist yet. An existing segment of a different size fails with
// ipc.ErrSizeMismatch; existing objects are otherwise left untouched.
func (m *Manager) Provision(manifest *Manifest) (*ProvisionResult, error) {
	if err := manifest.Validate(m.ns); err != nil {
		return nil, err
	}
	result := &ProvisionResult{}

	for _, spec := range manifest.Segments {
		seg, err := shm.Open(m.ns, spec.Name, true, spec.Size)
		if err != nil {
			return result, err
		}
		result.track("segment/"+spec.Name, seg.Created())
		m.logger.Info("Segment provisioned",
			logging.Segment(spec.Name), logging.Size(spec.Size), zap.Bool("created", seg.Created()))
		if err := seg.Close(); err != nil {
			return result, err
		}
	}

	for _, name := range manifest.Topics {
		t, err := sem.Open(m.ns, name, 0)
		if err != nil {
			return result, err
		}
		result.track("topic/"+name, t.Created())
		m.logger.Info("Topic provisioned", logging.Topic(name), zap.Bool("created", t.Created()))
		if err := t.Close(); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (r *ProvisionResult) track(name string, created bool) {
	if created {
		r.Created = append(r.Created, name)
	} else {
		r.Existing = append(r.Existing, name)
	}
}

// Teardown permanently removes every segment (with its mutex) and topic in
// the manifest. It keeps going after a failure and returns all of them.
func (m *Manager) Teardown(manifest *Manifest, opts TeardownOptions) error {
	if err := manifest.Validate(m.ns); err != nil {
		return err
	}

	var err error
	for _, spec := range manifest.Segments {
		err = multierr.Append(err, m.remove(opts, func() error { return shm.Remove(m.ns, spec.Name) },
			logging.Segment(spec.Name)))
	}
	for _, name := range manifest.Topics {
		err = multierr.Append(err, m.remove(opts, func() error { return sem.Remove(m.ns, name) },
			logging.Topic(name)))
	}
	return err
}

func (m *Manager) remove(opts TeardownOptions, fn func() error, field zap.Field) error {
	err := fn()
	switch {
	case err == nil:
		m.logger.Info("Destroyed", field)
		return nil
	case opts.IgnoreMissing && errors.Is(err, ipc.ErrObjectMissing):
		m.logger.Warn("Already destroyed", field)
		return nil
	default:
		return err
	}
}

// DestroyMatching removes every object whose name matches pattern and
// returns what it removed. An empty pattern is rejected so a typo cannot
// wipe the namespace, and so is a namespace without a prefix.
func (m *Manager) DestroyMatching(pattern string) ([]Object, error) {
	if err := m.ns.Validate(); err != nil {
		return nil, fmt.Errorf("destroy: %w", err)
	}
	if pattern == "" {
		return nil, fmt.Errorf("destroy: empty pattern: %w", doublestar.ErrBadPattern)
	}
	objects, err := m.List(pattern)
	if err != nil {
		return nil, err
	}

	opts := TeardownOptions{IgnoreMissing: true}
	var (
		removed []Object
		errs    error
	)
	for _, obj := range objects {
		var rerr error
		switch obj.Kind {
		case KindSegment:
			// also removes the segment's mutex
			rerr = m.remove(opts, func() error { return shm.Remove(m.ns, obj.Name) }, logging.Segment(obj.Name))
		default:
			rerr = m.remove(opts, func() error { return sem.Remove(m.ns, obj.Name) }, zap.String("semaphore", obj.Name))
		}
		if rerr != nil {
			errs = multierr.Append(errs, rerr)
			continue
		}
		removed = append(removed, obj)
	}
	return removed, errs
}
