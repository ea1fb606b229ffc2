package paths

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Defaults for the kernel object namespace
const (
	DefaultDir    = "/dev/shm"
	DefaultPrefix = "shmbus_"
	DefaultPerm   = 0o644
)

// File name decorations
const (
	// SemaphoreMarker prefixes every semaphore file
	SemaphoreMarker = "sem."

	// MutexSuffix is appended to a segment name to name its mutex semaphore
	MutexSuffix = "_shm"

	// TempMarker prefixes objects that are still being initialized
	TempMarker = ".tmp-"

	nameMax = 255
)

var (
	// ErrInvalidName reports a name that cannot be used for a kernel object.
	ErrInvalidName = errors.New("invalid object name")

	// ErrEmptyPrefix reports a namespace whose objects would be
	// indistinguishable from other programs' files in the same directory.
	ErrEmptyPrefix = errors.New("namespace prefix cannot be empty")
)

// Kind classifies a file found in the namespace directory
type Kind int

const (
	KindUnknown Kind = iota
	KindSegment
	KindSemaphore
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindSegment:
		return "segment"
	case KindSemaphore:
		return "semaphore"
	default:
		return "unknown"
	}
}

// Namespace is the directory and prefix shared by every cooperating process.
type Namespace struct {
	Dir    string
	Prefix string
	Perm   uint32
}

// Default returns the host-wide namespace
func Default() Namespace {
	return Namespace{
		Dir:    DefaultDir,
		Prefix: DefaultPrefix,
		Perm:   DefaultPerm,
	}
}

// New creates a namespace, filling an empty directory and permission with
// defaults. The prefix is kept as given; see Validate.
func New(dir, prefix string, perm uint32) Namespace {
	ns := Namespace{Dir: dir, Prefix: prefix, Perm: perm}
	if ns.Dir == "" {
		ns.Dir = DefaultDir
	}
	if ns.Perm == 0 {
		ns.Perm = DefaultPerm
	}
	return ns
}

// Validate checks that the namespace can own objects. The prefix is the only
// thing separating bus objects from unrelated files in the directory, so it
// must be set.
func (n Namespace) Validate() error {
	if n.Prefix == "" {
		return ErrEmptyPrefix
	}
	if strings.ContainsAny(n.Prefix, "/\x00") {
		return fmt.Errorf("%w: prefix %q contains a path separator or NUL", ErrInvalidName, n.Prefix)
	}
	return nil
}

// SegmentPath returns the file backing a shared-memory segment
func (n Namespace) SegmentPath(name string) string {
	return filepath.Join(n.Dir, n.Prefix+name)
}

// SemaphorePath returns the file backing a named semaphore
func (n Namespace) SemaphorePath(name string) string {
	return filepath.Join(n.Dir, SemaphoreMarker+n.Prefix+name)
}

// TempPath returns a scratch path in the namespace directory
func (n Namespace) TempPath(id string) string {
	return filepath.Join(n.Dir, TempMarker+id)
}

// Parse maps a directory entry back to its object kind and logical name.
// Entries outside the prefix, and temporaries, report ok == false. A
// namespace without a prefix claims nothing.
func (n Namespace) Parse(file string) (Kind, string, bool) {
	if n.Prefix == "" || strings.HasPrefix(file, TempMarker) {
		return KindUnknown, "", false
	}
	kind := KindSegment
	if rest, found := strings.CutPrefix(file, SemaphoreMarker); found {
		kind = KindSemaphore
		file = rest
	}
	name, found := strings.CutPrefix(file, n.Prefix)
	if !found || name == "" {
		return KindUnknown, "", false
	}
	return kind, name, true
}

// MutexName returns the semaphore name guarding a segment
func MutexName(segment string) string {
	return segment + MutexSuffix
}

// IsMutexName reports whether a semaphore name belongs to a segment mutex
func IsMutexName(name string) bool {
	return strings.HasSuffix(name, MutexSuffix) && len(name) > len(MutexSuffix)
}

// SegmentOfMutex returns the segment a mutex semaphore guards
func SegmentOfMutex(name string) string {
	return strings.TrimSuffix(name, MutexSuffix)
}

// ValidateName checks that a name can be turned into an object path
func (n Namespace) ValidateName(name string) error {
	if err := n.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidName, err)
	}
	if name == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidName)
	}
	if strings.ContainsAny(name, "/\x00") {
		return fmt.Errorf("%w: %q contains a path separator or NUL", ErrInvalidName, name)
	}
	if name == "." || name == ".." {
		return fmt.Errorf("%w: %q is a path component", ErrInvalidName, name)
	}
	if len(SemaphoreMarker)+len(n.Prefix)+len(name)+len(MutexSuffix) > nameMax {
		return fmt.Errorf("%w: %q is too long", ErrInvalidName, name)
	}
	return nil
}

// ValidateTopicName checks a topic name. Topic semaphores must not alias a
// segment mutex, so the mutex suffix is reserved.
func (n Namespace) ValidateTopicName(name string) error {
	if err := n.ValidateName(name); err != nil {
		return err
	}
	if IsMutexName(name) {
		return fmt.Errorf("%w: topic %q uses the reserved suffix %q", ErrInvalidName, name, MutexSuffix)
	}
	return nil
}
