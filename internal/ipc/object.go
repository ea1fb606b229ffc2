package ipc

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/GriffinCanCode/shmbus/internal/shared/paths"
)

// maxOpenAttempts bounds the attach/create loop when another process keeps
// destroying the object between our create and attach attempts.
const maxOpenAttempts = 8

// Object is a kernel object file mapped into this process.
type Object struct {
	path    string
	fd      int
	data    []byte
	created bool
}

// Path returns the file backing the object
func (o *Object) Path() string { return o.path }

// Data returns the shared mapping
func (o *Object) Data() []byte { return o.data }

// Size returns the mapped size in bytes
func (o *Object) Size() int { return len(o.data) }

// Created reports whether this process created the object
func (o *Object) Created() bool { return o.created }

// Close unmaps the object and releases the descriptor. Other processes are
// not affected.
func (o *Object) Close() error {
	if o.data == nil {
		return nil
	}
	var errs []error
	if err := unix.Munmap(o.data); err != nil {
		errs = append(errs, &os.PathError{Op: "munmap", Path: o.path, Err: err})
	}
	if err := unix.Close(o.fd); err != nil {
		errs = append(errs, &os.PathError{Op: "close", Path: o.path, Err: err})
	}
	o.data = nil
	o.fd = -1
	return errors.Join(errs...)
}

// OpenOrCreate attaches to the object at path, creating it with size bytes
// when it does not exist. init receives the zeroed mapping of a new object
// before it becomes visible to other processes; it may be nil. A size of
// zero or less never creates: a missing object yields ErrObjectMissing.
func OpenOrCreate(ns paths.Namespace, path string, size int, init func([]byte)) (*Object, error) {
	for attempt := 0; attempt < maxOpenAttempts; attempt++ {
		obj, err := Attach(path)
		if err == nil {
			return obj, nil
		}
		if !errors.Is(err, ErrObjectMissing) || size <= 0 {
			return nil, err
		}

		obj, err = create(ns, path, size, init)
		if err == nil {
			return obj, nil
		}
		if !errors.Is(err, unix.EEXIST) {
			return nil, err
		}
		// Lost the creation race; attach to the winner on the next pass.
	}
	return nil, fmt.Errorf("open %s: object keeps disappearing: %w", path, ErrObjectMissing)
}

// Attach maps an existing object without ever creating one.
func Attach(path string) (*Object, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		if errors.Is(err, unix.ENOENT) {
			return nil, fmt.Errorf("open %s: %w", path, ErrObjectMissing)
		}
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}

	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		unix.Close(fd)
		return nil, &os.PathError{Op: "fstat", Path: path, Err: err}
	}
	if st.Size <= 0 {
		unix.Close(fd)
		return nil, fmt.Errorf("attach %s: empty object: %w", path, ErrInvalidSize)
	}

	data, err := unix.Mmap(fd, 0, int(st.Size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, &os.PathError{Op: "mmap", Path: path, Err: err}
	}

	return &Object{path: path, fd: fd, data: data}, nil
}

// create builds the object under a temporary name and links it into place.
// link(2) fails with EEXIST when another process won the race.
func create(ns paths.Namespace, path string, size int, init func([]byte)) (*Object, error) {
	tmp := ns.TempPath(uuid.NewString())
	fd, err := unix.Open(tmp, unix.O_RDWR|unix.O_CREAT|unix.O_EXCL|unix.O_CLOEXEC, ns.Perm)
	if err != nil {
		return nil, &os.PathError{Op: "create", Path: tmp, Err: err}
	}
	defer unix.Unlink(tmp)

	fail := func(op string, err error) (*Object, error) {
		unix.Close(fd)
		return nil, &os.PathError{Op: op, Path: path, Err: err}
	}

	// umask may have narrowed the creation mode
	if err := unix.Fchmod(fd, ns.Perm); err != nil {
		return fail("chmod", err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		return fail("truncate", err)
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fail("mmap", err)
	}
	if init != nil {
		init(data)
	}

	if err := unix.Link(tmp, path); err != nil {
		unix.Munmap(data)
		unix.Close(fd)
		if errors.Is(err, unix.EEXIST) {
			return nil, err
		}
		return nil, &os.PathError{Op: "link", Path: path, Err: err}
	}

	return &Object{path: path, fd: fd, data: data, created: true}, nil
}

// Remove permanently unlinks an object. Processes that still map it keep
// their view until they close it.
func Remove(path string) error {
	if err := unix.Unlink(path); err != nil {
		if errors.Is(err, unix.ENOENT) {
			return fmt.Errorf("remove %s: %w", path, ErrObjectMissing)
		}
		return &os.PathError{Op: "remove", Path: path, Err: err}
	}
	return nil
}

// Exists reports whether an object file is present
func Exists(path string) bool {
	return unix.Access(path, unix.F_OK) == nil
}
