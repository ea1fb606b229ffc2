package ipc

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/shmbus/internal/testutil"
)

func TestOpenOrCreateCreatesThenAttaches(t *testing.T) {
	ns := testutil.Namespace(t)
	path := ns.SegmentPath("obj")

	first, err := OpenOrCreate(ns, path, 32, func(b []byte) { b[0] = 0x7f })
	require.NoError(t, err)
	defer first.Close()

	assert.True(t, first.Created())
	assert.Equal(t, 32, first.Size())
	assert.Equal(t, path, first.Path())

	second, err := OpenOrCreate(ns, path, 64, func(b []byte) { b[0] = 0x01 })
	require.NoError(t, err)
	defer second.Close()

	assert.False(t, second.Created())
	assert.Equal(t, 32, second.Size(), "attach adopts the existing size")
	assert.Equal(t, byte(0x7f), second.Data()[0], "init only runs for the creator")

	first.Data()[1] = 0x42
	assert.Equal(t, byte(0x42), second.Data()[1], "both mappings share memory")

	testutil.RequireNoTemporaries(t, ns)
}

func TestOpenOrCreateWithoutSize(t *testing.T) {
	ns := testutil.Namespace(t)

	_, err := OpenOrCreate(ns, ns.SegmentPath("missing"), 0, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrObjectMissing)
}

func TestConcurrentCreateConvergesOnOneObject(t *testing.T) {
	ns := testutil.Namespace(t)
	path := ns.SegmentPath("race")

	const openers = 16
	objs := make([]*Object, openers)
	errs := make([]error, openers)

	var wg sync.WaitGroup
	for i := 0; i < openers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			objs[i], errs[i] = OpenOrCreate(ns, path, 128, nil)
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < openers; i++ {
		require.NoError(t, errs[i])
		defer objs[i].Close()
		if objs[i].Created() {
			created++
		}
	}
	assert.Equal(t, 1, created, "exactly one opener creates the object")

	objs[0].Data()[7] = 0xee
	for _, obj := range objs {
		assert.Equal(t, byte(0xee), obj.Data()[7])
	}
	testutil.RequireNoTemporaries(t, ns)
}

func TestRemove(t *testing.T) {
	ns := testutil.Namespace(t)
	path := ns.SegmentPath("gone")

	obj, err := OpenOrCreate(ns, path, 8, nil)
	require.NoError(t, err)
	require.True(t, Exists(path))

	require.NoError(t, Remove(path))
	assert.False(t, Exists(path))

	// The mapping survives removal until closed
	obj.Data()[0] = 1
	require.NoError(t, obj.Close())
	require.NoError(t, obj.Close(), "close is idempotent")

	err = Remove(path)
	assert.ErrorIs(t, err, ErrObjectMissing)
}

func TestAttachMissing(t *testing.T) {
	ns := testutil.Namespace(t)

	_, err := Attach(ns.SemaphorePath("nope"))
	assert.ErrorIs(t, err, ErrObjectMissing)
}
