package admin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/shmbus/internal/ipc"
	"github.com/GriffinCanCode/shmbus/internal/ipc/sem"
	"github.com/GriffinCanCode/shmbus/internal/shared/paths"
	"github.com/GriffinCanCode/shmbus/internal/testutil"
	"github.com/GriffinCanCode/shmbus/internal/topic"
)

func names(objects []Object) []string {
	out := make([]string, 0, len(objects))
	for _, o := range objects {
		out = append(out, string(o.Kind)+"/"+o.Name)
	}
	return out
}

func TestProvisionCreatesThenAttaches(t *testing.T) {
	ns := testutil.Namespace(t)
	m := NewManager(ns, nil)

	res, err := m.Provision(expectedManifest())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"segment/imu", "segment/camera", "topic/imu", "topic/imu_log"}, res.Created)
	assert.Empty(t, res.Existing)

	res, err = m.Provision(expectedManifest())
	require.NoError(t, err)
	assert.Empty(t, res.Created)
	assert.Len(t, res.Existing, 4)
	testutil.RequireNoTemporaries(t, ns)
}

func TestProvisionSizeConflict(t *testing.T) {
	ns := testutil.Namespace(t)
	m := NewManager(ns, nil)

	_, err := m.Provision(&Manifest{Segments: []SegmentSpec{{Name: "imu", Size: 64}}})
	require.NoError(t, err)

	_, err = m.Provision(&Manifest{Segments: []SegmentSpec{{Name: "imu", Size: 128}}})
	assert.ErrorIs(t, err, ipc.ErrSizeMismatch)
}

func TestProvisionedSegmentPinsPublishSize(t *testing.T) {
	ns := testutil.Namespace(t)
	_, err := NewManager(ns, nil).Provision(&Manifest{Segments: []SegmentSpec{{Name: "imu", Size: 4}}})
	require.NoError(t, err)

	bus := topic.New(ns)
	defer bus.Close()
	assert.ErrorIs(t, bus.Publish("imu", "imu", []byte("too long")), ipc.ErrSizeMismatch)
	assert.NoError(t, bus.Publish("imu", "imu", []byte("fits")))
}

func TestList(t *testing.T) {
	ns := testutil.Namespace(t)
	bus := topic.New(ns)
	defer bus.Close()

	require.NoError(t, bus.Publish("imu", "imu", make([]byte, 64)))
	require.NoError(t, bus.Publish("imu_log", "log", make([]byte, 8)))
	require.NoError(t, bus.Publish("imu_log", "log", make([]byte, 8)))

	m := NewManager(ns, nil)
	all, err := m.List("")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"mutex/imu_shm",
		"mutex/log_shm",
		"segment/imu",
		"segment/log",
		"topic/imu",
		"topic/imu_log",
	}, names(all))

	for _, o := range all {
		switch o.Kind {
		case KindSegment:
			assert.Nil(t, o.Value)
			if o.Name == "imu" {
				assert.Equal(t, int64(64), o.Size)
			}
		case KindMutex:
			require.NotNil(t, o.Value)
			assert.Equal(t, 1, *o.Value)
		case KindTopic:
			require.NotNil(t, o.Value)
			assert.Equal(t, 1, *o.Value, "coalesced to one pending notification")
		}
	}

	filtered, err := m.List("imu*")
	require.NoError(t, err)
	assert.Equal(t, []string{"mutex/imu_shm", "segment/imu", "topic/imu", "topic/imu_log"}, names(filtered))

	_, err = m.List("[")
	assert.Error(t, err)
}

func TestListIgnoresForeignFiles(t *testing.T) {
	ns := testutil.Namespace(t)
	other := paths.New(ns.Dir, "other_", ns.Perm)

	s, err := sem.Open(other, "x", 0)
	require.NoError(t, err)
	defer s.Close()

	all, err := NewManager(ns, nil).List("")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestEmptyPrefixLeavesForeignFilesAlone(t *testing.T) {
	dir := t.TempDir()
	foreign := filepath.Join(dir, "pulse-shm-12345")
	require.NoError(t, os.WriteFile(foreign, []byte("not ours"), 0o600))

	m := NewManager(paths.New(dir, "", 0o600), nil)

	removed, err := m.DestroyMatching("*")
	assert.ErrorIs(t, err, paths.ErrEmptyPrefix)
	assert.Empty(t, removed)
	assert.FileExists(t, foreign)

	_, err = m.List("")
	assert.ErrorIs(t, err, paths.ErrEmptyPrefix)

	_, err = m.Provision(&Manifest{Topics: []string{"imu"}})
	assert.ErrorIs(t, err, paths.ErrEmptyPrefix)
}

func TestInspect(t *testing.T) {
	ns := testutil.Namespace(t)
	bus := topic.New(ns)
	defer bus.Close()
	require.NoError(t, bus.Publish("imu", "imu", make([]byte, 32)))
	require.NoError(t, bus.Publish("raw", "frames", make([]byte, 16)))

	m := NewManager(ns, nil)

	report, err := m.Inspect("imu")
	require.NoError(t, err)
	require.NotNil(t, report.Segment)
	require.NotNil(t, report.Topic)
	assert.Equal(t, int64(32), report.Segment.Size)
	assert.Equal(t, 1, report.Segment.Mutex)
	assert.False(t, report.Segment.Locked)
	assert.Equal(t, 1, report.Topic.Pending)

	report, err = m.Inspect("frames")
	require.NoError(t, err)
	assert.NotNil(t, report.Segment)
	assert.Nil(t, report.Topic)

	seg, err := bus.EnsureSegment("frames", false, 0)
	require.NoError(t, err)
	require.NoError(t, seg.Lock())
	report, err = m.Inspect("frames")
	require.NoError(t, seg.Unlock())
	require.NoError(t, err)
	assert.True(t, report.Segment.Locked)

	report, err = m.Inspect("raw")
	require.NoError(t, err)
	assert.Nil(t, report.Segment)
	assert.Equal(t, 1, report.Topic.Pending)

	_, err = m.Inspect("nothing")
	assert.ErrorIs(t, err, ipc.ErrObjectMissing)
}

func TestTeardown(t *testing.T) {
	ns := testutil.Namespace(t)
	m := NewManager(ns, nil)
	_, err := m.Provision(expectedManifest())
	require.NoError(t, err)

	require.NoError(t, m.Teardown(expectedManifest(), TeardownOptions{}))
	assert.Empty(t, testutil.Entries(t, ns))

	err = m.Teardown(expectedManifest(), TeardownOptions{})
	assert.ErrorIs(t, err, ipc.ErrObjectMissing)

	assert.NoError(t, m.Teardown(expectedManifest(), TeardownOptions{IgnoreMissing: true}))
}

func TestTeardownKeepsAttachedHandlesWorking(t *testing.T) {
	ns := testutil.Namespace(t)
	bus := topic.New(ns)
	defer bus.Close()
	require.NoError(t, bus.Publish("t", "s", []byte("abc")))

	require.NoError(t, NewManager(ns, nil).Teardown(&Manifest{
		Segments: []SegmentSpec{{Name: "s", Size: 3}},
		Topics:   []string{"t"},
	}, TeardownOptions{}))

	// The attached process keeps its mappings until it closes them.
	var got []byte
	delivered, err := bus.SubscribeNoWait("t", "s", func(b []byte) error {
		got = b
		return nil
	})
	require.NoError(t, err)
	assert.True(t, delivered)
	assert.Equal(t, []byte("abc"), got)
}

func TestDestroyMatching(t *testing.T) {
	ns := testutil.Namespace(t)
	bus := topic.New(ns)
	require.NoError(t, bus.Publish("cam_left", "cam_left", []byte("l")))
	require.NoError(t, bus.Publish("cam_right", "cam_right", []byte("r")))
	require.NoError(t, bus.Publish("imu", "imu", []byte("i")))
	require.NoError(t, bus.Close())

	m := NewManager(ns, nil)

	_, err := m.DestroyMatching("")
	assert.Error(t, err)

	removed, err := m.DestroyMatching("cam_*")
	require.NoError(t, err)
	assert.Len(t, removed, 6)

	left, err := m.List("")
	require.NoError(t, err)
	assert.Equal(t, []string{"mutex/imu_shm", "segment/imu", "topic/imu"}, names(left))
}
