package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/shmbus/internal/testutil"
)

type cli struct {
	t      *testing.T
	global []string
}

func newCLI(t *testing.T) *cli {
	ns := testutil.Namespace(t)
	return &cli{t: t, global: []string{"-dir", ns.Dir, "-prefix", ns.Prefix, "-log-level", "error"}}
}

// exec runs one command and returns its exit code and stdout
func (c *cli) exec(stdin string, args ...string) (int, string) {
	c.t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(append(append([]string{}, c.global...), args...), strings.NewReader(stdin), &stdout, &stderr)
	if code != exitOK {
		c.t.Logf("stderr: %s", stderr.String())
	}
	return code, stdout.String()
}

func TestUsage(t *testing.T) {
	c := newCLI(t)

	code, _ := c.exec("")
	assert.Equal(t, exitUsage, code)

	code, _ = c.exec("", "frobnicate")
	assert.Equal(t, exitUsage, code)

	code, _ = c.exec("", "publish", "-data", "x")
	assert.Equal(t, exitUsage, code, "publish without a topic")

	code, _ = c.exec("", "subscribe", "-topic", "t", "-mode", "sometimes")
	assert.Equal(t, exitUsage, code)

	code, _ = c.exec("", "inspect")
	assert.Equal(t, exitUsage, code)
}

func TestPublishSubscribe(t *testing.T) {
	c := newCLI(t)

	code, _ := c.exec("", "publish", "-topic", "greet", "-data", "hello")
	require.Equal(t, exitOK, code)

	code, out := c.exec("", "subscribe", "-topic", "greet", "-mode", "nowait")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "hello\n", out)

	code, out = c.exec("", "subscribe", "-topic", "greet", "-mode", "nowait")
	assert.Equal(t, exitNoData, code, "the notification was consumed")
	assert.Empty(t, out)

	code, _ = c.exec("", "subscribe", "-topic", "greet", "-mode", "timeout", "-timeout", "20ms")
	assert.Equal(t, exitNoData, code)
}

func TestPublishFromStdinToSeveralTopics(t *testing.T) {
	c := newCLI(t)

	code, _ := c.exec("payload", "publish", "-topic", "a,b", "-segment", "shared")
	require.Equal(t, exitOK, code)

	for _, name := range []string{"a", "b"} {
		code, out := c.exec("", "subscribe", "-topic", name, "-segment", "shared", "-mode", "wait")
		require.Equal(t, exitOK, code)
		assert.Equal(t, "payload\n", out)
	}
}

func TestHexAndFramedPayloads(t *testing.T) {
	c := newCLI(t)

	code, _ := c.exec("", "publish", "-topic", "bin", "-hex", "-data", "00ff10")
	require.Equal(t, exitOK, code)
	code, out := c.exec("", "subscribe", "-topic", "bin", "-hex", "-mode", "nowait")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "00ff10\n", out)

	code, _ = c.exec("", "publish", "-topic", "cfg", "-frame", "256", "-zstd", "-data", "compressed text")
	require.Equal(t, exitOK, code)
	code, out = c.exec("", "subscribe", "-topic", "cfg", "-frame", "256", "-zstd", "-mode", "nowait")
	require.Equal(t, exitOK, code)
	assert.Equal(t, "compressed text\n", out)

	code, _ = c.exec("", "publish", "-topic", "cfg", "-frame", "8", "-data", "does not fit")
	assert.Equal(t, exitError, code)

	code, _ = c.exec("", "publish", "-topic", "bin", "-hex", "-data", "zz")
	assert.Equal(t, exitUsage, code)
}

func TestProvisionListInspectTeardown(t *testing.T) {
	c := newCLI(t)
	manifest := filepath.Join(t.TempDir(), "deploy.yaml")
	require.NoError(t, os.WriteFile(manifest, []byte(`
segments:
  - name: imu
    size: 64
topics:
  - imu
`), 0o600))

	code, out := c.exec("", "provision", manifest)
	require.Equal(t, exitOK, code)
	var result struct {
		Created []string `json:"created"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.ElementsMatch(t, []string{"segment/imu", "topic/imu"}, result.Created)

	code, out = c.exec("", "list", "-json")
	require.Equal(t, exitOK, code)
	var objects []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &objects))
	assert.Len(t, objects, 3, "segment, its mutex and the topic")

	code, out = c.exec("", "list")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "KIND")
	assert.Contains(t, out, "imu_shm")

	code, out = c.exec("", "inspect", "imu")
	require.Equal(t, exitOK, code)
	var report struct {
		Segment struct {
			Size int `json:"size"`
		} `json:"segment"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 64, report.Segment.Size)

	code, _ = c.exec("", "publish", "-topic", "imu", "-data", "too short")
	assert.Equal(t, exitError, code, "provisioned segments enforce their size")

	code, _ = c.exec("", "teardown", manifest)
	require.Equal(t, exitOK, code)
	code, _ = c.exec("", "teardown", manifest)
	assert.Equal(t, exitError, code)
	code, _ = c.exec("", "teardown", "-ignore-missing", manifest)
	assert.Equal(t, exitOK, code)

	code, out = c.exec("", "list", "-json")
	require.Equal(t, exitOK, code)
	assert.JSONEq(t, "[]", out)
}

func TestDestroy(t *testing.T) {
	c := newCLI(t)
	for _, name := range []string{"cam_left", "cam_right", "imu"} {
		code, _ := c.exec("", "publish", "-topic", name, "-data", "x")
		require.Equal(t, exitOK, code)
	}

	code, out := c.exec("", "destroy", "cam_*")
	require.Equal(t, exitOK, code)
	assert.Contains(t, out, "cam_left")
	assert.Contains(t, out, "cam_right")
	assert.NotContains(t, out, "imu")

	code, out = c.exec("", "list", "-pattern", "imu*", "-json")
	require.Equal(t, exitOK, code)
	var objects []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &objects))
	assert.Len(t, objects, 3)
}

func TestEmptyPrefixIsRefused(t *testing.T) {
	dir := t.TempDir()
	foreign := filepath.Join(dir, "pulse-shm-12345")
	require.NoError(t, os.WriteFile(foreign, []byte("not ours"), 0o600))

	var stdout, stderr bytes.Buffer
	code := run([]string{"-dir", dir, "-prefix", "", "destroy", "*"}, strings.NewReader(""), &stdout, &stderr)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr.String(), "prefix")
	assert.FileExists(t, foreign)
}

func TestBench(t *testing.T) {
	c := newCLI(t)

	code, out := c.exec("", "bench", "-n", "50", "-rate", "0", "-size", "32", "-timeout", "200ms")
	require.Equal(t, exitOK, code)
	var result struct {
		Sent      int `json:"sent"`
		Delivered int `json:"delivered"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 50, result.Sent)
	assert.Positive(t, result.Delivered)
}
