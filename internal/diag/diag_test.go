package diag

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesStructuredJSONLines(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf})

	log.Registered(3, "worker")

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.Equal(t, "thread registered", line["message"])
	require.EqualValues(t, 3, line["pid"])
	require.Equal(t, "worker", line["name"])
}

func TestLog_Core_TagsSubsequentLines(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf})
	core0 := log.Core(0)

	core0.Started(0, 10_000)

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	require.EqualValues(t, 0, line["core"])
}

func TestTickThrottle_AllowsUpToLimitPerWindow(t *testing.T) {
	th := NewTickThrottle(time.Minute, 2)
	require.True(t, th.Allow(0))
	require.True(t, th.Allow(0))
	require.False(t, th.Allow(0))
	// A distinct category (core) has its own independent budget.
	require.True(t, th.Allow(1))
}

func TestLog_DispatchThrottled_SuppressesOverBudget(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Writer: &buf, Level: logiface.LevelDebug}) // Dispatch logs at Debug
	th := NewTickThrottle(time.Minute, 1)

	log.DispatchThrottled(th, 0, 1, 2, false)
	log.DispatchThrottled(th, 0, 2, 3, false)

	lines := bytes.Count(buf.Bytes(), []byte("\n"))
	require.Equal(t, 1, lines)
}

func TestTickThrottle_NilIsAlwaysAllow(t *testing.T) {
	var th *TickThrottle
	require.True(t, th.Allow(0))
}
