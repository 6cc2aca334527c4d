package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer serializes writes: handlers rebuilt by SetFormat do not share
// a mutex with their predecessors.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) Bytes() []byte {
	return []byte(b.String())
}

// captureOutput redirects logger output to a buffer for the duration of a
// test and restores the previous configuration on cleanup.
func captureOutput(t *testing.T) *syncBuffer {
	t.Helper()
	buf := new(syncBuffer)

	mu.Lock()
	originalOutput := output
	originalColor := useColor
	originalDp := dpAttrs
	output = buf
	useColor = false
	dpAttrs = nil
	mu.Unlock()

	originalLevel := CurrentLevel()
	originalFormat, _ := currentFormat.Load().(string)
	reconfigure()

	t.Cleanup(func() {
		mu.Lock()
		output = originalOutput
		useColor = originalColor
		dpAttrs = originalDp
		mu.Unlock()
		SetLevel(originalLevel.String())
		SetFormat(originalFormat)
	})
	return buf
}

// ============================================================================
// Level Filtering
// ============================================================================

func TestLevelFiltering(t *testing.T) {
	tests := []struct {
		level string
		want  []string
		skip  []string
	}{
		{"DEBUG", []string{"debug message", "info message", "warn message", "error message"}, nil},
		{"INFO", []string{"info message", "warn message", "error message"}, []string{"debug message"}},
		{"WARN", []string{"warn message", "error message"}, []string{"debug message", "info message"}},
		{"ERROR", []string{"error message"}, []string{"debug message", "info message", "warn message"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			buf := captureOutput(t)
			SetLevel(tt.level)

			Debug("debug message")
			Info("info message")
			Warn("warn message")
			Error("error message")

			out := buf.String()
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
			for _, s := range tt.skip {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestSetLevel(t *testing.T) {
	t.Run("CaseInsensitive", func(t *testing.T) {
		captureOutput(t)
		SetLevel("debug")
		assert.Equal(t, LevelDebug, CurrentLevel())
		assert.True(t, Enabled(LevelDebug))
	})

	t.Run("IgnoresInvalidValues", func(t *testing.T) {
		captureOutput(t)
		SetLevel("WARN")
		SetLevel("verbose")
		assert.Equal(t, LevelWarn, CurrentLevel())
		assert.False(t, Enabled(LevelInfo))
	})
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
	assert.Equal(t, slog.LevelWarn, LevelWarn.slog())
	assert.Equal(t, slog.LevelInfo, Level(-1).slog())
}

// ============================================================================
// Text Handler
// ============================================================================

func TestTextFormat(t *testing.T) {
	t.Run("StructuredFields", func(t *testing.T) {
		buf := captureOutput(t)
		SetFormat("text")
		SetLevel("INFO")

		Info("vport created", KeyPortNo, 3, KeyPortName, "vif1")

		out := buf.String()
		assert.Contains(t, out, "[INFO]")
		assert.Contains(t, out, "vport created")
		assert.Contains(t, out, "port_no=3")
		assert.Contains(t, out, "port_name=vif1")
	})

	t.Run("QuotesValuesWithSpaces", func(t *testing.T) {
		buf := captureOutput(t)
		SetFormat("text")

		Info("close failed", KeyError, "cursor still attached")
		assert.Contains(t, buf.String(), `error="cursor still attached"`)
	})

	t.Run("GroupsPrefixKeys", func(t *testing.T) {
		buf := captureOutput(t)
		SetFormat("text")

		Info("stats", slog.Group("dp", slog.Int("hits", 7), slog.Int("misses", 1)))
		out := buf.String()
		assert.Contains(t, out, "dp.hits=7")
		assert.Contains(t, out, "dp.misses=1")
	})

	t.Run("ErrAttrSkipsNil", func(t *testing.T) {
		buf := captureOutput(t)
		SetFormat("text")

		Info("done", Err(nil))
		assert.NotContains(t, buf.String(), "error=")

		Info("failed", Err(errors.New("boom")))
		assert.Contains(t, buf.String(), "error=boom")
	})
}

// ============================================================================
// JSON Handler
// ============================================================================

func TestJSONFormat(t *testing.T) {
	buf := captureOutput(t)
	SetFormat("json")
	SetLevel("INFO")

	Info("session opened", KeyPID, 1, KeyCookie, 0)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "session opened", entry["msg"])
	assert.Equal(t, float64(1), entry[KeyPID])
	assert.Contains(t, entry, "time")
}

func TestSetFormatIgnoresInvalid(t *testing.T) {
	buf := captureOutput(t)
	SetFormat("json")
	SetFormat("xml")

	Info("still json")
	assert.True(t, strings.HasPrefix(buf.String(), "{"))
}

// ============================================================================
// Context Logging
// ============================================================================

func TestContextLogging(t *testing.T) {
	t.Run("InjectsLogContextFields", func(t *testing.T) {
		buf := captureOutput(t)
		SetFormat("text")
		SetLevel("DEBUG")

		lc := NewLogContext(7).WithCommand("ovs_vport", "GET").WithDevOp("write").WithMessage(41, 3)
		ctx := WithContext(context.Background(), lc.WithTrace("abc", "def"))

		DebugCtx(ctx, "dispatch")

		out := buf.String()
		assert.Contains(t, out, "trace_id=abc")
		assert.Contains(t, out, "span_id=def")
		assert.Contains(t, out, "pid=7")
		assert.Contains(t, out, "family=ovs_vport")
		assert.Contains(t, out, "command=GET")
		assert.Contains(t, out, "devop=write")
		assert.Contains(t, out, "seq=41")
		assert.Contains(t, out, "msg_dp=3")
	})

	t.Run("ContextWithoutLogContext", func(t *testing.T) {
		buf := captureOutput(t)
		SetFormat("text")

		InfoCtx(context.Background(), "plain", "k", "v")
		assert.Contains(t, buf.String(), "k=v")
		assert.NotContains(t, buf.String(), "pid=")
	})
}

func TestSetDatapath(t *testing.T) {
	t.Run("BindsEveryRecord", func(t *testing.T) {
		buf := captureOutput(t)
		SetFormat("json")
		SetDatapath("br-int", 12)

		Info("flow added", KeyFlows, 1)
		InfoCtx(WithContext(context.Background(), NewLogContext(2)), "vport deleted")

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 2)
		for _, line := range lines {
			var entry map[string]any
			require.NoError(t, json.Unmarshal([]byte(line), &entry))
			assert.Equal(t, "br-int", entry[KeyDatapath])
			assert.Equal(t, float64(12), entry[KeyDpIndex])
		}
	})

	t.Run("SurvivesFormatChange", func(t *testing.T) {
		buf := captureOutput(t)
		SetDatapath("ovs-system", 1)
		SetFormat("text")

		Warn("upcall queue full")
		assert.Contains(t, buf.String(), "datapath=ovs-system")
		assert.Contains(t, buf.String(), "dp_index=1")
	})

	t.Run("EmptyNameClears", func(t *testing.T) {
		buf := captureOutput(t)
		SetFormat("text")
		SetDatapath("ovs-system", 1)
		SetDatapath("", 0)

		Info("detached")
		assert.NotContains(t, buf.String(), "datapath=")
	})
}

func TestSetLevelKeepsHandler(t *testing.T) {
	captureOutput(t)
	before := getLogger()
	SetLevel("ERROR")
	assert.Same(t, before, getLogger())
	assert.False(t, getLogger().Enabled(context.Background(), slog.LevelWarn))
}

func TestLogContext(t *testing.T) {
	lc := NewLogContext(3)
	assert.Equal(t, uint32(3), lc.PID)
	assert.False(t, lc.StartTime.IsZero())

	withCmd := lc.WithCommand("ovs_flow", "NEW")
	assert.Empty(t, lc.Command, "original must not change")
	assert.Equal(t, "NEW", withCmd.Command)

	withMsg := withCmd.WithMessage(9, 4)
	assert.Zero(t, withCmd.Seq)
	assert.Equal(t, uint32(9), withMsg.Seq)
	assert.Equal(t, int32(4), withMsg.DpIndex)
	assert.Equal(t, []any{"k", "v"}, (*LogContext)(nil).appendFields([]any{"k", "v"}))

	var nilCtx *LogContext
	assert.Nil(t, nilCtx.Clone())
	assert.Zero(t, nilCtx.DurationMs())
	assert.Nil(t, FromContext(nil))
}

// ============================================================================
// Concurrency
// ============================================================================

func TestConcurrentLogging(t *testing.T) {
	captureOutput(t)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 50 {
				Info("concurrent", "worker", i, "iter", j)
				if j%10 == 0 {
					SetLevel("DEBUG")
					SetLevel("INFO")
				}
			}
		}()
	}
	wg.Wait()
}

func TestInitWithConfig(t *testing.T) {
	captureOutput(t)

	require.NoError(t, Init(Config{Level: "WARN", Format: "json"}))
	assert.Equal(t, LevelWarn, CurrentLevel())
	format, _ := currentFormat.Load().(string)
	assert.Equal(t, "json", format)
}
