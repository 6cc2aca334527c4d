package telemetry

import (
	"context"
	"fmt"
	"maps"
	"runtime"

	"github.com/grafana/pyroscope-go"
)

// Profile label keys set around each control handler.
const (
	LabelFamily  = "ovs_family"
	LabelCommand = "ovs_command"
)

// ProfilingConfig configures Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string

	// Datapath is tagged on every profile.
	Datapath Datapath

	// Endpoint is the Pyroscope server URL (e.g., "http://localhost:4040")
	Endpoint string

	// ProfileTypes lists the profiles to collect, by the names in
	// profileTypes.
	ProfileTypes []string
}

var profileTypes = map[string]pyroscope.ProfileType{
	"cpu":            pyroscope.ProfileCPU,
	"alloc_objects":  pyroscope.ProfileAllocObjects,
	"alloc_space":    pyroscope.ProfileAllocSpace,
	"inuse_objects":  pyroscope.ProfileInuseObjects,
	"inuse_space":    pyroscope.ProfileInuseSpace,
	"goroutines":     pyroscope.ProfileGoroutines,
	"mutex_count":    pyroscope.ProfileMutexCount,
	"mutex_duration": pyroscope.ProfileMutexDuration,
	"block_count":    pyroscope.ProfileBlockCount,
	"block_duration": pyroscope.ProfileBlockDuration,
}

var profilingEnabled bool

// InitProfiling starts Pyroscope continuous profiling. The returned
// function stops the profiler.
func InitProfiling(cfg ProfilingConfig) (shutdown func() error, err error) {
	profilingEnabled = false
	if !cfg.Enabled {
		return func() error { return nil }, nil
	}

	types := make([]pyroscope.ProfileType, 0, len(cfg.ProfileTypes))
	for _, name := range cfg.ProfileTypes {
		pt, err := parseProfileType(name)
		if err != nil {
			return nil, fmt.Errorf("telemetry: %w", err)
		}
		types = append(types, pt)
		// Switch and session lock contention only shows up when these
		// sampling rates are non-zero.
		switch pt {
		case pyroscope.ProfileMutexCount, pyroscope.ProfileMutexDuration:
			runtime.SetMutexProfileFraction(5)
		case pyroscope.ProfileBlockCount, pyroscope.ProfileBlockDuration:
			runtime.SetBlockProfileRate(5)
		}
	}

	p, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: cfg.ServiceName,
		ServerAddress:   cfg.Endpoint,
		Tags:            profileTags(cfg),
		ProfileTypes:    types,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: start profiler for datapath %q: %w", cfg.Datapath.Name, err)
	}
	profilingEnabled = true
	return p.Stop, nil
}

func profileTags(cfg ProfilingConfig) map[string]string {
	tags := map[string]string{"version": cfg.ServiceVersion}
	maps.Copy(tags, cfg.Datapath.tags())
	return tags
}

// IsProfilingEnabled reports whether the profiler is running.
func IsProfilingEnabled() bool {
	return profilingEnabled
}

// Profile runs fn with the family and command of a control call set as
// profile labels, so CPU and allocation samples taken inside a handler
// are attributed to it. Without a profiler fn runs directly.
func Profile(ctx context.Context, family, command string, fn func(context.Context)) {
	if !profilingEnabled {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(LabelFamily, family, LabelCommand, command), fn)
}

func parseProfileType(name string) (pyroscope.ProfileType, error) {
	pt, ok := profileTypes[name]
	if !ok {
		return "", fmt.Errorf("unknown profile type %q", name)
	}
	return pt, nil
}
