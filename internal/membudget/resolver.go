// Package membudget resolves how much memory decoded bitmaps may use on this
// host and reacts to low memory signals by trimming the cache.
package membudget

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

const (
	// MB is one mebibyte.
	MB = 1 << 20

	// FallbackCeilingMB is used when nothing about the host is known.
	FallbackCeilingMB = 1024
	// MinPhysicalCeilingMB and MaxPhysicalCeilingMB clamp the half of
	// physical memory heuristic.
	MinPhysicalCeilingMB = 256
	MaxPhysicalCeilingMB = 4096
	// NearbyPhysicalMB is the tolerance used to match table entries by
	// physical memory size.
	NearbyPhysicalMB = 500
)

// Source names the step of the strategy that produced a ceiling.
type Source string

const (
	SourceOverride      Source = "override"
	SourceProcessLimit  Source = "process-limit"
	SourceHardwareModel Source = "hardware-model"
	SourceNearbyMemory  Source = "nearby-memory"
	SourcePhysicalHalf  Source = "physical-half"
	SourceFallback      Source = "fallback"
)

// Resolution is a resolved ceiling together with how it was found.
type Resolution struct {
	CeilingMB  int
	Source     Source
	PhysicalMB int
	Model      string
}

// cgroup limit files, v2 first.
var cgroupLimitFiles = []string{
	"/sys/fs/cgroup/memory.max",
	"/sys/fs/cgroup/memory/memory.limit_in_bytes",
}

// cgroup v1 reports "no limit" as a page-aligned value close to MaxInt64.
const unlimitedCgroupBytes = 1 << 62

// Resolver computes the device memory ceiling.
type Resolver struct {
	fs         afero.Fs
	probe      Probe
	table      []HardwareProfile
	overrideMB int
	log        *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithFs sets the filesystem used to read process limits.
func WithFs(fs afero.Fs) Option {
	return func(r *Resolver) { r.fs = fs }
}

// WithProbe replaces the host memory probe.
func WithProbe(p Probe) Option {
	return func(r *Resolver) { r.probe = p }
}

// WithTable replaces the known hardware table.
func WithTable(table []HardwareProfile) Option {
	return func(r *Resolver) { r.table = table }
}

// WithOverrideMB forces the ceiling. Zero or less disables the override.
func WithOverrideMB(mb int) Option {
	return func(r *Resolver) { r.overrideMB = mb }
}

// NewResolver returns a resolver for the current host.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		fs:    afero.NewOsFs(),
		table: KnownHardware,
		log:   slog.Default().With("component", "membudget"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.probe == nil {
		r.probe = NewSystemProbe(r.fs)
	}
	return r
}

// ResolveDeviceMemoryCeilingMB returns the memory ceiling in MB. It never
// fails; unresolvable hosts get FallbackCeilingMB.
func (r *Resolver) ResolveDeviceMemoryCeilingMB(ctx context.Context) int {
	return r.Resolve(ctx).CeilingMB
}

// Resolve runs the strategy and reports which step decided.
func (r *Resolver) Resolve(ctx context.Context) Resolution {
	res := r.resolve(ctx)
	r.log.DebugContext(ctx, "Resolved memory ceiling",
		"ceiling_mb", res.CeilingMB,
		"source", res.Source,
		"physical_mb", res.PhysicalMB,
		"model", res.Model)
	return res
}

func (r *Resolver) resolve(ctx context.Context) Resolution {
	var res Resolution

	if mem, err := r.probe.Memory(ctx); err == nil {
		res.PhysicalMB = int(mem.TotalBytes / MB)
	} else {
		r.log.DebugContext(ctx, "Physical memory unavailable", "error", err)
	}

	if r.overrideMB > 0 {
		res.CeilingMB, res.Source = r.overrideMB, SourceOverride
		return res
	}

	if limit, ok := r.processLimitMB(); ok && (res.PhysicalMB == 0 || limit < res.PhysicalMB) {
		res.CeilingMB, res.Source = limit, SourceProcessLimit
		return res
	}

	if model, err := r.probe.HardwareModel(ctx); err == nil {
		res.Model = model
		if p, ok := lookupModel(r.table, model); ok {
			res.CeilingMB, res.Source = p.CrashThresholdMB, SourceHardwareModel
			return res
		}
	}

	if res.PhysicalMB > 0 {
		if mb, ok := nearbyThreshold(r.table, res.PhysicalMB); ok {
			res.CeilingMB, res.Source = mb, SourceNearbyMemory
			return res
		}

		res.CeilingMB = min(max(res.PhysicalMB/2, MinPhysicalCeilingMB), MaxPhysicalCeilingMB)
		res.Source = SourcePhysicalHalf
		return res
	}

	res.CeilingMB, res.Source = FallbackCeilingMB, SourceFallback
	return res
}

// processLimitMB reads the memory limit imposed on this process's cgroup.
func (r *Resolver) processLimitMB() (int, bool) {
	for _, name := range cgroupLimitFiles {
		data, err := afero.ReadFile(r.fs, name)
		if err != nil {
			continue
		}

		v := strings.TrimSpace(string(data))
		if v == "" || v == "max" {
			return 0, false
		}

		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil || n == 0 || n >= unlimitedCgroupBytes {
			return 0, false
		}

		return int(n / MB), n >= MB
	}

	return 0, false
}
