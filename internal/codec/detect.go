package codec

import (
	"context"
	"log/slog"
	"os/exec"
)

// Options controls which variants Detect considers.
type Options struct {
	// DisableGoImage drops the pure Go variant.
	DisableGoImage bool
	// DisableTools drops the external tool variants.
	DisableTools bool
	// ToolPaths overrides PATH lookup per binary name.
	ToolPaths map[string]string
	// LookPath resolves a binary. Defaults to exec.LookPath.
	LookPath func(file string) (string, error)
	// Runner executes tools. Defaults to os/exec.
	Runner Runner
}

// Detect builds the decoder chain for this platform. It is called once at
// startup. With nothing available it returns the noop variant.
func Detect(ctx context.Context, opts Options) Capability {
	if opts.LookPath == nil {
		opts.LookPath = exec.LookPath
	}

	var variants []Capability
	if !opts.DisableTools {
		for _, spec := range platformTools() {
			path, ok := opts.ToolPaths[spec.Binary]
			if !ok {
				if p, err := opts.LookPath(spec.Binary); err == nil {
					path = p
				}
			}
			if path == "" {
				continue
			}
			variants = append(variants, NewTool(spec, path, opts.Runner))
		}
	}
	if !opts.DisableGoImage {
		variants = append(variants, NewGoImage())
	}

	var capability Capability = NewNoop()
	if chain := NewChain(variants...); chain.IsSupported() {
		capability = chain
	}

	slog.InfoContext(ctx, "Decoder selected",
		"component", "codec",
		"decoder", capability.Name(),
		"variants", len(variants))

	return capability
}
