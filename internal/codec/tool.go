package codec

import (
	"context"
	"fmt"
	"image/png"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/javi11/altview/internal/bitmap"
	"github.com/javi11/altview/internal/errors"
	"github.com/javi11/altview/internal/normalize"
)

// heifExts are the HEIF family containers handled by platform tools.
var heifExts = map[string]bool{
	".heif": true,
	".heic": true,
	".avif": true,
	".hif":  true,
}

// Runner executes an external codec tool.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// ToolSpec describes a platform codec service reachable as a command line
// tool that converts its input into a PNG file.
type ToolSpec struct {
	Name   string
	Binary string
	Exts   map[string]bool
	Args   func(in, out string) []string
}

// toolBackend spools the encoded bytes to a temporary file, lets the
// platform tool convert them to PNG and normalizes the result. The tools
// used here apply the container's rotation themselves.
type toolBackend struct {
	spec   ToolSpec
	path   string
	runner Runner
	tmpDir string
}

// NewTool returns a variant backed by an external tool at path. An empty
// path yields an unsupported variant.
func NewTool(spec ToolSpec, path string, runner Runner) Capability {
	if runner == nil {
		runner = execRunner{}
	}
	return newDecoder(&toolBackend{spec: spec, path: path, runner: runner})
}

func (t *toolBackend) name() string {
	return t.spec.Name
}

func (t *toolBackend) available() bool {
	return t.path != ""
}

func (t *toolBackend) accepts(ext string) bool {
	return t.spec.Exts[ext]
}

func (t *toolBackend) decode(ctx context.Context, f File) (*bitmap.Bitmap, int, error) {
	dir, err := os.MkdirTemp(t.tmpDir, "altview-decode-*")
	if err != nil {
		return nil, 0, errors.NewDecodeError("tool", f.Name(), fmt.Errorf("failed to create temp dir: %w", err))
	}
	defer os.RemoveAll(dir)

	in := filepath.Join(dir, "input"+extOf(f.Name()))
	out := filepath.Join(dir, "output.png")

	if err := spool(f, in); err != nil {
		return nil, 0, errors.NewDecodeError("tool", f.Name(), err)
	}

	if output, err := t.runner.Run(ctx, t.path, t.spec.Args(in, out)...); err != nil {
		return nil, 0, errors.NewDecodeError("tool", f.Name(), fmt.Errorf("%s failed: %w (output: %s)", t.spec.Binary, err, output))
	}

	res, err := os.Open(out)
	if err != nil {
		return nil, 0, errors.NewDecodeError("tool", f.Name(), fmt.Errorf("tool produced no output: %w", err))
	}
	defer res.Close()

	img, err := png.Decode(res)
	if err != nil {
		return nil, 0, errors.NewDecodeError("decode", f.Name(), err)
	}

	bmp, err := normalize.FromImage(img)
	if err != nil {
		return nil, 0, errors.NewDecodeError("normalize", f.Name(), err)
	}

	return bmp, normalize.OrientationNormal, nil
}

// embedded is empty: the tools do not expose the thumbnail items, so the
// shared policy falls back to a subsampled full decode.
func (t *toolBackend) embedded(ctx context.Context, f File) ([]Embedded, int, error) {
	return nil, normalize.OrientationNormal, nil
}

func spool(src io.Reader, path string) error {
	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create spool file: %w", err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("failed to spool input: %w", err)
	}

	return dst.Close()
}
