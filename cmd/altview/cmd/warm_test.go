package cmd

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/javi11/altview/internal/bitmap"
)

func TestCollectImages(t *testing.T) {
	fsys := afero.NewMemMapFs()
	for _, p := range []string{
		"/photos/2024/b.jpg",
		"/photos/2024/a.png",
		"/photos/2024/notes.txt",
		"/photos/2023/c.webp",
		"/other/d.jpg",
	} {
		require.NoError(t, afero.WriteFile(fsys, p, []byte("x"), 0o644))
	}

	accepts := func(path string) bool {
		return strings.ToLower(filepath.Ext(path)) != ".txt"
	}

	ids, err := collectImages(context.Background(), fsys, accepts, []string{"/photos", "/other", "/photos/2024"})
	require.NoError(t, err)

	want := []bitmap.Identity{
		bitmap.MustIdentity("/other/d.jpg"),
		bitmap.MustIdentity("/photos/2023/c.webp"),
		bitmap.MustIdentity("/photos/2024/a.png"),
		bitmap.MustIdentity("/photos/2024/b.jpg"),
	}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("collected images mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectImages_MissingRoot(t *testing.T) {
	_, err := collectImages(context.Background(), afero.NewMemMapFs(), func(string) bool { return true }, []string{"/missing"})
	require.Error(t, err)
}
