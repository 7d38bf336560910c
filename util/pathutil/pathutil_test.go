package pathutil

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := Expand("~/projects")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "projects"), got)

	t.Setenv("AW_TEST_DIR", "/srv/work")
	got, err = Expand("$AW_TEST_DIR/app")
	require.NoError(t, err)
	assert.Equal(t, "/srv/work/app", got)
}

func TestCanonicalPathResolvesSymlinks(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "real")
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Mkdir(real, 0755))
	require.NoError(t, os.Symlink(real, link))

	a, err := CanonicalPath(real)
	require.NoError(t, err)
	b, err := CanonicalPath(link)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCanonicalPathMissingPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("absolute paths differ on windows")
	}
	got, err := CanonicalPath("/definitely/not/../here")
	require.NoError(t, err)
	assert.Equal(t, "/definitely/here", got)
}
