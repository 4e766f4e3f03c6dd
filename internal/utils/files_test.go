package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "crashes.report.md")
	assert.Equal(t, p, UniquePath(p))

	require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	second := UniquePath(p)
	assert.Equal(t, filepath.Join(dir, "crashes__2.report.md"), second)

	require.NoError(t, os.WriteFile(second, []byte("x"), 0o644))
	assert.Equal(t, filepath.Join(dir, "crashes__3.report.md"), UniquePath(p))
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "motor-vehicle-collisions-2020", Slug("/data/Motor Vehicle Collisions (2020).csv"))
	assert.Equal(t, "dataset", Slug("___.csv"))
}

func TestSafeWriteFileAndPrettyJSON(t *testing.T) {
	p := filepath.Join(t.TempDir(), "out.json")
	b, err := PrettyJSON(map[string]int{"rows": 2})
	require.NoError(t, err)
	require.NoError(t, SafeWriteFile(p, b))
	got, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"rows":2}`, string(got))
	assert.NoFileExists(t, p+".tmp")
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "reports", "2020")
	require.NoError(t, EnsureDir(nested))
	require.NoError(t, os.WriteFile(filepath.Join(root, "project.json"), []byte("{}"), 0o644))

	got, err := FindProjectRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, got)
}
