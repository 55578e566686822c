package file_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/reactor/internal/adapters/file"
	"github.com/aretw0/reactor/internal/dto"
	"github.com/aretw0/reactor/pkg/domain"
)

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()
	p := domain.DefaultGeometryParams()
	p.MeshSize = 0.25

	for _, name := range []string{"build.yaml", "build.toml", "nested/build.json"} {
		path := filepath.Join(dir, name)
		require.NoError(t, file.Save(path, dto.FromParams(p)), name)

		f, unused, err := file.Load(path)
		require.NoError(t, err, name)
		assert.Empty(t, unused, name)
		assert.Equal(t, p, f.Params(), name)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), "tmp-", "temp files must not survive")
	}
}

func TestSave_Overwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "build.yml")
	p := domain.DefaultGeometryParams()
	require.NoError(t, file.Save(path, dto.FromParams(p)))

	p.Reactor.X = 42
	require.NoError(t, file.Save(path, dto.FromParams(p)))

	f, _, err := file.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 42.0, f.Params().Reactor.X)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, _, err := file.Load(filepath.Join(dir, "build.ini"))
	assert.Error(t, err)

	_, _, err = file.Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("reactor: [unclosed"), 0o644))
	_, _, err = file.Load(bad)
	assert.Error(t, err)
}
