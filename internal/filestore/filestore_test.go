package filestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndDelete(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	id := uuid.New()
	path, err := store.Save([]byte("content"), "report.pdf", id)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
	assert.Equal(t, id.String()+"_report.pdf", filepath.Base(path))

	require.NoError(t, store.Delete(id, "report.pdf"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestDelete_MissingFileIsNoop(t *testing.T) {
	store, err := New(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.Delete(uuid.New(), "never-saved.txt"))
}

func TestSave_SanitizesFileName(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)

	id := uuid.New()
	path, err := store.Save([]byte("x"), "../../etc/pass wd?.txt", id)
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(path))
	assert.Equal(t, id.String()+"_pass_wd_.txt", filepath.Base(path))
}
