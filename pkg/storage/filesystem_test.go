package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveReadDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	data, err := store.Read("workflow.json")
	require.NoError(t, err)
	assert.Nil(t, data)

	_, err = store.Save("workflow.json", []byte(`{"classes":[]}`))
	require.NoError(t, err)
	_, err = store.Save("workflow.json", []byte(`{"classes":[{}]}`))
	require.NoError(t, err)

	data, err = store.Read("workflow.json")
	require.NoError(t, err)
	assert.Equal(t, `{"classes":[{}]}`, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")

	require.NoError(t, store.Delete("workflow.json"))
	require.NoError(t, store.Delete("workflow.json"))
	_, err = os.Stat(filepath.Join(dir, "workflow.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalStorageNestedPath(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save(filepath.Join("snapshots", "a.json"), []byte("x"))
	require.NoError(t, err)
	assert.FileExists(t, store.Path(filepath.Join("snapshots", "a.json")))
}
