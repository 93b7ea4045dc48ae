package storage

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T, maxSize int64, mimes []string) *LocalStorage {
	t.Helper()
	store, err := NewLocalStorage(t.TempDir(), maxSize, mimes)
	require.NoError(t, err)
	return store
}

func TestLocalStorageSaveAndOpen(t *testing.T) {
	store := newTestStorage(t, 1024, []string{"image/jpeg"})

	content := "jpeg bytes"
	reference, err := store.Save(strings.NewReader(content), "foto.JPG", "image/jpeg", int64(len(content)))
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(reference, ".jpg"))

	file, err := store.Open(reference)
	require.NoError(t, err)
	defer file.Close()
	stored, err := io.ReadAll(file)
	require.NoError(t, err)
	require.Equal(t, content, string(stored))
}

func TestLocalStorageRejectsDisallowedMIME(t *testing.T) {
	store := newTestStorage(t, 1024, []string{"image/jpeg", "application/pdf"})

	_, err := store.Save(strings.NewReader("x"), "run.exe", "application/octet-stream", 1)
	require.Error(t, err)
}

func TestLocalStorageRejectsOversizedDeclaration(t *testing.T) {
	store := newTestStorage(t, 8, nil)

	_, err := store.Save(strings.NewReader("x"), "a.bin", "application/octet-stream", 9)
	require.Error(t, err)
}

func TestLocalStorageRejectsOversizedStream(t *testing.T) {
	store := newTestStorage(t, 8, nil)

	// Declared size fits the cap but the stream keeps going; nothing may be
	// kept on disk.
	_, err := store.Save(strings.NewReader(strings.Repeat("x", 32)), "a.bin", "application/octet-stream", 4)
	require.Error(t, err)

	entries, err := os.ReadDir(store.Path("documents"))
	if err == nil {
		require.Empty(t, entries)
	}
}
