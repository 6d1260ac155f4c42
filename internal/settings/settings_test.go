package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remoteqna/internal/models"
)

func TestStore_DefaultsAndValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s := Open(path, nil)
	RegisterDefaults(s)

	assert.True(t, s.Bool(KeySavePasswords, false))
	assert.Equal(t, "/opt/BESClient/bin/QnA", ToolPathFor(s, models.OSLinux))
	assert.Empty(t, s.String(KeyLastUsedProfile))
	assert.NotEmpty(t, s.Description(KeySavePasswords))

	// Non-persistent defaults do not create the file.
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, s.Set(KeySavePasswords, false, true))
	require.NoError(t, s.Upsert(KeyQnAPathLinux, "/usr/local/qna"))

	reopened := Open(path, nil)
	RegisterDefaults(reopened)
	assert.False(t, reopened.Bool(KeySavePasswords, true))
	assert.Equal(t, "/usr/local/qna", ToolPathFor(reopened, models.OSLinux))
	assert.Contains(t, ToolPathFor(reopened, models.OSWindows), "QnA.exe")
}

func TestStore_DefineIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s := Open(path, nil)

	require.NoError(t, s.Define("k", true, "first", "d"))
	assert.Equal(t, "first", s.Get("k"))
	require.NoError(t, s.Set("k", "stored", true))
	require.NoError(t, s.Define("k", true, "second", "d"))
	assert.Equal(t, "stored", s.Get("k"))

	require.NoError(t, s.Delete("k"))
	assert.Equal(t, "second", s.Get("k"))
}

func TestStore_NonPersistentSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s := Open(path, nil)
	require.NoError(t, s.Set("transient", 3, false))
	assert.Equal(t, 3, s.Int("transient", 0))

	assert.Nil(t, Open(path, nil).Get("transient"))
}

func TestStore_CorruptFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\n  - [unbalanced"), 0600))

	s := Open(path, nil)
	RegisterDefaults(s)
	assert.True(t, s.Bool(KeySavePasswords, false))
	assert.Contains(t, s.Keys(), KeyRecentQueries)
}

func TestRecent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s := Open(path, nil)
	RegisterDefaults(s)
	r := NewRecent(s, 0)

	assert.Empty(t, r.List())
	require.NoError(t, r.Add("a"))
	require.NoError(t, r.Add("b"))
	require.NoError(t, r.Add("a"))
	require.NoError(t, r.Add("   "))
	assert.Equal(t, []string{"a", "b"}, r.List())

	for i := 0; i < 15; i++ {
		require.NoError(t, r.Add(fmt.Sprintf("q%d", i)))
	}
	got := r.List()
	require.Len(t, got, MaxRecentQueries)
	assert.Equal(t, "q14", got[0])
	assert.Equal(t, "q5", got[9])

	// Survives a reload.
	assert.Equal(t, got, NewRecent(Open(path, nil), 0).List())

	require.NoError(t, r.Clear())
	assert.Empty(t, r.List())
}
