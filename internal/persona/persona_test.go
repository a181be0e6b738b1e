package persona

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_DefaultPrompt(t *testing.T) {
	m := NewManager(zerolog.Nop())
	defer m.Close()

	assert.Equal(t, DefaultPrompt, m.Prompt())
	assert.Contains(t, m.Prompt(), "*smile*")
	assert.Empty(t, m.Path())
}

func TestManagerFromFile_CreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona", "prompt.txt")

	m, err := NewManagerFromFile(path, zerolog.Nop())
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, DefaultPrompt, m.Prompt())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultPrompt, string(data))
}

func TestManagerFromFile_LoadsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("You are a terse robot."), 0644))

	m, err := NewManagerFromFile(path, zerolog.Nop())
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, "You are a terse robot.", m.Prompt())
}

func TestManagerFromFile_HotReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("first"), 0644))

	m, err := NewManagerFromFile(path, zerolog.Nop())
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, os.WriteFile(path, []byte("second"), 0644))

	deadline := time.After(3 * time.Second)
	for m.Prompt() != "second" {
		select {
		case <-deadline:
			t.Fatalf("prompt not reloaded, still %q", m.Prompt())
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestManagerFromFile_EmptyFileKeepsPrevious(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompt.txt")
	require.NoError(t, os.WriteFile(path, []byte("stable prompt"), 0644))

	m, err := NewManagerFromFile(path, zerolog.Nop())
	require.NoError(t, err)
	defer m.Close()

	require.NoError(t, os.WriteFile(path, []byte("   \n"), 0644))
	time.Sleep(200 * time.Millisecond)

	assert.True(t, strings.Contains(m.Prompt(), "stable"), "empty rewrite must not clear the prompt")
}
