// Package persona manages the assistant's system prompt, with optional
// hot reload from a prompt file.
package persona

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultPrompt is the built-in companion persona, used when no prompt
// file is configured.
const DefaultPrompt = `You are Lucy, a virtual companion.
You speak naturally and emotionally.

Rules:
- Always express emotions using captions like:
  *smile*
  *smirk*
  *pout*
  *giggle*
  *blush*
  *shy*
  *angry*
  *excited*
- Put expression captions on separate lines.
- Do NOT describe emotions in plain text.
- Keep responses short and conversational.
- Speak like a real human in real-time chat.
- Be warm, friendly, and engaging.
`

// Manager serves the current system prompt. When constructed with a
// prompt file it watches the file and picks up edits without a restart.
type Manager struct {
	mu      sync.RWMutex
	prompt  string
	path    string
	watcher *fsnotify.Watcher
	done    chan struct{}
	logger  zerolog.Logger
}

// NewManager creates a manager serving the built-in prompt.
func NewManager(logger zerolog.Logger) *Manager {
	return &Manager{
		prompt: DefaultPrompt,
		logger: logger.With().Str("component", "persona").Logger(),
	}
}

// NewManagerFromFile loads the prompt from path and reloads it whenever
// the file changes. A missing file is created with the default prompt
// so operators can edit it in place.
func NewManagerFromFile(path string, logger zerolog.Logger) (*Manager, error) {
	m := NewManager(logger)
	m.path = path

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create prompt directory: %w", err)
		}
		if err := os.WriteFile(path, []byte(DefaultPrompt), 0644); err != nil {
			return nil, fmt.Errorf("write default prompt: %w", err)
		}
	}

	if err := m.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory, not the file: editors often replace the file
	// on save, which drops a direct file watch.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch prompt directory: %w", err)
	}

	m.watcher = watcher
	m.done = make(chan struct{})
	go m.watchLoop()

	return m, nil
}

// Prompt returns the current system prompt.
func (m *Manager) Prompt() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.prompt
}

// Path returns the prompt file path, or "" for the built-in prompt.
func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) reload() error {
	data, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("read prompt file: %w", err)
	}
	prompt := string(data)
	if strings.TrimSpace(prompt) == "" {
		return fmt.Errorf("prompt file %s is empty", m.path)
	}

	m.mu.Lock()
	m.prompt = prompt
	m.mu.Unlock()
	return nil
}

func (m *Manager) watchLoop() {
	for {
		select {
		case <-m.done:
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if event.Name != m.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if err := m.reload(); err != nil {
					m.logger.Warn().Err(err).Msg("Prompt reload failed, keeping previous prompt")
				} else {
					m.logger.Info().Str("path", m.path).Msg("Prompt reloaded")
				}
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.logger.Warn().Err(err).Msg("Prompt watcher error")
		}
	}
}

// Close stops the file watcher, if any.
func (m *Manager) Close() error {
	if m.watcher == nil {
		return nil
	}
	close(m.done)
	return m.watcher.Close()
}
