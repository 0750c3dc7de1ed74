package tui

import (
	"path/filepath"
	"strings"
	"testing"

	"nathanbeddoewebdev/vpsorder/internal/config"

	tea "github.com/charmbracelet/bubbletea"
)

func TestConfigView_RejectsInvalidValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	config.SetPath(path)
	t.Cleanup(config.ResetPath)

	m := newConfigViewModel(&config.Config{})

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("e")})
	m = next.(configViewModel)
	if !m.editing {
		t.Fatal("expected edit mode")
	}

	m.editor.SetValue("not a url")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(configViewModel)

	if cmd != nil {
		t.Error("expected no save command for an invalid value")
	}
	if !strings.Contains(m.status, "not an http(s) URL") {
		t.Errorf("status = %q", m.status)
	}
	if m.cfg.APIURL != "" {
		t.Errorf("APIURL = %q, want unchanged", m.cfg.APIURL)
	}
}

func TestConfigView_SavesValidValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	config.SetPath(path)
	t.Cleanup(config.ResetPath)

	m := newConfigViewModel(&config.Config{})
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(configViewModel)

	m.editor.SetValue("https://api.example.com")
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(configViewModel)
	if cmd == nil {
		t.Fatal("expected a save command")
	}
	if _, ok := cmd().(configSavedMsg); !ok {
		t.Fatal("expected configSavedMsg")
	}

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.APIURL != "https://api.example.com" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
}
