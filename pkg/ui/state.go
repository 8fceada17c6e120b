package ui

import (
	"os"
	"path/filepath"

	json "github.com/goccy/go-json"
)

const stateFileName = "ui-state.json"

// UIState is the interaction state persisted across runs: where the cursor
// was, so reopening the editor lands on the same node.
type UIState struct {
	Version  int    `json:"version"`
	CursorID string `json:"cursor_id,omitempty"`
}

func statePath(dir string) string {
	return filepath.Join(dir, stateFileName)
}

// LoadState reads the persisted UI state from the project directory. A
// missing or unreadable file yields a zero state, never an error: stale
// interaction state is not worth failing startup over.
func LoadState(dir string) UIState {
	data, err := os.ReadFile(statePath(dir))
	if err != nil {
		return UIState{Version: 1}
	}
	var st UIState
	if err := json.Unmarshal(data, &st); err != nil {
		return UIState{Version: 1}
	}
	if st.Version == 0 {
		st.Version = 1
	}
	return st
}

// SaveState writes the UI state to the project directory.
func SaveState(dir string, st UIState) error {
	st.Version = 1
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	tmp := statePath(dir) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, statePath(dir))
}
