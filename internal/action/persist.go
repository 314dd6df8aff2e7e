package action

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const registryFileName = "action-registry.json"

// persistedRegistry is the serializable form of the action registry.
type persistedRegistry struct {
	Actions map[string]Action `json:"actions"`
	Order   []string          `json:"order"`
}

// SaveState writes the action registry to {dir}/action-registry.json via a
// temporary file and rename, so a crash mid-write never truncates it.
func (m *Manager) SaveState(dir string) error {
	m.mu.Lock()
	reg := persistedRegistry{
		Actions: make(map[string]Action, len(m.actions)),
		Order:   make([]string, len(m.order)),
	}
	for id, a := range m.actions {
		reg.Actions[id] = *a
	}
	copy(reg.Order, m.order)
	m.mu.Unlock()

	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal action registry: %w", err)
	}

	target := filepath.Join(dir, registryFileName)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// LoadState merges a previously saved registry into the manager. Actions
// already in memory win over persisted ones; a missing file is not an error.
func (m *Manager) LoadState(dir string) error {
	data, err := os.ReadFile(filepath.Join(dir, registryFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read action registry: %w", err)
	}

	var reg persistedRegistry
	if err := json.Unmarshal(data, &reg); err != nil {
		return fmt.Errorf("unmarshal action registry: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range reg.Order {
		if _, exists := m.actions[id]; exists {
			continue
		}
		a, ok := reg.Actions[id]
		if !ok {
			continue
		}
		stored := a
		m.actions[id] = &stored
		m.order = append(m.order, id)
	}
	return nil
}
