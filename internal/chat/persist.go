package chat

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

const (
	messageLogFileName   = "message-log.json"
	qualityStateFileName = "quality-state.json"
)

// persistedLog is the serializable representation of the shared message log.
type persistedLog struct {
	Entries []Message `json:"entries"`
}

// persistedQuality is the serializable representation of the quality state:
// feedback keyed by message id plus the append-only correction records.
type persistedQuality struct {
	Feedback    map[string]*Feedback `json:"feedback_by_message"`
	Corrections []Correction         `json:"corrections"`
}

// writeAtomic writes data to target via a temporary file and rename so a
// crash mid-write never leaves a truncated document behind.
func writeAtomic(target string, data []byte) error {
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// SaveState writes the message log and quality state to JSON files in the
// given directory. Writes are atomic (temp file + rename).
func (s *Store) SaveState(dir string) error {
	s.mu.RLock()
	logData, logErr := json.MarshalIndent(persistedLog{Entries: s.snapshotMessagesLocked()}, "", "  ")
	qualityData, qualityErr := json.MarshalIndent(persistedQuality{
		Feedback:    s.feedback,
		Corrections: s.corrections,
	}, "", "  ")
	s.mu.RUnlock()

	if logErr != nil {
		return fmt.Errorf("marshal message log: %w", logErr)
	}
	if qualityErr != nil {
		return fmt.Errorf("marshal quality state: %w", qualityErr)
	}

	if err := writeAtomic(filepath.Join(dir, messageLogFileName), logData); err != nil {
		return err
	}
	return writeAtomic(filepath.Join(dir, qualityStateFileName), qualityData)
}

// snapshotMessagesLocked copies the message log in order. Caller holds s.mu.
func (s *Store) snapshotMessagesLocked() []Message {
	out := make([]Message, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.messages[id])
	}
	return out
}

// LoadState reads previously saved message-log and quality-state documents
// from the given directory and merges them into the store. Entries already
// present in memory win over persisted ones, so defaults seeded before the
// load survive it. Missing files are not an error.
func (s *Store) LoadState(dir string) error {
	if err := s.loadLog(filepath.Join(dir, messageLogFileName)); err != nil {
		return err
	}
	return s.loadQuality(filepath.Join(dir, qualityStateFileName))
}

func (s *Store) loadLog(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read message log: %w", err)
	}

	var log persistedLog
	if err := json.Unmarshal(data, &log); err != nil {
		return fmt.Errorf("unmarshal message log: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range log.Entries {
		if _, exists := s.messages[msg.ID]; exists {
			continue
		}
		copied := msg
		s.messages[msg.ID] = &copied
		s.order = append(s.order, msg.ID)
	}
	return nil
}

func (s *Store) loadQuality(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read quality state: %w", err)
	}

	var quality persistedQuality
	if err := json.Unmarshal(data, &quality); err != nil {
		return fmt.Errorf("unmarshal quality state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, fb := range quality.Feedback {
		if _, exists := s.feedback[id]; exists {
			continue
		}
		s.feedback[id] = fb
		if msg, ok := s.messages[id]; ok {
			msg.Feedback = fb
		}
	}

	known := make(map[string]bool, len(s.corrections))
	for _, c := range s.corrections {
		known[c.ID] = true
	}
	for _, c := range quality.Corrections {
		if known[c.ID] {
			continue
		}
		s.corrections = append(s.corrections, c)
	}
	return nil
}
