package ocr

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// progress maps "{document}::offset_{start}" group keys to the extracted
// text of each global page in that group. It is read fully on start and
// rewritten after every completed group, which keeps interrupted ingestions
// resumable without re-calling the vision model.
type progress map[string]map[string]string

func groupKey(doc string, offset int) string {
	return fmt.Sprintf("%s::offset_%05d", doc, offset)
}

func loadProgress(path string) (progress, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return progress{}, nil
		}
		return nil, fmt.Errorf("read progress file: %w", err)
	}
	var p progress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse progress file: %w", err)
	}
	return p, nil
}

func saveProgress(path string, p progress) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create progress dir: %w", err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write progress file: %w", err)
	}
	return nil
}
