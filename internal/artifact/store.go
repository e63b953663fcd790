package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/stevehiehn/capflow/internal/capability"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Store manages artifact storage for one execution.
type Store struct {
	ExecutionID string
	BaseDir     string // defaults to .capflow/runs/<execution_id>
}

// New creates a store for an execution, rooted at workDir.
func New(executionID, workDir string) (*Store, error) {
	base := filepath.Join(workDir, ".capflow", "runs", executionID)
	for _, sub := range []string{"capabilities", "documents"} {
		if err := os.MkdirAll(filepath.Join(base, sub), 0o755); err != nil {
			return nil, fmt.Errorf("creating artifact dir: %w", err)
		}
	}
	return &Store{ExecutionID: executionID, BaseDir: base}, nil
}

// WriteCapabilityOutput writes the latest output of a capability. A re-run
// overwrites the earlier file.
func (s *Store) WriteCapabilityOutput(name string, output *capability.Output) (string, error) {
	return s.writeJSON(filepath.Join(s.BaseDir, "capabilities", safe(name)+".json"), output)
}

// WriteDocument writes a rendered document and returns its path.
func (s *Store) WriteDocument(name string, content []byte) (string, error) {
	path := filepath.Join(s.BaseDir, "documents", safe(name))
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// WriteResult writes the final result JSON.
func (s *Store) WriteResult(result any) (string, error) {
	return s.writeJSON(filepath.Join(s.BaseDir, "result.json"), result)
}

func (s *Store) writeJSON(path string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func safe(name string) string {
	name = unsafeName.ReplaceAllString(name, "_")
	if name == "" || name == "." || name == ".." {
		return "_"
	}
	return name
}
