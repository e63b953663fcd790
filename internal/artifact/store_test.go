package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stevehiehn/capflow/internal/capability"
)

func TestNewCreatesRunDirs(t *testing.T) {
	dir := t.TempDir()
	store, err := New("run-123", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.BaseDir != filepath.Join(dir, ".capflow", "runs", "run-123") {
		t.Errorf("unexpected base dir %s", store.BaseDir)
	}
	for _, sub := range []string{"capabilities", "documents"} {
		info, err := os.Stat(filepath.Join(store.BaseDir, sub))
		if err != nil {
			t.Fatalf("%s dir not created: %v", sub, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %s to be a directory", sub)
		}
	}
}

func TestWriteCapabilityOutputOverwrites(t *testing.T) {
	store, _ := New("run-456", t.TempDir())

	if _, err := store.WriteCapabilityOutput("generate", &capability.Output{Success: true, Data: "first"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path, err := store.WriteCapabilityOutput("generate", &capability.Output{Success: true, Data: "second"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, _ := os.ReadFile(path)
	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed["data"] != "second" {
		t.Errorf("expected latest output, got %v", parsed["data"])
	}
}

func TestWriteDocumentSanitisesName(t *testing.T) {
	store, _ := New("run-789", t.TempDir())
	path, err := store.WriteDocument("../Intro to Go.html", []byte("<p>hi</p>"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(store.BaseDir, "documents") {
		t.Errorf("document escaped its directory: %s", path)
	}
	got, _ := os.ReadFile(path)
	if string(got) != "<p>hi</p>" {
		t.Errorf("unexpected content %q", got)
	}
}

func TestWriteResult(t *testing.T) {
	store, _ := New("run-000", t.TempDir())
	path, err := store.WriteResult(map[string]string{"status": "completed"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(path) != "result.json" {
		t.Errorf("unexpected path %s", path)
	}

	data, _ := os.ReadFile(path)
	var parsed map[string]string
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed["status"] != "completed" {
		t.Errorf("expected status 'completed', got %q", parsed["status"])
	}
}
