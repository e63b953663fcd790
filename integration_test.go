package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"github.com/stevehiehn/capflow/internal/app"
	"github.com/stevehiehn/capflow/internal/capability"
	"github.com/stevehiehn/capflow/internal/config"
	"github.com/stevehiehn/capflow/internal/engine"
	caperrors "github.com/stevehiehn/capflow/internal/errors"
	"github.com/stevehiehn/capflow/internal/plan"
	"github.com/stevehiehn/capflow/internal/store"
)

const searchResults = `Title: A Tour of Go
Description: Interactive introduction
URL: https://go.dev/tour

Title: Effective Go
Description: Writing clear Go
URL: https://go.dev/doc/effective_go

Title: Go by Example
Description: Annotated programs
URL: https://gobyexample.com
`

type staticSearcher string

func (s staticSearcher) Call(context.Context, string) (string, error) { return string(s), nil }

// scriptedLLM picks the first two items and writes a short article per item.
type scriptedLLM struct {
	mu sync.Mutex
	n  int
}

func (m *scriptedLLM) GenerateContent(ctx context.Context, msgs []llms.MessageContent, opts ...llms.CallOption) (*llms.ContentResponse, error) {
	prompt := msgs[len(msgs)-1].Parts[0].(llms.TextContent).Text
	text := "[0, 1]"
	if !strings.Contains(prompt, "Pick the") {
		m.mu.Lock()
		m.n++
		text = fmt.Sprintf("# Lesson %d\n\nFirst paragraph.\n\nSecond paragraph.", m.n)
		m.mu.Unlock()
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: text}}}, nil
}

func (m *scriptedLLM) Call(ctx context.Context, prompt string, opts ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, opts...)
}

// recordsAPI is a stand-in for a remote content store.
type recordsAPI struct {
	mu      sync.Mutex
	records []store.Record
	reject  string
	tokens  []string
}

func startRecordsAPI(t *testing.T, api *recordsAPI) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /records", func(w http.ResponseWriter, r *http.Request) {
		var rec store.Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		api.mu.Lock()
		defer api.mu.Unlock()
		api.tokens = append(api.tokens, r.Header.Get("Authorization"))
		if api.reject != "" && rec.Payload["title"] == api.reject {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"success":false,"error":"duplicate title"}`))
			return
		}
		api.records = append(api.records, rec)
		json.NewEncoder(w).Encode(map[string]any{"success": true, "id": rec.ID})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newApp(t *testing.T, endpoint string) *app.App {
	t.Helper()
	t.Setenv("CAPFLOW_TEST_TOKEN", "secret")
	cfg := config.New()
	cfg.LLM.Provider = "none"
	cfg.Storage.Kind = "http"
	cfg.Storage.Endpoint = endpoint
	cfg.Storage.TokenEnv = "CAPFLOW_TEST_TOKEN"

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := app.Build(context.Background(), cfg, logger, t.TempDir(),
		app.WithLLM(&scriptedLLM{}),
		app.WithSearcher(staticSearcher(searchResults)),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func writePlan(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func loadPlan(t *testing.T, path string) *plan.ExecutionPlan {
	t.Helper()
	p, err := plan.LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

const learnPlan = `
objective: Learn Go in a weekend
inputs:
  topic:
    default: golang
steps:
  - title: Find material
    capabilities:
      - name: research
        parameters:
          query: "{{inputs.topic}} tutorials"
  - title: Pick the best
    capabilities:
      - name: decide
        parameters:
          count: 2
  - title: Write lessons
    capabilities:
      - name: generate
`

func TestLearnPlanE2E(t *testing.T) {
	api := &recordsAPI{}
	a := newApp(t, startRecordsAPI(t, api).URL)
	p := loadPlan(t, writePlan(t, t.TempDir(), "learn.yaml", learnPlan))
	inputs := p.ApplyDefaults(nil)

	result, err := a.Run(context.Background(), p, inputs, map[string]string{capability.KeyOwnerID: "user-1"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != engine.PlanCompleted {
		t.Fatalf("expected completed, got %s: %s", result.Status, result.Summary())
	}
	if len(result.Steps) != 5 || !result.Steps[3].AutoInjected || !result.Steps[4].AutoInjected {
		t.Fatalf("expected build and save to be added, got %+v", result.Steps)
	}
	if len(api.records) != 2 {
		t.Fatalf("expected 2 saved records, got %d", len(api.records))
	}
	for _, rec := range api.records {
		if rec.OwnerID != "user-1" {
			t.Errorf("unexpected owner %q", rec.OwnerID)
		}
		if html, _ := rec.Payload["html"].(string); !strings.Contains(html, "<p>First paragraph.</p>") {
			t.Errorf("expected rendered HTML in payload, got %q", html)
		}
	}
	if api.tokens[0] != "Bearer secret" {
		t.Errorf("expected bearer token, got %q", api.tokens[0])
	}

	runDir := filepath.Join(a.WorkDir, ".capflow", "runs", result.ExecutionID)
	data, err := os.ReadFile(filepath.Join(runDir, "result.json"))
	if err != nil {
		t.Fatalf("result.json should exist: %v", err)
	}
	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("result.json should be valid JSON: %v", err)
	}
	if parsed["execution_id"] != result.ExecutionID {
		t.Fatal("execution_id mismatch in result.json")
	}
	docs, _ := filepath.Glob(filepath.Join(runDir, "documents", "*.html"))
	if len(docs) != 2 {
		t.Errorf("expected 2 documents on disk, got %d", len(docs))
	}
}

func TestPartialSaveE2E(t *testing.T) {
	api := &recordsAPI{reject: "Lesson 2"}
	a := newApp(t, startRecordsAPI(t, api).URL)
	p := loadPlan(t, writePlan(t, t.TempDir(), "learn.yaml", learnPlan))

	result, err := a.Run(context.Background(), p, p.ApplyDefaults(nil), map[string]string{capability.KeyOwnerID: "user-1"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != engine.PlanCompletedWithWarnings {
		t.Fatalf("expected completed_with_warnings, got %s", result.Status)
	}
	if len(result.Warnings) == 0 || result.Warnings[0].Code != caperrors.PartialFailure {
		t.Fatalf("expected a partial failure warning, got %+v", result.Warnings)
	}
	if len(api.records) != 1 {
		t.Errorf("expected 1 saved record, got %d", len(api.records))
	}
}

func TestMissingOwnerStopsAtSaveE2E(t *testing.T) {
	api := &recordsAPI{}
	a := newApp(t, startRecordsAPI(t, api).URL)
	p := loadPlan(t, writePlan(t, t.TempDir(), "learn.yaml", learnPlan))

	result, err := a.Run(context.Background(), p, p.ApplyDefaults(nil), nil)
	if err != nil {
		t.Fatal(err)
	}
	if result.Status != engine.PlanError || result.FailedStep != 5 {
		t.Fatalf("expected failure at step 5, got %s at %d", result.Status, result.FailedStep)
	}
	if result.Errors[0].Code != caperrors.NotAuthenticated {
		t.Errorf("expected NOT_AUTHENTICATED, got %s", result.Errors[0].Code)
	}
	if len(api.records) != 0 {
		t.Error("nothing should be saved without an owner")
	}
}

func TestEmptyResearchHoldsLaterStepsE2E(t *testing.T) {
	cfg := config.New()
	cfg.LLM.Provider = "none"
	cfg.Artifacts.Enabled = false
	a, err := app.Build(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), t.TempDir(),
		app.WithLLM(&scriptedLLM{}),
		app.WithSearcher(staticSearcher("")),
	)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	p := loadPlan(t, writePlan(t, t.TempDir(), "learn.yaml", learnPlan))

	result, err := a.Run(context.Background(), p, p.ApplyDefaults(nil), map[string]string{capability.KeyOwnerID: "user-1"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Steps[0].Outcome != engine.OutcomeCompleted {
		t.Fatalf("research should complete, got %s", result.Steps[0].Outcome)
	}
	for _, s := range result.Steps[1:] {
		if s.Outcome != engine.OutcomeBlocked {
			t.Errorf("step %d should be held, got %s", s.Order, s.Outcome)
		}
	}
	if _, err := os.Stat(filepath.Join(a.WorkDir, ".capflow", "runs")); !os.IsNotExist(err) {
		t.Error("no artifacts should be written when disabled")
	}
}
