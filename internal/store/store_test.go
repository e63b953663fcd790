package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T) *SQLite {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "capflow.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLitePersistAndGet(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	resp, err := s.Persist(ctx, Record{ID: "r1", OwnerID: "u1", Type: "content", Payload: map[string]any{"title": "Intro"}, CreatedAt: created})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Success || resp.ID != "r1" {
		t.Fatalf("unexpected response %+v", resp)
	}

	got, err := s.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.OwnerID != "u1" || got.Payload["title"] != "Intro" || !got.CreatedAt.Equal(created) {
		t.Errorf("unexpected record %+v", got)
	}
}

func TestSQLiteUpsertsOnID(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	s.Persist(ctx, Record{ID: "r1", OwnerID: "u1", Type: "content", Payload: map[string]any{"v": 1}})
	s.Persist(ctx, Record{ID: "r1", OwnerID: "u1", Type: "content", Payload: map[string]any{"v": 2}})
	s.Persist(ctx, Record{ID: "r2", OwnerID: "u2", Type: "content", Payload: map[string]any{}})

	recs, err := s.ListByOwner(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("expected 1 record for u1, got %d", len(recs))
	}
	if recs[0].Payload["v"] != float64(2) {
		t.Errorf("expected latest payload, got %v", recs[0].Payload)
	}
}

func TestSQLiteRejectsRecordWithoutOwner(t *testing.T) {
	s := openTemp(t)
	resp, err := s.Persist(context.Background(), Record{ID: "r1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Success {
		t.Error("expected rejection")
	}
}

func TestHTTPClientPostsRecord(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/records" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("expected auth header, got %q", r.Header.Get("Authorization"))
		}
		var rec Record
		if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
			t.Errorf("decode: %v", err)
		}
		json.NewEncoder(w).Encode(Response{Success: true, ID: "server-" + rec.ID})
	}))
	defer server.Close()

	c := NewHTTPClient(server.URL+"/", "test-token")
	resp, err := c.Persist(context.Background(), Record{ID: "r1", OwnerID: "u1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Success || resp.ID != "server-r1" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHTTPClientReportsRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte("quota exceeded"))
	}))
	defer server.Close()

	resp, err := NewHTTPClient(server.URL, "").Persist(context.Background(), Record{ID: "r1", OwnerID: "u1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Success || resp.ID != "r1" || resp.Error != "422 quota exceeded" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHTTPClientEmptyBodyIsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	resp, err := NewHTTPClient(server.URL, "").Persist(context.Background(), Record{ID: "r1", OwnerID: "u1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.Success || resp.ID != "r1" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestHTTPClientTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	if _, err := NewHTTPClient(url, "").Persist(context.Background(), Record{ID: "r1"}); err == nil {
		t.Fatal("expected transport error")
	}
}
