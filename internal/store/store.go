// Package store persists generated records for their owner.
package store

import (
	"context"
	"time"
)

// Record is one persisted item.
type Record struct {
	ID        string         `json:"id"`
	OwnerID   string         `json:"owner_id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
	CreatedAt time.Time      `json:"created_at"`
}

// Response is the persistence endpoint's answer for one record.
type Response struct {
	Success bool   `json:"success"`
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Persister writes records. A transport failure is a returned error; a
// rejected record is a Response with Success=false.
type Persister interface {
	Persist(ctx context.Context, r Record) (Response, error)
}
