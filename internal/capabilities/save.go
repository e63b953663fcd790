package capabilities

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stevehiehn/capflow/internal/capability"
	caperrors "github.com/stevehiehn/capflow/internal/errors"
	"github.com/stevehiehn/capflow/internal/journal"
	"github.com/stevehiehn/capflow/internal/store"
)

// recordNamespace scopes record ids so re-saving the same content upserts.
var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("capflow/records"))

type save struct {
	persister store.Persister
}

// NewSave creates the save capability.
func NewSave(p store.Persister) capability.Capability {
	return &save{persister: p}
}

func (s *save) Execute(ctx context.Context, in *capability.Input) (*capability.Output, error) {
	owner := in.String(capability.KeyOwnerID)
	if owner == "" {
		return capability.Fail(in, caperrors.NewNotAuthenticated("saving content requires an owner id")), nil
	}
	content, ok := capability.Lookup[Content](in.PreviousResults, Generate)
	if !ok {
		return capability.Fail(in, caperrors.NewValidationError("no generated content to save", "Run generate before save")), nil
	}
	if s.persister == nil {
		return capability.Fail(in, caperrors.NewValidationError("no storage configured", "Configure [storage] in capflow.toml")), nil
	}

	htmlByKey := map[string]string{}
	if built, ok := capability.Lookup[BuildResult](in.PreviousResults, Build); ok {
		for _, d := range built.Documents {
			htmlByKey[d.Key] = d.HTML
		}
	}

	objective := in.String(capability.KeyObjective)
	var report SaveReport
	for _, p := range content.Pieces {
		rec := store.Record{
			ID:      RecordID(owner, objective, p.Key()),
			OwnerID: owner,
			Type:    "content",
			Payload: map[string]any{
				"title":        p.Title,
				"item_title":   p.ItemTitle,
				"body":         p.Body,
				"source_url":   p.SourceURL,
				"objective":    objective,
				"execution_id": in.ExecutionID,
			},
		}
		if h, ok := htmlByKey[p.Key()]; ok {
			rec.Payload["html"] = h
		}
		resp, err := s.persister.Persist(ctx, rec)
		switch {
		case err != nil:
			report.Failed = append(report.Failed, Failure{Title: p.Title, Error: err.Error()})
		case !resp.Success:
			report.Failed = append(report.Failed, Failure{Title: p.Title, Error: resp.Error})
		default:
			report.Saved = append(report.Saved, resp.ID)
		}
	}

	total := len(content.Pieces)
	if total > 0 && len(report.Saved) == 0 {
		out := capability.Fail(in, caperrors.NewCritical(fmt.Errorf("none of %d record(s) saved: %s", total, failureList(report.Failed))))
		out.Data = report
		return out, nil
	}

	out := capability.Succeed(in, report).
		WithConfirmation(capability.NewConfirmation(false,
			capability.CountEquals("all_saved", "Records that failed to save", len(report.Failed), 0),
		))
	if len(report.Failed) > 0 {
		out.Error = caperrors.NewPartialFailure(len(report.Saved), len(report.Failed),
			fmt.Sprintf("%d of %d record(s) saved: %s", len(report.Saved), total, failureList(report.Failed)))
		out.Debug(journal.TypeWarning, "%d record(s) failed to save", len(report.Failed))
	}
	return out.Debug(journal.TypeInfo, "saved %d record(s) for %s", len(report.Saved), owner), nil
}

// RecordID derives a stable record id for a piece of content from its
// Piece.Key.
func RecordID(owner, objective, key string) string {
	return uuid.NewSHA1(recordNamespace, []byte(owner+"\x00"+objective+"\x00"+key)).String()
}

func failureList(fs []Failure) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = f.Title + " (" + f.Error + ")"
	}
	return strings.Join(parts, "; ")
}
