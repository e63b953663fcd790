package capabilities

import (
	"context"
	"fmt"
	"strings"

	"github.com/stevehiehn/capflow/internal/capability"
	caperrors "github.com/stevehiehn/capflow/internal/errors"
	"github.com/stevehiehn/capflow/internal/journal"
	"github.com/tmc/langchaingo/llms"
)

const generateSystem = `You write short, accurate explanatory articles.
Start with a title line, then a blank line, then the body in plain paragraphs.`

type generate struct {
	llm llms.Model
}

// NewGenerate creates the generate capability.
func NewGenerate(llm llms.Model) capability.Capability {
	return &generate{llm: llm}
}

func (g *generate) Execute(ctx context.Context, in *capability.Input) (*capability.Output, error) {
	sel, ok := capability.Lookup[Selection](in.PreviousResults, Decide)
	if !ok {
		return capability.Fail(in, caperrors.NewValidationError("no selection to generate from", "Run decide before generate")), nil
	}
	if g.llm == nil {
		return capability.Fail(in, caperrors.NewValidationError("no model configured", "Configure [llm] in capflow.toml")), nil
	}

	objective := in.String(capability.KeyObjective)
	var content Content
	for _, item := range sel.Items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		prompt := fmt.Sprintf("Objective: %s\nTopic: %s\nContext: %s\nSource: %s", objective, item.Title, item.Description, item.URL)
		reply, err := complete(ctx, g.llm, generateSystem, prompt)
		if err == nil && reply == "" {
			err = fmt.Errorf("empty reply")
		}
		if err != nil {
			content.Failed = append(content.Failed, Failure{Title: item.Title, Error: err.Error()})
			continue
		}
		title, body := splitTitle(reply, item.Title)
		content.Pieces = append(content.Pieces, Piece{
			ItemTitle: item.Title,
			Title:     title,
			Body:      body,
			SourceURL: item.URL,
		})
	}

	if len(sel.Items) > 0 && len(content.Pieces) == 0 {
		out := capability.Fail(in, caperrors.NewCritical(fmt.Errorf("no content generated for %d item(s)", len(content.Failed))))
		out.Data = content
		return out, nil
	}

	out := capability.Succeed(in, content).
		WithSource("llm").
		WithConfirmation(capability.NewConfirmation(len(content.Pieces) == 0,
			capability.CountAtLeast("has_content", "Pieces generated", len(content.Pieces), 1),
			capability.CountEquals("all_generated", "Items that failed", len(content.Failed), 0),
		))
	if len(content.Failed) > 0 {
		out.Error = caperrors.NewPartialFailure(len(content.Pieces), len(content.Failed),
			fmt.Sprintf("%d of %d item(s) generated: %s", len(content.Pieces), len(sel.Items), failureList(content.Failed)))
	}
	for _, f := range content.Failed {
		out.Debug(journal.TypeWarning, "could not generate %q: %s", f.Title, f.Error)
	}
	return out.Debug(journal.TypeInfo, "generated %d piece(s)", len(content.Pieces)), nil
}

// splitTitle separates a leading title line from the body.
func splitTitle(reply, fallback string) (string, string) {
	first, rest, found := strings.Cut(reply, "\n")
	title := strings.TrimSpace(strings.TrimLeft(first, "# "))
	if !found || title == "" || len(title) > 120 {
		return fallback, reply
	}
	return title, strings.TrimSpace(rest)
}
