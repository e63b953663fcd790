package capabilities

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/stevehiehn/capflow/internal/artifact"
	"github.com/stevehiehn/capflow/internal/capability"
	caperrors "github.com/stevehiehn/capflow/internal/errors"
	"github.com/stevehiehn/capflow/internal/journal"
)

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

type build struct {
	policy         *bluemonday.Policy
	writeDocuments bool
}

// NewBuild creates the build capability.
func NewBuild(writeDocuments bool) capability.Capability {
	return &build{policy: bluemonday.UGCPolicy(), writeDocuments: writeDocuments}
}

func (b *build) Execute(ctx context.Context, in *capability.Input) (*capability.Output, error) {
	content, ok := capability.Lookup[Content](in.PreviousResults, Generate)
	if !ok {
		return capability.Fail(in, caperrors.NewValidationError("no generated content to build", "Run generate before build")), nil
	}

	var store *artifact.Store
	var storeErr error
	if dir := in.String(capability.KeyWorkDir); b.writeDocuments && dir != "" {
		store, storeErr = artifact.New(in.ExecutionID, dir)
	}

	var res BuildResult
	names := map[string]int{}
	for _, p := range content.Pieces {
		doc := Document{
			ID:    uuid.NewSHA1(uuid.NameSpaceURL, []byte(in.ExecutionID+"/"+p.Key())).String(),
			Key:   p.Key(),
			Title: p.Title,
			HTML:  b.render(p),
		}
		if store != nil {
			name := slug(p.Title)
			names[name]++
			if n := names[name]; n > 1 {
				name = fmt.Sprintf("%s-%d", name, n)
			}
			path, err := store.WriteDocument(name+".html", []byte(doc.HTML))
			if err != nil {
				return capability.Fail(in, caperrors.NewCritical(fmt.Errorf("writing %q: %w", p.Title, err))), nil
			}
			doc.Path = path
		}
		res.Documents = append(res.Documents, doc)
	}

	out := capability.Succeed(in, res).
		WithConfirmation(capability.NewConfirmation(false,
			capability.CountEquals("all_built", "Documents built", len(res.Documents), len(content.Pieces)),
		))
	if storeErr != nil {
		out.Debug(journal.TypeWarning, "documents kept in memory only: %v", storeErr)
	}
	return out.Debug(journal.TypeInfo, "built %d document(s)", len(res.Documents)), nil
}

// render turns a piece into an HTML article. Body paragraphs pass through
// the sanitiser so model output can't inject scripts.
func (b *build) render(p Piece) string {
	var sb strings.Builder
	sb.WriteString("<article>\n<h1>")
	sb.WriteString(html.EscapeString(p.Title))
	sb.WriteString("</h1>\n")
	for _, para := range strings.Split(p.Body, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		sb.WriteString("<p>")
		sb.WriteString(para)
		sb.WriteString("</p>\n")
	}
	if p.SourceURL != "" {
		fmt.Fprintf(&sb, "<p><a href=\"%s\">Source</a></p>\n", html.EscapeString(p.SourceURL))
	}
	sb.WriteString("</article>\n")
	return b.policy.Sanitize(sb.String())
}

func slug(s string) string {
	s = strings.Trim(slugRe.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if s == "" {
		return "document"
	}
	return s
}
