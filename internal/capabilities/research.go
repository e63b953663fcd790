package capabilities

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stevehiehn/capflow/internal/capability"
	caperrors "github.com/stevehiehn/capflow/internal/errors"
	"github.com/stevehiehn/capflow/internal/journal"
	"github.com/tmc/langchaingo/tools/duckduckgo"
)

// Searcher runs a web search and returns the provider's text listing.
// *duckduckgo.Tool satisfies it.
type Searcher interface {
	Call(ctx context.Context, query string) (string, error)
}

// ResearchOptions tunes the research capability.
type ResearchOptions struct {
	MaxResults int
	Timeout    time.Duration // per attempt
	MaxTries   uint
	// NewBackOff returns the retry schedule for one Execute call. Backoff
	// values carry state, so every call gets its own.
	NewBackOff func() backoff.BackOff
}

func (o ResearchOptions) withDefaults() ResearchOptions {
	if o.MaxResults <= 0 {
		o.MaxResults = 5
	}
	if o.Timeout <= 0 {
		o.Timeout = 20 * time.Second
	}
	if o.MaxTries == 0 {
		o.MaxTries = 3
	}
	if o.NewBackOff == nil {
		o.NewBackOff = func() backoff.BackOff { return backoff.NewExponentialBackOff() }
	}
	return o
}

// NewDuckDuckGo returns a Searcher backed by DuckDuckGo.
func NewDuckDuckGo(maxResults int) (Searcher, error) {
	return duckduckgo.New(maxResults, duckduckgo.DefaultUserAgent)
}

type research struct {
	search Searcher
	opts   ResearchOptions
}

// NewResearch creates the research capability.
func NewResearch(s Searcher, opts ResearchOptions) capability.Capability {
	return &research{search: s, opts: opts.withDefaults()}
}

func (r *research) Execute(ctx context.Context, in *capability.Input) (*capability.Output, error) {
	query := in.String("query")
	if query == "" {
		query = in.String(capability.KeyObjective)
	}
	if query == "" {
		return capability.Fail(in, caperrors.NewValidationError("research needs a query", "Set a query parameter on the step")), nil
	}
	if r.search == nil {
		return capability.Fail(in, caperrors.NewValidationError("no search provider configured", "")), nil
	}
	max := in.Int("max_results", r.opts.MaxResults)

	attempts := 0
	text, err := backoff.Retry(ctx, func() (string, error) {
		attempts++
		actx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
		out, err := r.search.Call(actx, query)
		if ctx.Err() != nil {
			return "", backoff.Permanent(ctx.Err())
		}
		return out, err
	}, backoff.WithBackOff(r.opts.NewBackOff()), backoff.WithMaxTries(r.opts.MaxTries))
	if err != nil {
		out := capability.Fail(in, caperrors.From(err))
		out.Metadata.RetryCount = attempts - 1
		return out.Debug(journal.TypeError, "search for %q failed after %d attempt(s): %v", query, attempts, err), nil
	}

	items := parseResults(text, max)
	out := capability.Succeed(in, ResearchResult{Query: query, Items: items}).
		WithSource("duckduckgo").
		WithConfirmation(capability.NewConfirmation(true,
			capability.CountAtLeast("has_items", "Search results found", len(items), 1),
		)).
		Debug(journal.TypeDiscovery, "found %d result(s) for %q", len(items), query)
	out.Metadata.RetryCount = attempts - 1
	return out, nil
}

// parseResults reads "Title:", "Description:" and "URL:" lines into items.
// Each "Title:" line starts a new item.
func parseResults(text string, max int) []Item {
	var items []Item
	var cur *Item
	flush := func() {
		if cur != nil && (cur.Title != "" || cur.URL != "") {
			items = append(items, *cur)
		}
		cur = nil
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch strings.ToLower(key) {
		case "title":
			flush()
			cur = &Item{Title: val}
		case "description":
			if cur != nil {
				cur.Description = val
			}
		case "url":
			if cur != nil {
				cur.URL = val
			}
		}
	}
	flush()
	if max > 0 && len(items) > max {
		items = items[:max]
	}
	return items
}
