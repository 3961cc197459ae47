package numbers

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"smsgate-backend/lib/telemetry"

	"go.opentelemetry.io/otel/attribute"
)

var tracer = telemetry.Tracer("scrapers/numbers")

// ScrapeSource produces the first-N unique-by-phone candidates for one
// source. A dead or mangled page yields an empty list, never an error;
// the catalog build must survive any subset of sources going dark.
func (c *Client) ScrapeSource(ctx context.Context, src Source) []Candidate {
	ctx, span := tracer.Start(ctx, "ScrapeSource")
	defer span.End()
	span.SetAttributes(attribute.String("kind", string(src.Kind)))

	seen := map[string]bool{}
	var out []Candidate

	for _, pageUrl := range src.URLs {
		rawHtml, err := c.Fetch(ctx, pageUrl)
		if err != nil {
			slog.WarnContext(ctx, "fetch source page",
				"kind", src.Kind, "url", pageUrl, "err", err)
			continue
		}
		base, err := url.Parse(pageUrl)
		if err != nil {
			slog.WarnContext(ctx, "bad source url",
				"kind", src.Kind, "url", pageUrl, "err", err)
			continue
		}

		cands := ExtractCandidates(ctx, rawHtml, base, ExtractRules{Selector: src.Selector})
		if len(cands) == 0 && src.ScanAllFallback && src.Selector != "" {
			cands = ExtractCandidates(ctx, rawHtml, base, ExtractRules{})
		}

		for _, cand := range cands {
			if src.Filter != nil && !src.Filter(cand.Phone, pageUrl) {
				continue
			}
			if seen[cand.Phone] {
				continue
			}
			seen[cand.Phone] = true
			cand.Source = src.Kind
			out = append(out, cand)
			if len(out) >= src.MaxResults {
				return out
			}
		}
	}

	return out
}

// BuildCatalog runs every source concurrently, joins them, concatenates
// in the fixed source order, deduplicates globally by phone (first
// occurrence wins, so earlier sources take ties) and paginates. An empty
// catalog is a normal outcome, not an error.
func (c *Client) BuildCatalog(ctx context.Context, sources []Source, pageSize int) *Catalog {
	ctx, span := tracer.Start(ctx, "BuildCatalog")
	defer span.End()

	results := make([][]Candidate, len(sources))
	wg := sync.WaitGroup{}
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			results[i] = c.ScrapeSource(ctx, src)
		}(i, src)
	}
	wg.Wait()

	seen := map[string]bool{}
	var merged []Candidate
	for _, sourceResult := range results {
		for _, cand := range sourceResult {
			if seen[cand.Phone] {
				continue
			}
			seen[cand.Phone] = true
			merged = append(merged, cand)
		}
	}

	span.SetAttributes(attribute.Int("total", len(merged)))
	slog.InfoContext(ctx, "catalog built",
		"total", len(merged), "sources", len(sources))

	return &Catalog{Candidates: merged, PageSize: pageSize}
}
