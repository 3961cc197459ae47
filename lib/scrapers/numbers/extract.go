package numbers

import (
	"context"
	"net/url"
	"regexp"
	"strings"
	"smsgate-backend/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Candidate is one scraped phone number, identified by its normalized
// phone value. Candidates only live for the duration of one acquisition
// session, they are never persisted.
type Candidate struct {
	Source     SourceKind
	Phone      string
	DetailLink string
}

type Message struct {
	Text string
}

// matches an optional leading +, then 7 or more digits possibly broken up
// by common separators
var phonePattern = regexp.MustCompile(`\+?\d[\d\-\s()]{6,}\d`)

var nonPhoneRune = regexp.MustCompile(`[^\d+]`)

// NormalizePhone strips everything but digits and the leading plus. The
// normalized value is the identity used for deduplication.
func NormalizePhone(raw string) string {
	return nonPhoneRune.ReplaceAllString(raw, "")
}

// ExtractRules parameterize candidate extraction for one source page.
type ExtractRules struct {
	// goquery selector for the elements to scan, "a" when empty
	Selector string
}

// ExtractCandidates pulls phone candidates out of raw markup. Relative
// detail links are resolved against base. Malformed markup is not an
// error, it extracts to nothing.
func ExtractCandidates(ctx context.Context, rawHtml string, base *url.URL, rules ExtractRules) []Candidate {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHtml))
	if err != nil {
		return nil
	}

	selector := rules.Selector
	if selector == "" {
		selector = "a"
	}

	var out []Candidate
	for _, anchor := range htmlutil.GetAnchors(ctx, doc.Find(selector)) {
		if anchor.Name == "" {
			continue
		}
		matches := phonePattern.FindAllString(anchor.Name, -1)
		if matches == nil {
			continue
		}

		detail := htmlutil.ResolveHref(base, anchor.Href)
		for _, m := range matches {
			out = append(out, Candidate{
				Phone:      NormalizePhone(m),
				DetailLink: detail,
			})
		}
	}
	return out
}

// ExtractMessages pulls the received-message list out of a detail page.
// Same degradation rule as ExtractCandidates: garbage in, nothing out.
func ExtractMessages(rawHtml string) []Message {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHtml))
	if err != nil {
		return nil
	}

	var out []Message
	doc.Find("#messages > div.message").Each(func(_ int, sel *goquery.Selection) {
		text := htmlutil.NormalizeText(sel.Text())
		if text == "" {
			return
		}
		out = append(out, Message{Text: text})
	})
	return out
}
