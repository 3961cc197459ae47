package numbers

import "strings"

type SourceKind string

const (
	// single page, anchors all over the markup
	SourceReceiveSmsOnline SourceKind = "receive-sms-online"
	// structured number boxes, with markup that drifts between deploys
	SourceSmsReceiveFree SourceKind = "sms-receive-free"
	// a set of mirrors of the same listing
	SourceFreeSmsCenter SourceKind = "free-sms-center"
)

// Source describes one scrape target: where to fetch, how to extract and
// how much of the result to keep.
type Source struct {
	Kind SourceKind
	// one entry for most sources, the mirror list for free-sms-center
	URLs []string
	// primary extraction selector, "a" when empty
	Selector string
	// rescan every anchor on the page when the primary selector matches
	// nothing (handles structural drift on sms-receive-free)
	ScanAllFallback bool
	// unique-by-phone cap on this source's contribution
	MaxResults int
	// optional predicate over (normalized phone, page url); false drops
	// the candidate
	Filter func(phone, pageUrl string) bool
}

// RejectPrefixFilter builds a filter that drops phones starting with any
// of the given prefixes. Used for country codes a source lists but whose
// messages it never actually relays.
func RejectPrefixFilter(prefixes []string) func(phone, pageUrl string) bool {
	if len(prefixes) == 0 {
		return nil
	}
	return func(phone, pageUrl string) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(phone, p) {
				return false
			}
		}
		return true
	}
}

// DefaultSources returns the production source set in its fixed,
// deterministic order. Earlier sources win dedup ties during aggregation.
func DefaultSources() []Source {
	return []Source{
		{
			Kind:       SourceReceiveSmsOnline,
			URLs:       []string{"https://receive-sms-online.info/"},
			MaxResults: 64,
		},
		{
			Kind:            SourceSmsReceiveFree,
			URLs:            []string{"https://sms-receive-free.com/"},
			Selector:        "div.number-boxes a",
			ScanAllFallback: true,
			MaxResults:      40,
		},
		{
			Kind: SourceFreeSmsCenter,
			URLs: []string{
				"https://free-sms-center.com/",
				"https://free-sms-center.net/",
				"https://free-sms-center.org/",
			},
			MaxResults: 20,
			Filter:     RejectPrefixFilter([]string{"+7"}),
		},
	}
}
