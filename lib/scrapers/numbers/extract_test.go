package numbers

import (
	"context"
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	testCases := []struct {
		raw      string
		expected string
	}{
		{"+1234567", "+1234567"},
		{"1-234-567", "1234567"},
		{"+1 (234) 567", "+1234567"},
		{"  +44 7700 900123 ", "+447700900123"},
	}
	for _, test := range testCases {
		require.Equal(t, test.expected, NormalizePhone(test.raw))
	}
}

func TestExtractCandidates(t *testing.T) {
	base, err := url.Parse("https://site.example/numbers/")
	require.NoError(t, err)

	rawHtml := `
	<html><body>
		<a href="/number/1">+1 (234) 5678</a>
		<a href="detail/2">44-7700-900123</a>
		<a href="/about">About us</a>
		<a>+99 888 7777</a>
	</body></html>`

	cands := ExtractCandidates(context.Background(), rawHtml, base, ExtractRules{})
	require.Len(t, cands, 3)

	require.Equal(t, "+12345678", cands[0].Phone)
	require.Equal(t, "https://site.example/number/1", cands[0].DetailLink)

	require.Equal(t, "447700900123", cands[1].Phone)
	require.Equal(t, "https://site.example/numbers/detail/2", cands[1].DetailLink)

	// anchor without an href still yields a candidate, just with no
	// detail page to poll later
	require.Equal(t, "+998887777", cands[2].Phone)
	require.Equal(t, "", cands[2].DetailLink)
}

func TestExtractCandidatesSelector(t *testing.T) {
	base, err := url.Parse("https://site.example/")
	require.NoError(t, err)

	rawHtml := `
	<html><body>
		<div class="number-boxes">
			<a href="/n/1">+111 222 3334</a>
		</div>
		<a href="/spam">+999 888 7776</a>
	</body></html>`

	cands := ExtractCandidates(context.Background(), rawHtml, base, ExtractRules{
		Selector: "div.number-boxes a",
	})
	require.Len(t, cands, 1)
	require.Equal(t, "+1112223334", cands[0].Phone)
}

func TestExtractCandidatesMalformed(t *testing.T) {
	base, err := url.Parse("https://site.example/")
	require.NoError(t, err)

	// garbage degrades to zero candidates, not an error
	cands := ExtractCandidates(context.Background(), "<<<<not html &&&", base, ExtractRules{})
	require.Empty(t, cands)

	cands = ExtractCandidates(context.Background(), "", base, ExtractRules{})
	require.Empty(t, cands)
}

func TestExtractMessages(t *testing.T) {
	rawHtml := `
	<html><body><div id="messages">
		<div class="message">Your code is  123456 </div>
		<div class="message"></div>
		<div class="message">Another one</div>
		<div class="other">not a message</div>
	</div></body></html>`

	diff := cmp.Diff(
		[]Message{
			{Text: "Your code is 123456"},
			{Text: "Another one"},
		},
		ExtractMessages(rawHtml),
	)
	if diff != "" {
		t.Fatal(diff)
	}

	require.Empty(t, ExtractMessages("<p>no messages container</p>"))
}
