package htmlutil

import (
	"context"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func TestGetAnchors(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`
		<html><body>
			<a href="/number/123">  +1 234
				567 </a>
			<a href="https://other.example/x">other</a>
			<a>no href</a>
		</body></html>
	`))
	require.NoError(t, err)

	anchors := GetAnchors(context.Background(), doc.Find("a"))
	require.Len(t, anchors, 3)
	require.Equal(t, "+1 234 567", anchors[0].Name)
	require.Equal(t, "/number/123", anchors[0].Href)
	require.Equal(t, "https://other.example/x", anchors[1].Href)
	require.Equal(t, "", anchors[2].Href)
}

func TestResolveHref(t *testing.T) {
	base, err := url.Parse("https://site.example/free-numbers/")
	require.NoError(t, err)

	require.Equal(t,
		"https://site.example/number/123",
		ResolveHref(base, "/number/123"))
	require.Equal(t,
		"https://site.example/free-numbers/123",
		ResolveHref(base, "123"))
	require.Equal(t,
		"https://other.example/x",
		ResolveHref(base, "https://other.example/x"))
	require.Equal(t, "", ResolveHref(base, ""))
}
