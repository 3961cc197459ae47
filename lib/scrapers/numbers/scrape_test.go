package numbers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"smsgate-backend/lib/telemetry"

	"github.com/stretchr/testify/require"
)

func servePage(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func anchorsPage(phones ...string) string {
	body := "<html><body>"
	for i, p := range phones {
		body += fmt.Sprintf(`<a href="/number/%d">%s</a>`, i, p)
	}
	return body + "</body></html>"
}

func TestScrapeSourceCapAndDedup(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/numbers")
	defer cleanup()

	srv := servePage(t, anchorsPage(
		"+1111 2220", "+1111-2220", "+1111 2221", "1111-2220", "+1111 2222",
	))
	client := NewClient(time.Second * 5)

	cands := client.ScrapeSource(context.Background(), Source{
		Kind:       SourceReceiveSmsOnline,
		URLs:       []string{srv.URL},
		MaxResults: 3,
	})

	// "+11112220" and "11112220" normalize differently, but the repeat
	// of "+1111 2220" would have been deduplicated; the cap stops us at 3
	require.Len(t, cands, 3)
	require.Equal(t, "+11112220", cands[0].Phone)
	require.Equal(t, "+11112221", cands[1].Phone)
	require.Equal(t, "11112220", cands[2].Phone)
	for _, cand := range cands {
		require.Equal(t, SourceReceiveSmsOnline, cand.Source)
	}
}

func TestScrapeSourceFallbackScan(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/numbers")
	defer cleanup()

	// the structural selector matches nothing, the fallback anchor scan
	// still finds the numbers
	srv := servePage(t, anchorsPage("+2222 3333", "+2222 3334"))
	client := NewClient(time.Second * 5)

	src := Source{
		Kind:            SourceSmsReceiveFree,
		URLs:            []string{srv.URL},
		Selector:        "div.number-boxes a",
		ScanAllFallback: true,
		MaxResults:      40,
	}
	cands := client.ScrapeSource(context.Background(), src)
	require.Len(t, cands, 2)

	src.ScanAllFallback = false
	cands = client.ScrapeSource(context.Background(), src)
	require.Empty(t, cands)
}

func TestScrapeSourceMirrorsAndFilter(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/numbers")
	defer cleanup()

	mirror1 := servePage(t, anchorsPage("+7 900 1112233", "+3331 4440"))
	mirror2 := servePage(t, anchorsPage("+3331 4441", "+3331 4440"))
	client := NewClient(time.Second * 5)

	cands := client.ScrapeSource(context.Background(), Source{
		Kind:       SourceFreeSmsCenter,
		URLs:       []string{mirror1.URL, mirror2.URL},
		MaxResults: 20,
		Filter:     RejectPrefixFilter([]string{"+7"}),
	})

	// +7 number filtered, mirror overlap deduplicated
	require.Len(t, cands, 2)
	require.Equal(t, "+33314440", cands[0].Phone)
	require.Equal(t, "+33314441", cands[1].Phone)
}

func TestScrapeSourceDeadPage(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/numbers")
	defer cleanup()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(time.Second * 5)
	cands := client.ScrapeSource(context.Background(), Source{
		Kind:       SourceReceiveSmsOnline,
		URLs:       []string{srv.URL},
		MaxResults: 64,
	})
	require.Empty(t, cands)
}

func TestBuildCatalog(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/numbers")
	defer cleanup()

	// "+1234567" appears on both sources with different formatting; the
	// earlier source in the fixed order must win the tie
	srvA := servePage(t, anchorsPage("+1234567", "+1111 2220"))
	srvB := servePage(t, anchorsPage("1-234-567", "+1 234 567", "+5555 6660"))
	srvDead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srvDead.Close()

	client := NewClient(time.Second * 5)
	sources := []Source{
		{Kind: SourceReceiveSmsOnline, URLs: []string{srvA.URL}, MaxResults: 64},
		{Kind: SourceSmsReceiveFree, URLs: []string{srvB.URL}, MaxResults: 40},
		{Kind: SourceFreeSmsCenter, URLs: []string{srvDead.URL}, MaxResults: 20},
	}

	catalog := client.BuildCatalog(context.Background(), sources, 8)

	phones := map[string]SourceKind{}
	for _, cand := range catalog.Candidates {
		phones[cand.Phone] = cand.Source
	}
	require.Equal(t, SourceReceiveSmsOnline, phones["+1234567"])
	require.Equal(t, SourceSmsReceiveFree, phones["+55556660"])

	count := 0
	for _, cand := range catalog.Candidates {
		if cand.Phone == "+1234567" {
			count++
		}
	}
	require.Equal(t, 1, count)
}

func TestBuildCatalogAllDead(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:scrapers/numbers")
	defer cleanup()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(time.Second * 5)
	catalog := client.BuildCatalog(context.Background(), []Source{
		{Kind: SourceReceiveSmsOnline, URLs: []string{srv.URL}, MaxResults: 64},
	}, 8)

	// every source failing is a reportable outcome, not a panic or error
	require.Equal(t, 0, catalog.Total())
}
