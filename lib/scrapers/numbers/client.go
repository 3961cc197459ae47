package numbers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"
	"smsgate-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

type FetchErrorKind int

const (
	FetchTimeout FetchErrorKind = iota
	FetchHTTPStatus
	FetchNetwork
)

// FetchError is the only failure a page fetch surfaces. The scrape layer
// never retries on it, it degrades the source to an empty result instead.
type FetchError struct {
	Kind   FetchErrorKind
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchTimeout:
		return fmt.Sprintf("fetch %s: timed out", e.URL)
	case FetchHTTPStatus:
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	default:
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Client fetches pages from the number sources. The sources are hostile to
// scrapers, so it carries a realistic browser header set and the cloudflare
// bypass transport.
type Client struct {
	http *resty.Client
}

func NewClient(timeout time.Duration) *Client {
	client := resty.New()
	client.SetTimeout(timeout)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)

	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")
	client.SetHeader("referer", "https://www.google.com/")
	client.SetHeader("accept-language", "en-US,en;q=0.9")

	telemetry.InstrumentResty(client, "scrapers/numbers/http")

	return &Client{http: client}
}

// Fetch performs a single GET and returns the raw markup. Failures come
// back as *FetchError, there are no retries at this layer.
func (c *Client) Fetch(ctx context.Context, pageUrl string) (string, error) {
	res, err := c.http.R().
		SetContext(ctx).
		Get(pageUrl)
	if err != nil {
		kind := FetchNetwork
		var netErr net.Error
		if errors.Is(err, context.DeadlineExceeded) ||
			os.IsTimeout(err) ||
			(errors.As(err, &netErr) && netErr.Timeout()) {
			kind = FetchTimeout
		}
		return "", &FetchError{Kind: kind, URL: pageUrl, Err: err}
	}
	if res.IsError() {
		return "", &FetchError{
			Kind:   FetchHTTPStatus,
			URL:    pageUrl,
			Status: res.StatusCode(),
		}
	}
	return string(res.Body()), nil
}
