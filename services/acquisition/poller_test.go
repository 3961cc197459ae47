package acquisition

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"smsgate-backend/lib/scrapers/numbers"
	"smsgate-backend/services/ledger"

	"github.com/stretchr/testify/require"
)

// pollServer serves one candidate whose detail page starts empty;
// messages can be published later.
type pollServer struct {
	srv *httptest.Server

	mu       sync.Mutex
	messages []string
}

func newPollServer(t *testing.T, phone string) *pollServer {
	t.Helper()
	p := &pollServer{}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			fmt.Fprintf(w, `<html><body><a href="/detail">%s</a></body></html>`, phone)
			return
		}
		p.mu.Lock()
		defer p.mu.Unlock()
		fmt.Fprint(w, `<div id="messages">`)
		for _, m := range p.messages {
			fmt.Fprintf(w, `<div class="message">%s</div>`, m)
		}
		fmt.Fprint(w, `</div>`)
	}))
	t.Cleanup(p.srv.Close)
	return p
}

func (p *pollServer) publish(messages ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, messages...)
}

func (p *pollServer) source() numbers.Source {
	return numbers.Source{
		Kind:       numbers.SourceReceiveSmsOnline,
		URLs:       []string{p.srv.URL + "/"},
		MaxResults: 64,
	}
}

// confirmFirst walks participant 10 through a funded select+confirm so a
// poll can start.
func confirmFirst(t *testing.T, fix fixture) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, fix.ledger.Credit(ctx, 10, 10, ledger.ReasonAdminAdjust))
	_, err := fix.service.RequestNumbers(ctx, 10)
	require.NoError(t, err)
	_, err = fix.service.Select(ctx, 10, 0)
	require.NoError(t, err)
	_, err = fix.service.Confirm(ctx, 10)
	require.NoError(t, err)
}

func TestStartPollWithoutConfirm(t *testing.T) {
	ps := newPollServer(t, "+1111 2220")
	fix := setupAcquisition(t, testConfig(), []numbers.Source{ps.source()})

	err := fix.service.StartPoll(context.Background(), 10)
	require.ErrorIs(t, err, ErrInvalidSelection)
}

func TestPollDeliversMessages(t *testing.T) {
	ps := newPollServer(t, "+1111 2220")
	fix := setupAcquisition(t, testConfig(), []numbers.Source{ps.source()})
	confirmFirst(t, fix)

	ps.publish("Your code is 4821", "Welcome aboard")
	require.NoError(t, fix.service.StartPoll(context.Background(), 10))

	fix.msg.waitCount(t, 1, 2*time.Second)
	got := fix.msg.all()[len(fix.msg.all())-1]
	require.EqualValues(t, 10, got.participant)
	require.Contains(t, got.text, "+11112220")
	require.Contains(t, got.text, "Your code is 4821")
	require.Contains(t, got.text, "Welcome aboard")

	// terminal delivery, the poll must not report again
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 1, fix.msg.count())
}

func TestPollDeliversLater(t *testing.T) {
	ps := newPollServer(t, "+1111 2220")
	fix := setupAcquisition(t, testConfig(), []numbers.Source{ps.source()})
	confirmFirst(t, fix)

	require.NoError(t, fix.service.StartPoll(context.Background(), 10))

	// nothing there yet, the poll keeps quiet
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, 0, fix.msg.count())

	ps.publish("Late code 7777")
	fix.msg.waitCount(t, 1, 2*time.Second)
	require.Contains(t, fix.msg.all()[0].text, "Late code 7777")
}

func TestPollTruncatesMessages(t *testing.T) {
	ps := newPollServer(t, "+1111 2220")
	cfg := testConfig()
	cfg.MaxMessages = 3
	fix := setupAcquisition(t, cfg, []numbers.Source{ps.source()})
	confirmFirst(t, fix)

	for i := 0; i < 6; i++ {
		ps.publish(fmt.Sprintf("msg-%d", i))
	}
	require.NoError(t, fix.service.StartPoll(context.Background(), 10))

	fix.msg.waitCount(t, 1, 2*time.Second)
	text := fix.msg.all()[0].text
	require.Equal(t, 3, strings.Count(text, "msg-"))
	require.Contains(t, text, "msg-0")
	require.NotContains(t, text, "msg-3")
}

func TestPollTimeout(t *testing.T) {
	ps := newPollServer(t, "+1111 2220")
	fix := setupAcquisition(t, testConfig(), []numbers.Source{ps.source()})
	confirmFirst(t, fix)

	require.NoError(t, fix.service.StartPoll(context.Background(), 10))

	fix.msg.waitCount(t, 1, 2*time.Second)
	require.Contains(t, fix.msg.all()[0].text, "No messages arrived")

	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 1, fix.msg.count())
}

func TestPollOrphanedBySupersede(t *testing.T) {
	ps := newPollServer(t, "+1111 2220")
	fix := setupAcquisition(t, testConfig(), []numbers.Source{ps.source()})
	confirmFirst(t, fix)

	require.NoError(t, fix.service.StartPoll(context.Background(), 10))

	// a new selection bumps the session version; the running poll must
	// never deliver, not even its timeout notice
	_, err := fix.service.Select(context.Background(), 10, 0)
	require.NoError(t, err)

	time.Sleep(500 * time.Millisecond)
	require.Equal(t, 0, fix.msg.count())
}

func TestPollRestartSupersedes(t *testing.T) {
	ps := newPollServer(t, "+1111 2220")
	fix := setupAcquisition(t, testConfig(), []numbers.Source{ps.source()})
	confirmFirst(t, fix)

	ctx := context.Background()
	require.NoError(t, fix.service.StartPoll(ctx, 10))
	require.NoError(t, fix.service.StartPoll(ctx, 10))

	ps.publish("Code 9999")
	fix.msg.waitCount(t, 1, 2*time.Second)

	// only the second poll speaks; give the orphan time to misbehave
	time.Sleep(200 * time.Millisecond)
	require.Equal(t, 1, fix.msg.count())
}
