package acquisition

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"smsgate-backend/lib/scrapers/numbers"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// StartPoll begins watching the confirmed candidate's detail page for
// incoming messages. It requires a prior successful Confirm; the poll
// runs in the background and delivers at most one terminal message to
// the participant: either the scraped messages or a timeout notice.
//
// Starting a new poll, or selecting a new candidate, bumps the session
// version and silently orphans any poll still running.
func (s *Service) StartPoll(ctx context.Context, participant int64) error {
	_, span := tracer.Start(ctx, "StartPoll", trace.WithAttributes(
		attribute.Int64("participant", participant),
	))
	defer span.End()

	sess := s.sessions.get(participant)
	cand, ok := sess.confirmedCandidate()
	if !ok {
		return ErrInvalidSelection
	}
	version := sess.newPollSession()

	pollId, err := random.String(8)
	if err != nil {
		pollId = "unknown"
	}

	go s.poll(participant, sess, cand, version, pollId)
	return nil
}

func (s *Service) poll(participant int64, sess *session, cand numbers.Candidate, version int64, pollId string) {
	ctx := context.Background()
	log := slog.With(
		"poll_id", pollId,
		"participant", participant,
		"phone", cand.Phone,
	)
	log.InfoContext(ctx, "poll started")

	deadline := time.Now().Add(s.cfg.PollDeadline)
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if sess.currentPollVersion() != version {
			log.InfoContext(ctx, "poll superseded")
			return
		}

		msgs := s.checkMessages(ctx, cand, log)
		if len(msgs) > 0 {
			// a newer selection may have landed while we were fetching
			if sess.currentPollVersion() != version {
				log.InfoContext(ctx, "poll superseded before delivery")
				return
			}
			s.deliverMessages(ctx, participant, cand, msgs, log)
			return
		}

		if time.Now().After(deadline) {
			if sess.currentPollVersion() != version {
				return
			}
			log.InfoContext(ctx, "poll timed out")
			s.deliver(ctx, participant, fmt.Sprintf(
				"No messages arrived for %s within the waiting window. The number may be inactive; try another one.",
				cand.Phone), log)
			return
		}

		<-ticker.C
	}
}

// checkMessages fetches the candidate's detail page and extracts its
// messages. Any failure, from a missing detail link to a dead page,
// reads as "no messages yet"; the next tick retries.
func (s *Service) checkMessages(ctx context.Context, cand numbers.Candidate, log *slog.Logger) []numbers.Message {
	if cand.DetailLink == "" {
		return nil
	}
	raw, err := s.scraper.Fetch(ctx, cand.DetailLink)
	if err != nil {
		log.WarnContext(ctx, "poll fetch failed", "url", cand.DetailLink, "err", err)
		return nil
	}
	return numbers.ExtractMessages(raw)
}

func (s *Service) deliverMessages(ctx context.Context, participant int64, cand numbers.Candidate, msgs []numbers.Message, log *slog.Logger) {
	if len(msgs) > s.cfg.MaxMessages {
		msgs = msgs[:s.cfg.MaxMessages]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Messages for %s:\n", cand.Phone)
	for i, m := range msgs {
		fmt.Fprintf(&b, "\n%d. %s", i+1, m.Text)
	}
	log.InfoContext(ctx, "poll found messages", "count", len(msgs))
	s.deliver(ctx, participant, b.String(), log)
}

func (s *Service) deliver(ctx context.Context, participant int64, text string, log *slog.Logger) {
	if s.msg == nil {
		return
	}
	if err := s.msg.Deliver(ctx, participant, text, nil); err != nil {
		log.ErrorContext(ctx, "poll delivery failed", "err", err)
	}
}
