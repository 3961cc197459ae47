package acquisition

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"smsgate-backend/services/ledger"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func (s *Service) IsAdmin(participant int64) bool {
	for _, id := range s.cfg.AdminIds {
		if id == participant {
			return true
		}
	}
	return false
}

func (s *Service) AdminStats(ctx context.Context, admin int64) (ledger.Stats, error) {
	if !s.IsAdmin(admin) {
		return ledger.Stats{}, ErrNotAdmin
	}
	return s.ledger.Stats(ctx)
}

// BeginAdminAdjust arms the admin's session so the next freeform input
// is parsed as a balance adjustment.
func (s *Service) BeginAdminAdjust(admin int64) error {
	if !s.IsAdmin(admin) {
		return ErrNotAdmin
	}
	sess := s.sessions.get(admin)
	sess.mu.Lock()
	sess.adminState = adminAwaitingAdjust
	sess.mu.Unlock()
	return nil
}

// BeginBroadcast arms the admin's session so the next freeform input is
// broadcast to every participant.
func (s *Service) BeginBroadcast(admin int64) error {
	if !s.IsAdmin(admin) {
		return ErrNotAdmin
	}
	sess := s.sessions.get(admin)
	sess.mu.Lock()
	sess.adminState = adminAwaitingBroadcast
	sess.mu.Unlock()
	return nil
}

// HandleFreeform routes an admin's plain text input according to the
// armed session state. It reports whether the input was consumed so the
// caller can fall through to normal handling otherwise.
func (s *Service) HandleFreeform(ctx context.Context, admin int64, text string) (bool, error) {
	if !s.IsAdmin(admin) {
		return false, nil
	}
	sess := s.sessions.get(admin)
	sess.mu.Lock()
	state := sess.adminState
	sess.adminState = adminIdle
	sess.mu.Unlock()

	switch state {
	case adminAwaitingAdjust:
		return true, s.applyAdjust(ctx, admin, text)
	case adminAwaitingBroadcast:
		return true, s.broadcast(ctx, admin, text)
	default:
		return false, nil
	}
}

// applyAdjust parses "<participant id> <delta>" and applies it through
// the ledger, reporting the resulting balance back to the admin.
func (s *Service) applyAdjust(ctx context.Context, admin int64, text string) error {
	ctx, span := tracer.Start(ctx, "applyAdjust", trace.WithAttributes(
		attribute.Int64("admin", admin),
	))
	defer span.End()

	fields := strings.Fields(text)
	if len(fields) != 2 {
		return fmt.Errorf("expected '<participant id> <delta>', got %q", text)
	}
	target, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return fmt.Errorf("parsing participant id: %w", err)
	}
	delta, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return fmt.Errorf("parsing delta: %w", err)
	}

	after, err := s.ledger.AdminAdjust(ctx, target, delta)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "admin adjusted balance",
		"admin", admin, "participant", target, "delta", delta, "balance", after)
	return s.deliverAdmin(ctx, admin, fmt.Sprintf(
		"Balance of %d is now %d points.", target, after))
}

// broadcast delivers the text to every known participant, tolerating
// per-recipient failures.
func (s *Service) broadcast(ctx context.Context, admin int64, text string) error {
	ctx, span := tracer.Start(ctx, "broadcast", trace.WithAttributes(
		attribute.Int64("admin", admin),
	))
	defer span.End()

	ids, err := s.ledger.AllParticipants(ctx)
	if err != nil {
		return err
	}
	var delivered, failed int
	for _, id := range ids {
		if s.msg == nil {
			break
		}
		if err := s.msg.Deliver(ctx, id, text, nil); err != nil {
			failed++
			slog.WarnContext(ctx, "broadcast delivery failed",
				"participant", id, "err", err)
			continue
		}
		delivered++
	}
	slog.InfoContext(ctx, "broadcast finished",
		"admin", admin, "delivered", delivered, "failed", failed)
	return s.deliverAdmin(ctx, admin, fmt.Sprintf(
		"Broadcast delivered to %d participants, %d failed.", delivered, failed))
}

func (s *Service) deliverAdmin(ctx context.Context, admin int64, text string) error {
	if s.msg == nil {
		return nil
	}
	return s.msg.Deliver(ctx, admin, text, nil)
}
