package acquisition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"smsgate-backend/lib/scrapers/numbers"
	"smsgate-backend/lib/telemetry"
	"smsgate-backend/services/ledger"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = telemetry.Tracer("smsgate.services.acquisition")

var (
	// ErrInvalidSelection is returned when a participant refers to a
	// candidate that no longer exists: an out of range index, a confirm
	// without a reservation, or a re-confirm of an already consumed one.
	ErrInvalidSelection = errors.New("selection is no longer valid")
	// ErrConcurrentSpend is returned when the balance check passed at
	// selection time but the debit found the points already gone.
	ErrConcurrentSpend = errors.New("balance was spent concurrently")
	ErrUnknownReward   = errors.New("unknown reward")
	ErrNotMember       = errors.New("participant has not joined the channel")
	ErrNotAdmin        = errors.New("participant is not an administrator")
)

// Reward is a redeemable catalog item.
type Reward struct {
	Label string `json:"label"`
	Price int64  `json:"price"`
}

type Config struct {
	// NumberPrice is the point cost of acquiring one number.
	NumberPrice int64 `json:"number_price"`
	// Rewards maps stable reward keys to their labels and prices.
	Rewards map[string]Reward `json:"rewards"`

	PageSize int `json:"page_size"`

	PollInterval time.Duration `json:"poll_interval"`
	PollDeadline time.Duration `json:"poll_deadline"`
	// MaxMessages caps how many scraped messages one delivery carries.
	MaxMessages int `json:"max_messages"`

	FetchTimeout time.Duration `json:"fetch_timeout"`

	AdminIds []int64 `json:"admin_ids"`

	SessionCapacity int           `json:"session_capacity"`
	SessionTTL      time.Duration `json:"session_ttl"`
}

func DefaultConfig() Config {
	return Config{
		NumberPrice: 10,
		Rewards: map[string]Reward{
			"card_50":    {Label: "Gift card 50", Price: 15},
			"card_100":   {Label: "Gift card 100", Price: 15},
			"premium_1m": {Label: "Premium, 1 month", Price: 25},
			"premium_3m": {Label: "Premium, 3 months", Price: 25},
		},
		PageSize:        8,
		PollInterval:    15 * time.Second,
		PollDeadline:    5 * time.Minute,
		MaxMessages:     10,
		FetchTimeout:    20 * time.Second,
		SessionCapacity: 4096,
		SessionTTL:      time.Hour,
	}
}

type Options struct {
	Config    Config
	Ledger    ledger.Service
	Messenger Messenger
	Gate      Gatekeeper
	Notifier  Notifier
	Scraper   *numbers.Client
	Sources   []numbers.Source
}

// Service drives the full acquisition flow: membership gating, catalog
// building, selection, point debits, message polling and reward
// redemption.
type Service struct {
	cfg      Config
	ledger   ledger.Service
	msg      Messenger
	gate     Gatekeeper
	notifier Notifier
	scraper  *numbers.Client
	sources  []numbers.Source
	sessions *sessionStore
}

func NewService(opts Options) *Service {
	cfg := opts.Config
	if cfg.PageSize <= 0 {
		cfg.PageSize = 8
	}
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 10
	}
	if cfg.SessionCapacity <= 0 {
		cfg.SessionCapacity = 4096
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = time.Hour
	}
	scraper := opts.Scraper
	if scraper == nil {
		scraper = numbers.NewClient(cfg.FetchTimeout)
	}
	sources := opts.Sources
	if len(sources) == 0 {
		sources = numbers.DefaultSources()
	}
	return &Service{
		cfg:      cfg,
		ledger:   opts.Ledger,
		msg:      opts.Messenger,
		gate:     opts.Gate,
		notifier: opts.Notifier,
		scraper:  scraper,
		sources:  sources,
		sessions: newSessionStore(cfg.SessionCapacity, cfg.SessionTTL),
	}
}

// Start registers the participant and applies the referral attribution
// carried in the deep link payload. When the participant has not joined
// the required channel yet the referrer is parked on the session and
// replayed by ConfirmMembership, so attribution survives the join
// round-trip.
func (s *Service) Start(ctx context.Context, participant, referrer int64) error {
	ctx, span := tracer.Start(ctx, "Start", trace.WithAttributes(
		attribute.Int64("participant", participant),
	))
	defer span.End()

	member, err := s.gate.IsMember(ctx, participant)
	if err != nil {
		return fmt.Errorf("checking membership: %w", err)
	}
	if !member {
		sess := s.sessions.get(participant)
		sess.mu.Lock()
		sess.pendingReferrer = referrer
		sess.mu.Unlock()
		return ErrNotMember
	}
	return s.register(ctx, participant, referrer)
}

// ConfirmMembership re-runs the gate after the participant claims to
// have joined, completing any registration parked by Start.
func (s *Service) ConfirmMembership(ctx context.Context, participant int64) error {
	ctx, span := tracer.Start(ctx, "ConfirmMembership")
	defer span.End()

	member, err := s.gate.IsMember(ctx, participant)
	if err != nil {
		return fmt.Errorf("checking membership: %w", err)
	}
	if !member {
		return ErrNotMember
	}
	sess := s.sessions.get(participant)
	sess.mu.Lock()
	referrer := sess.pendingReferrer
	sess.pendingReferrer = 0
	sess.mu.Unlock()
	return s.register(ctx, participant, referrer)
}

func (s *Service) register(ctx context.Context, participant, referrer int64) error {
	created, err := s.ledger.RecordReferral(ctx, participant, referrer)
	if err != nil {
		return err
	}
	if created && referrer != 0 && referrer != participant && s.msg != nil {
		// best effort heads-up for the referrer
		err := s.msg.Deliver(ctx, referrer,
			fmt.Sprintf("You earned 1 point for inviting participant %d.", participant), nil)
		if err != nil {
			slog.WarnContext(ctx, "failed to notify referrer",
				"referrer", referrer, "err", err)
		}
	}
	return nil
}

// RequestNumbers checks the participant can afford a number before any
// scraping happens, then builds a fresh catalog and resets the session
// to its first page.
func (s *Service) RequestNumbers(ctx context.Context, participant int64) (*numbers.Catalog, error) {
	ctx, span := tracer.Start(ctx, "RequestNumbers", trace.WithAttributes(
		attribute.Int64("participant", participant),
	))
	defer span.End()

	balance, err := s.ledger.GetBalance(ctx, participant)
	if err != nil {
		return nil, err
	}
	if balance < s.cfg.NumberPrice {
		return nil, ledger.ErrInsufficientBalance
	}

	catalog := s.scraper.BuildCatalog(ctx, s.sources, s.cfg.PageSize)
	s.sessions.get(participant).setCatalog(catalog)
	return catalog, nil
}

// PageView is one rendered catalog page.
type PageView struct {
	Candidates []numbers.Candidate
	// FirstIndex is the catalog-absolute index of Candidates[0].
	FirstIndex int
	Page       int
	PageCount  int
}

func (s *Service) currentView(sess *session) (PageView, error) {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.catalog == nil {
		return PageView{}, ErrInvalidSelection
	}
	page := sess.catalog.Page(sess.page)
	return PageView{
		Candidates: page,
		FirstIndex: sess.page * sess.catalog.PageSize,
		Page:       sess.page,
		PageCount:  sess.catalog.PageCount(),
	}, nil
}

func (s *Service) CurrentPage(participant int64) (PageView, error) {
	return s.currentView(s.sessions.get(participant))
}

func (s *Service) NextPage(participant int64) (PageView, error) {
	sess := s.sessions.get(participant)
	sess.nextPage()
	return s.currentView(sess)
}

func (s *Service) PrevPage(participant int64) (PageView, error) {
	sess := s.sessions.get(participant)
	sess.prevPage()
	return s.currentView(sess)
}

// Select reserves the candidate at the given catalog-absolute index.
// Selecting again replaces the reservation and orphans any running
// poll for the previous one.
func (s *Service) Select(ctx context.Context, participant int64, index int) (numbers.Candidate, error) {
	_, span := tracer.Start(ctx, "Select", trace.WithAttributes(
		attribute.Int64("participant", participant),
		attribute.Int("index", index),
	))
	defer span.End()

	cand, ok := s.sessions.get(participant).reserve(index)
	if !ok {
		return numbers.Candidate{}, ErrInvalidSelection
	}
	return cand, nil
}

// Confirm debits the number price and consumes the reservation. The
// debit is what actually decides the race: a concurrent spend that
// drained the balance after Select surfaces as ErrConcurrentSpend and
// the reservation stays in place so the participant can retry after
// earning more points.
func (s *Service) Confirm(ctx context.Context, participant int64) (numbers.Candidate, error) {
	ctx, span := tracer.Start(ctx, "Confirm", trace.WithAttributes(
		attribute.Int64("participant", participant),
	))
	defer span.End()

	sess := s.sessions.get(participant)
	sess.mu.Lock()
	if sess.reservation == nil {
		sess.mu.Unlock()
		return numbers.Candidate{}, ErrInvalidSelection
	}
	cand := *sess.reservation
	sess.mu.Unlock()

	err := s.ledger.Debit(ctx, participant, s.cfg.NumberPrice, ledger.ReasonResourceDebit)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			return numbers.Candidate{}, ErrConcurrentSpend
		}
		return numbers.Candidate{}, err
	}

	consumed, ok := sess.consumeReservation()
	if !ok {
		// the reservation vanished between the snapshot and the debit;
		// treat the debit as authoritative and hand back the snapshot
		slog.WarnContext(ctx, "reservation consumed concurrently after debit",
			"participant", participant)
		return cand, nil
	}
	return consumed, nil
}

// BackToMain abandons the current selection. Spent points are not
// refunded; a poll already running keeps going until it finds messages,
// times out, or is superseded by a new selection.
func (s *Service) BackToMain(participant int64) {
	s.sessions.get(participant).clearSelection()
}

// ReferralInfo is what the participant sees on the referral screen.
type ReferralInfo struct {
	Balance   int64
	Referrals int64
	Link      string
}

func (s *Service) ReferralInfo(ctx context.Context, participant int64, linkBase string) (ReferralInfo, error) {
	balance, err := s.ledger.GetBalance(ctx, participant)
	if err != nil {
		return ReferralInfo{}, err
	}
	count, err := s.ledger.ReferralCount(ctx, participant)
	if err != nil {
		return ReferralInfo{}, err
	}
	return ReferralInfo{
		Balance:   balance,
		Referrals: count,
		Link:      fmt.Sprintf("%s?start=%d", linkBase, participant),
	}, nil
}

// RewardItem is a reward with its stable key, for rendering.
type RewardItem struct {
	Key string
	Reward
}

// ListRewards returns the redeemable catalog in a stable order.
func (s *Service) ListRewards() []RewardItem {
	items := make([]RewardItem, 0, len(s.cfg.Rewards))
	for key, reward := range s.cfg.Rewards {
		items = append(items, RewardItem{Key: key, Reward: reward})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Price != items[j].Price {
			return items[i].Price < items[j].Price
		}
		return items[i].Key < items[j].Key
	})
	return items
}

// SelectReward validates the reward and the participant's balance and
// parks the choice on the session pending confirmation.
func (s *Service) SelectReward(ctx context.Context, participant int64, key string) (Reward, error) {
	reward, ok := s.cfg.Rewards[key]
	if !ok {
		return Reward{}, ErrUnknownReward
	}
	balance, err := s.ledger.GetBalance(ctx, participant)
	if err != nil {
		return Reward{}, err
	}
	if balance < reward.Price {
		return Reward{}, ledger.ErrInsufficientBalance
	}
	sess := s.sessions.get(participant)
	sess.mu.Lock()
	sess.pendingReward = key
	sess.mu.Unlock()
	return reward, nil
}

// ConfirmReward debits the reward price and hands the order off to the
// notifier. Like Confirm, the debit arbitrates races.
func (s *Service) ConfirmReward(ctx context.Context, participant int64) (Reward, error) {
	ctx, span := tracer.Start(ctx, "ConfirmReward", trace.WithAttributes(
		attribute.Int64("participant", participant),
	))
	defer span.End()

	sess := s.sessions.get(participant)
	sess.mu.Lock()
	key := sess.pendingReward
	sess.mu.Unlock()
	reward, ok := s.cfg.Rewards[key]
	if !ok {
		return Reward{}, ErrInvalidSelection
	}

	err := s.ledger.Debit(ctx, participant, reward.Price, ledger.ReasonResourceDebit)
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientBalance) {
			return Reward{}, ErrConcurrentSpend
		}
		return Reward{}, err
	}

	sess.mu.Lock()
	sess.pendingReward = ""
	sess.mu.Unlock()

	if s.notifier != nil {
		if err := s.notifier.RewardOrdered(ctx, participant, key, reward); err != nil {
			slog.WarnContext(ctx, "failed to notify reward order",
				"participant", participant, "reward", key, "err", err)
		}
	}
	return reward, nil
}
