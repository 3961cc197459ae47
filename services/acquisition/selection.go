package acquisition

import (
	"sync"
	"time"
	"smsgate-backend/lib/scrapers/numbers"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type adminState int

const (
	adminIdle adminState = iota
	adminAwaitingAdjust
	adminAwaitingBroadcast
)

// session is the per-participant ephemeral state for one acquisition
// run: the last built catalog, the pagination cursor, the single live
// reservation and the poll session version. Sessions are private to one
// participant, so one mutex per session is all the locking needed.
type session struct {
	mu sync.Mutex

	catalog *numbers.Catalog
	page    int

	reservation *numbers.Candidate
	confirmed   *numbers.Candidate

	// bumped whenever a new reservation or poll session starts; a
	// poller holding a stale version must go silent
	pollVersion int64

	pendingReward   string
	pendingReferrer int64

	adminState adminState
}

func (s *session) setCatalog(catalog *numbers.Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = catalog
	s.page = 0
	s.reservation = nil
	s.confirmed = nil
}

// nextPage advances the cursor, a no-op at the last page.
func (s *session) nextPage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.catalog == nil {
		return
	}
	if s.page+1 < s.catalog.PageCount() {
		s.page++
	}
}

// prevPage rewinds the cursor, a no-op at page zero.
func (s *session) prevPage() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.page > 0 {
		s.page--
	}
}

// reserve binds the participant to the candidate at the given
// catalog-absolute index. Reserving again simply replaces the previous
// reservation; the version bump orphans any poll still running against
// it.
func (s *session) reserve(index int) (numbers.Candidate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.catalog == nil {
		return numbers.Candidate{}, false
	}
	cand, ok := s.catalog.At(index)
	if !ok {
		return numbers.Candidate{}, false
	}
	s.reservation = &cand
	s.confirmed = nil
	s.pollVersion++
	return cand, true
}

// consumeReservation moves the reservation into the confirmed slot; a
// second confirm without a new reserve finds nothing.
func (s *session) consumeReservation() (numbers.Candidate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reservation == nil {
		return numbers.Candidate{}, false
	}
	cand := *s.reservation
	s.reservation = nil
	s.confirmed = &cand
	return cand, true
}

func (s *session) confirmedCandidate() (numbers.Candidate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.confirmed == nil {
		return numbers.Candidate{}, false
	}
	return *s.confirmed, true
}

func (s *session) clearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reservation = nil
	s.confirmed = nil
	s.pendingReward = ""
}

// newPollSession hands out the version a poller must present on every
// tick, invalidating all earlier ones.
func (s *session) newPollSession() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pollVersion++
	return s.pollVersion
}

func (s *session) currentPollVersion() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollVersion
}

// sessionStore keys sessions by participant id. It is bounded and
// TTL-evicted, so abandoned interactions age out instead of accumulating
// for the life of the process.
type sessionStore struct {
	mu    sync.Mutex
	cache *expirable.LRU[int64, *session]
}

func newSessionStore(capacity int, ttl time.Duration) *sessionStore {
	return &sessionStore{
		cache: expirable.NewLRU[int64, *session](capacity, nil, ttl),
	}
}

func (s *sessionStore) get(participant int64) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	cached, hit := s.cache.Get(participant)
	if hit {
		return cached
	}
	created := &session{}
	s.cache.Add(participant, created)
	return created
}
