// Package memory provides an in-process, map-backed implementation of the
// domain store interfaces, used by the service and handler tests. The
// application itself is always wired to Postgres.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/proxybid/auctionengine/internal/domain"
)

// Store bundles in-memory AuctionStore, BidStore, and UserStore
// implementations sharing a single mutex, mirroring how the logical store
// described by the specification is a single atomic-per-key repository.
type Store struct {
	mu sync.RWMutex

	auctions map[string]domain.Auction
	bids     map[string]domain.Bid
	users    map[string]domain.User
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		auctions: make(map[string]domain.Auction),
		bids:     make(map[string]domain.Bid),
		users:    make(map[string]domain.User),
	}
}

// Auctions returns the domain.AuctionStore view of s.
func (s *Store) Auctions() domain.AuctionStore { return (*auctionStore)(s) }

// Bids returns the domain.BidStore view of s.
func (s *Store) Bids() domain.BidStore { return (*bidStore)(s) }

// Users returns the domain.UserStore view of s.
func (s *Store) Users() domain.UserStore { return (*userStore)(s) }

type auctionStore Store

func (s *auctionStore) Create(ctx context.Context, a domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.auctions[a.ID]; exists {
		return domain.ErrAlreadyExists
	}
	s.auctions[a.ID] = a
	return nil
}

func (s *auctionStore) Update(ctx context.Context, a domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.auctions[a.ID]; !exists {
		return domain.ErrNotFound
	}
	s.auctions[a.ID] = a
	return nil
}

func (s *auctionStore) GetByID(ctx context.Context, id string) (domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.auctions[id]
	if !ok {
		return domain.Auction{}, domain.ErrNotFound
	}
	return a, nil
}

func (s *auctionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.auctions[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.auctions, id)
	for bidID, b := range s.bids {
		if b.AuctionID == id {
			delete(s.bids, bidID)
		}
	}
	return nil
}

func (s *auctionStore) ListByStatus(ctx context.Context, status domain.AuctionStatus, opts domain.ListOpts) ([]domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Auction
	for _, a := range s.auctions {
		if a.Status == status {
			out = append(out, a)
		}
	}
	sortAuctionsByStartTimeDesc(out)
	return paginateAuctions(out, opts), nil
}

func (s *auctionStore) ListAll(ctx context.Context, opts domain.ListOpts) ([]domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Auction, 0, len(s.auctions))
	for _, a := range s.auctions {
		out = append(out, a)
	}
	sortAuctionsByStartTimeDesc(out)
	return paginateAuctions(out, opts), nil
}

func sortAuctionsByStartTimeDesc(a []domain.Auction) {
	sort.Slice(a, func(i, j int) bool { return a[i].StartTime.After(a[j].StartTime) })
}

func paginateAuctions(a []domain.Auction, opts domain.ListOpts) []domain.Auction {
	if opts.Offset > 0 {
		if opts.Offset >= len(a) {
			return nil
		}
		a = a[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(a) {
		a = a[:opts.Limit]
	}
	return a
}

type bidStore Store

func (s *bidStore) Add(ctx context.Context, b domain.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bids[b.ID]; exists {
		return domain.ErrAlreadyExists
	}
	s.bids[b.ID] = b
	return nil
}

func (s *bidStore) Update(ctx context.Context, b domain.Bid) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.bids[b.ID]; !exists {
		return domain.ErrNotFound
	}
	s.bids[b.ID] = b
	return nil
}

func (s *bidStore) GetByID(ctx context.Context, id string) (domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bids[id]
	if !ok {
		return domain.Bid{}, domain.ErrNotFound
	}
	return b, nil
}

func (s *bidStore) ListByAuction(ctx context.Context, auctionID string, includeRetracted bool, opts domain.ListOpts) ([]domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Bid
	for _, b := range s.bids {
		if b.AuctionID != auctionID {
			continue
		}
		if b.Retracted && !includeRetracted {
			continue
		}
		out = append(out, b)
	}
	sortBidsByAmountDescTimeAsc(out)
	return paginateBids(out, opts), nil
}

func (s *bidStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Bid
	for _, b := range s.bids {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sortBidsByAmountDescTimeAsc(out)
	return paginateBids(out, opts), nil
}

func (s *bidStore) GetWinning(ctx context.Context, auctionID string) (domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.bids {
		if b.AuctionID == auctionID && b.IsWinning && !b.Retracted {
			return b, nil
		}
	}
	return domain.Bid{}, domain.ErrNotFound
}

func sortBidsByAmountDescTimeAsc(b []domain.Bid) {
	sort.Slice(b, func(i, j int) bool {
		if b[i].AmountCts != b[j].AmountCts {
			return b[i].AmountCts > b[j].AmountCts
		}
		return b[i].PlacedAt.Before(b[j].PlacedAt)
	})
}

func paginateBids(b []domain.Bid, opts domain.ListOpts) []domain.Bid {
	if opts.Offset > 0 {
		if opts.Offset >= len(b) {
			return nil
		}
		b = b[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(b) {
		b = b[:opts.Limit]
	}
	return b
}

type userStore Store

func (s *userStore) Create(ctx context.Context, u domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[u.ID]; exists {
		return domain.ErrAlreadyExists
	}
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return domain.ErrAlreadyExists
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *userStore) GetByID(ctx context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (s *userStore) ListAll(ctx context.Context, opts domain.ListOpts) ([]domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(out) {
		out = out[:opts.Limit]
	}
	return out, nil
}

var (
	_ domain.AuctionStore = (*auctionStore)(nil)
	_ domain.BidStore     = (*bidStore)(nil)
	_ domain.UserStore    = (*userStore)(nil)
)
