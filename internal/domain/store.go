package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// AuctionStore persists auction listings.
type AuctionStore interface {
	Create(ctx context.Context, auction Auction) error
	Update(ctx context.Context, auction Auction) error
	GetByID(ctx context.Context, id string) (Auction, error)
	Delete(ctx context.Context, id string) error
	ListByStatus(ctx context.Context, status AuctionStatus, opts ListOpts) ([]Auction, error)
	ListAll(ctx context.Context, opts ListOpts) ([]Auction, error)
}

// BidStore persists proxy bids.
type BidStore interface {
	Add(ctx context.Context, bid Bid) error
	Update(ctx context.Context, bid Bid) error
	GetByID(ctx context.Context, id string) (Bid, error)
	// ListByAuction returns auctionID's bids, amount descending then
	// placed-at ascending. When includeRetracted is false, retracted bids
	// are excluded by the store itself rather than left for the caller to
	// filter.
	ListByAuction(ctx context.Context, auctionID string, includeRetracted bool, opts ListOpts) ([]Bid, error)
	ListByUser(ctx context.Context, userID string, opts ListOpts) ([]Bid, error)
	GetWinning(ctx context.Context, auctionID string) (Bid, error)
}

// UserStore persists bidder/seller identity records.
type UserStore interface {
	Create(ctx context.Context, user User) error
	GetByID(ctx context.Context, id string) (User, error)
	ListAll(ctx context.Context, opts ListOpts) ([]User, error)
}
