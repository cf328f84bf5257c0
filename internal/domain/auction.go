package domain

import "time"

// AuctionStatus represents the lifecycle state of an auction.
type AuctionStatus string

const (
	AuctionStatusPending AuctionStatus = "pending"
	AuctionStatusActive  AuctionStatus = "active"
	AuctionStatusEnded   AuctionStatus = "ended"
	AuctionStatusUnsold  AuctionStatus = "unsold"
)

// Auction represents a single second-price proxy-bidding listing.
//
// All monetary fields are integer cents. ReservePriceCents and
// BuyNowPriceCents are nil when unset. CurrentPriceCents always equals the
// amount of the unique non-retracted bid marked IsWinning, or StartingPriceCents
// when no such bid exists.
type Auction struct {
	ID          string
	Title       string
	Description string

	StartingPriceCents     int64
	CurrentPriceCents      int64
	MinimumBidIncrementCts int64
	ReservePriceCents      *int64
	BuyNowPriceCents       *int64

	StartTime    time.Time
	EndTime      time.Time
	HasTimeLimit bool

	Status AuctionStatus

	CreatedBy string
	WinnerID  *string
	BidCount  int

	CreatedAt time.Time
}

// ReserveMet reports whether the auction's current price satisfies its
// reserve, per the invariant reserveMet ⇔ (reservePrice == nil ∨ currentPrice
// ≥ reservePrice).
func (a *Auction) ReserveMet() bool {
	if a.ReservePriceCents == nil {
		return true
	}
	return a.CurrentPriceCents >= *a.ReservePriceCents
}

// NoTimeLimitHorizon is the sentinel duration applied to EndTime when an
// auction has HasTimeLimit == false.
const NoTimeLimitHorizon = 365 * 24 * time.Hour

// MaxBidAmountCents is the sanity ceiling any persisted monetary amount must
// respect (spec invariant: amounts are non-negative integers ≤ 100,000,000).
const MaxBidAmountCents int64 = 100_000_000
