package domain

import "time"

// RetractionReason is an enumerated justification a user must supply to
// retract a bid.
type RetractionReason string

const (
	ReasonTypo                     RetractionReason = "TYPO"
	ReasonItemDescriptionChanged    RetractionReason = "ITEM_DESCRIPTION_CHANGED"
	ReasonCannotContactSeller       RetractionReason = "CANNOT_CONTACT_SELLER"
	ReasonOther                     RetractionReason = "OTHER"
)

// ValidRetractionReason reports whether r is one of the enumerated reasons.
func ValidRetractionReason(r RetractionReason) bool {
	switch r {
	case ReasonTypo, ReasonItemDescriptionChanged, ReasonCannotContactSeller, ReasonOther:
		return true
	}
	return false
}

// Bid represents a single bid placed by a user against an auction. When
// MaxBidCts is set, the bid is a proxy bid: AmountCts is the visible amount
// the engine computed, and MaxBidCts is the bidder's private ceiling used to
// evaluate future competing bids.
type Bid struct {
	ID        string
	AuctionID string
	UserID    string

	AmountCts       int64
	MaxBidCts       *int64
	AutoBidStepCts  *int64

	PlacedAt time.Time

	IsWinning  bool
	IsProxyBid bool

	Retracted        bool
	RetractedAt      *time.Time
	RetractionReason *RetractionReason

	Message         string
	IsMaxBidReached bool
}

// RetractionEligible reports whether b may still be retracted, per the
// spec's eligibility rules that do not depend on timing: the bid must be
// unretracted and currently winning (only winning bids may be retracted).
// Timing and ownership are checked by RetractionService, which also has
// access to the requesting user and the auction's state.
func (b *Bid) RetractionEligible() bool {
	return !b.Retracted && b.IsWinning
}
