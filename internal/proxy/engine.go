// Package proxy implements the second-price proxy bidding algorithm as a
// pure function: given current auction state and an incoming bid, it
// computes the outcome with no I/O, no locking, and no persistence. The
// effectful orchestration (locking, persisting, publishing) lives in
// internal/service; this package is exhaustively unit-testable in isolation.
package proxy

import "time"

// Competitor is a competing proxy bid record the engine considers when
// resolving an incoming bid. Callers (BiddingService) are responsible for
// excluding the incoming bidder's own bids and any retracted bids before
// calling Decide.
type Competitor struct {
	UserID         string
	MaxBidCents    int64
	FirstTimestamp time.Time
}

// State is the subset of auction state the engine needs.
type State struct {
	CurrentPriceCents int64
	ReservePriceCents *int64
	Competitors       []Competitor
}

// Incoming describes the bid being evaluated.
type Incoming struct {
	UserID         string
	MaxBidCents    int64
	CustomStepCents *int64
}

// AutoBid is a competitor bid the engine decides must be recorded as a
// result of resolving the incoming bid (the displaced leader's bid rising to
// their own max).
type AutoBid struct {
	UserID          string
	AmountCents     int64
	IsMaxBidReached bool
	Message         string
}

// Decision is the engine's pure output for one incoming bid.
type Decision struct {
	UserBidAmountCents  int64
	WouldWin            bool
	CompetitorAutoBids  []AutoBid
	NewVisiblePriceCents int64
	IsMaxBidReached     bool
	Message             string
}

// Incrementer returns the ladder increment for a given current price.
// internal/ladder.Table satisfies this.
type Incrementer interface {
	Increment(currentPriceCents int64) int64
}

// Engine computes second-price proxy decisions against a given ladder.
type Engine struct {
	ladder Incrementer
}

// NewEngine builds an Engine that consults ladder for minimum increments.
func NewEngine(ladder Incrementer) *Engine {
	return &Engine{ladder: ladder}
}

// highestCompetitor returns the competing record with the highest MaxBidCents,
// breaking ties by the earliest FirstTimestamp. It returns nil if there are
// no competitors.
func highestCompetitor(competitors []Competitor) *Competitor {
	var best *Competitor
	for i := range competitors {
		c := &competitors[i]
		if best == nil {
			best = c
			continue
		}
		if c.MaxBidCents > best.MaxBidCents {
			best = c
			continue
		}
		if c.MaxBidCents == best.MaxBidCents && c.FirstTimestamp.Before(best.FirstTimestamp) {
			best = c
		}
	}
	return best
}

// Decide computes the outcome of an incoming proxy bid against the current
// auction state, per the four cases of the second-price proxy algorithm.
func (e *Engine) Decide(state State, in Incoming) Decision {
	h := highestCompetitor(state.Competitors)

	if h == nil {
		// Case 1: no competing bid with a maxBid. Increment from the
		// auction's current visible price.
		inc := e.ladder.Increment(state.CurrentPriceCents)
		if in.CustomStepCents != nil {
			inc = *in.CustomStepCents
		}
		formulaFloor := state.CurrentPriceCents + inc

		amount := in.MaxBidCents
		if amount > formulaFloor {
			amount = formulaFloor
		}
		wouldWin := amount >= formulaFloor
		isMaxReached := amount == in.MaxBidCents && in.MaxBidCents < formulaFloor
		msg := ""
		if isMaxReached {
			msg = "max reached"
		}
		return Decision{
			UserBidAmountCents:   amount,
			WouldWin:             wouldWin,
			NewVisiblePriceCents: amount,
			IsMaxBidReached:      isMaxReached,
			Message:              msg,
		}
	}

	switch {
	case in.MaxBidCents > h.MaxBidCents:
		// Case 2: user outbids the current leader's max; second-price
		// formula. The increment is taken from the leader's own max, since
		// that is the price level being bid up from, not the (possibly
		// stale) visible price recorded before this leader took it.
		inc := e.ladder.Increment(h.MaxBidCents)
		if in.CustomStepCents != nil {
			inc = *in.CustomStepCents
		}
		amount := h.MaxBidCents + inc

		if state.ReservePriceCents != nil && in.MaxBidCents >= *state.ReservePriceCents && amount < *state.ReservePriceCents {
			amount = *state.ReservePriceCents
		}

		return Decision{
			UserBidAmountCents: amount,
			WouldWin:           true,
			CompetitorAutoBids: []AutoBid{
				{
					UserID:          h.UserID,
					AmountCents:     h.MaxBidCents,
					IsMaxBidReached: true,
					Message:         "max reached",
				},
			},
			NewVisiblePriceCents: amount,
		}

	case in.MaxBidCents == h.MaxBidCents:
		// Case 3: tie; earlier timestamp keeps leadership.
		return Decision{
			UserBidAmountCents:   in.MaxBidCents,
			WouldWin:             false,
			NewVisiblePriceCents: state.CurrentPriceCents,
			IsMaxBidReached:      true,
			Message:              "max reached",
		}

	default:
		// Case 4: user's max is below the current leader's max; user loses.
		return Decision{
			UserBidAmountCents:   in.MaxBidCents,
			WouldWin:             false,
			NewVisiblePriceCents: state.CurrentPriceCents,
			IsMaxBidReached:      true,
			Message:              "max reached",
		}
	}
}
