package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/proxybid/auctionengine/internal/domain"
)

// retractionWindow is the bound on how long after placement a winning bid
// may still be retracted. The specification's two branches (auction has
// >12h remaining vs. not) evaluate to the same bound, so only one window is
// implemented here.
const retractionWindow = 1 * time.Hour

// RetractBidParams is the RetractionService.Retract request.
type RetractBidParams struct {
	BidID  string
	UserID string
	Reason domain.RetractionReason
}

// RetractionService validates retraction eligibility and recomputes the
// auction's winner and price after a winning bid is retracted.
type RetractionService struct {
	auctions domain.AuctionStore
	bids     domain.BidStore
	locks    domain.LockManager
	pub      *publisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewRetractionService builds a RetractionService.
func NewRetractionService(auctions domain.AuctionStore, bids domain.BidStore, locks domain.LockManager, bus domain.SignalBus, logger *slog.Logger) *RetractionService {
	return &RetractionService{
		auctions: auctions,
		bids:     bids,
		locks:    locks,
		pub:      newPublisher(bus, logger),
		logger:   logger,
		now:      time.Now,
	}
}

// Retract implements the eligibility checks and recomputation of
// specification §4.7, executed under KeyedLock(auctionId).
func (s *RetractionService) Retract(ctx context.Context, p RetractBidParams) (domain.Auction, error) {
	if !domain.ValidRetractionReason(p.Reason) {
		return domain.Auction{}, domain.NewError(domain.KindValidation, "invalid retraction reason")
	}

	bid, err := s.bids.GetByID(ctx, p.BidID)
	if err != nil {
		return domain.Auction{}, domain.Wrap(domain.KindNotFound, "bid not found", err)
	}

	var result domain.Auction
	retractErr := withLock(ctx, s.locks, lockKeyForAuction(bid.AuctionID), lockTimeout, lockMaxRetries, func(ctx context.Context) error {
		bid, err := s.bids.GetByID(ctx, p.BidID)
		if err != nil {
			return domain.Wrap(domain.KindNotFound, "bid not found", err)
		}
		if bid.UserID != p.UserID {
			return domain.NewError(domain.KindForbidden, "user does not own this bid")
		}
		if bid.Retracted {
			return domain.Wrap(domain.KindState, "bid is already retracted", domain.ErrAlreadyRetracted)
		}

		auction, err := s.auctions.GetByID(ctx, bid.AuctionID)
		if err != nil {
			return domain.Wrap(domain.KindNotFound, "auction not found", err)
		}
		if auction.Status == domain.AuctionStatusEnded || auction.Status == domain.AuctionStatusUnsold {
			return domain.Wrap(domain.KindState, "auction has already ended", domain.ErrAuctionAlreadyEnded)
		}
		if !bid.IsWinning {
			return domain.NewError(domain.KindState, "only the currently winning bid may be retracted")
		}
		if s.now().Sub(bid.PlacedAt) > retractionWindow {
			return domain.Wrap(domain.KindState, "retraction window has closed", domain.ErrRetractionWindowClosed)
		}

		now := s.now()
		reason := p.Reason
		bid.Retracted = true
		bid.RetractedAt = &now
		bid.RetractionReason = &reason
		bid.IsWinning = false
		if err := s.bids.Update(ctx, bid); err != nil {
			return domain.Wrap(domain.KindInternal, "failed to update bid", err)
		}

		others, err := s.bids.ListByAuction(ctx, bid.AuctionID, false, domain.ListOpts{})
		if err != nil {
			return domain.Wrap(domain.KindInternal, "failed to load bids", err)
		}

		var newLeader *domain.Bid
		for i := range others {
			b := &others[i]
			if b.ID == bid.ID {
				continue
			}
			if newLeader == nil {
				newLeader = b
				continue
			}
			if b.AmountCts > newLeader.AmountCts || (b.AmountCts == newLeader.AmountCts && b.PlacedAt.Before(newLeader.PlacedAt)) {
				newLeader = b
			}
		}

		var newWinnerID *string
		if newLeader != nil {
			newLeader.IsWinning = true
			if err := s.bids.Update(ctx, *newLeader); err != nil {
				return domain.Wrap(domain.KindInternal, "failed to update new leader", err)
			}
			auction.CurrentPriceCents = newLeader.AmountCts
			id := newLeader.UserID
			newWinnerID = &id
		} else {
			auction.CurrentPriceCents = auction.StartingPriceCents
			auction.BidCount = 0
		}

		if err := s.auctions.Update(ctx, auction); err != nil {
			return domain.Wrap(domain.KindInternal, "failed to update auction", err)
		}

		s.pub.publishAuctionScoped(ctx, bid.AuctionID, domain.EventBidRetracted, domain.BidRetractedPayload{
			AuctionID:         bid.AuctionID,
			BidID:             bid.ID,
			UserID:            bid.UserID,
			CurrentPriceCents: auction.CurrentPriceCents,
			NewWinnerID:       newWinnerID,
		})

		result = auction
		return nil
	})

	if retractErr != nil {
		return domain.Auction{}, retractErr
	}
	return result, nil
}

// CanRetract reports whether bidID could currently be retracted by userID,
// and a human-readable reason when it cannot.
func (s *RetractionService) CanRetract(ctx context.Context, bidID, userID string) (bool, string) {
	bid, err := s.bids.GetByID(ctx, bidID)
	if err != nil {
		return false, "bid not found"
	}
	if bid.UserID != userID {
		return false, "user does not own this bid"
	}
	if bid.Retracted {
		return false, "bid already retracted"
	}
	if !bid.IsWinning {
		return false, "only the currently winning bid may be retracted"
	}
	auction, err := s.auctions.GetByID(ctx, bid.AuctionID)
	if err != nil {
		return false, "auction not found"
	}
	if auction.Status == domain.AuctionStatusEnded || auction.Status == domain.AuctionStatusUnsold {
		return false, "auction has already ended"
	}
	if s.now().Sub(bid.PlacedAt) > retractionWindow {
		return false, "retraction window has closed"
	}
	return true, ""
}
