package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/proxybid/auctionengine/internal/domain"
)

const maxTitleLength = 200

// defaultHorizon is the end-time horizon applied when an auction has no
// time limit.
const defaultHorizon = domain.NoTimeLimitHorizon

// CreateAuctionParams is the LifecycleService.CreateAuction request.
type CreateAuctionParams struct {
	Title                  string
	Description            string
	StartingPriceCents     int64
	MinimumBidIncrementCts int64
	ReservePriceCents      *int64
	BuyNowPriceCents       *int64
	StartTime              time.Time
	EndTime                time.Time
	HasTimeLimit           bool
	CreatedBy              string
}

// LifecycleService implements auction creation, manual start/end, manual
// winner selection, and edit/cancel invariants.
type LifecycleService struct {
	auctions domain.AuctionStore
	bids     domain.BidStore
	locks    domain.LockManager
	pub      *publisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewLifecycleService builds a LifecycleService.
func NewLifecycleService(auctions domain.AuctionStore, bids domain.BidStore, locks domain.LockManager, bus domain.SignalBus, logger *slog.Logger) *LifecycleService {
	return &LifecycleService{
		auctions: auctions,
		bids:     bids,
		locks:    locks,
		pub:      newPublisher(bus, logger),
		logger:   logger,
		now:      time.Now,
	}
}

// CreateAuction validates params and persists a new PENDING or ACTIVE
// auction, per specification §4.6.
func (s *LifecycleService) CreateAuction(ctx context.Context, p CreateAuctionParams) (domain.Auction, error) {
	if err := validateCreateParams(p, s.now()); err != nil {
		return domain.Auction{}, err
	}

	endTime := p.EndTime
	if !p.HasTimeLimit {
		endTime = p.StartTime.Add(defaultHorizon)
	}

	now := s.now()
	status := domain.AuctionStatusPending
	if !now.Before(p.StartTime) {
		status = domain.AuctionStatusActive
	}

	auction := domain.Auction{
		ID:                     uuid.New().String(),
		Title:                  p.Title,
		Description:            p.Description,
		StartingPriceCents:     p.StartingPriceCents,
		CurrentPriceCents:      p.StartingPriceCents,
		MinimumBidIncrementCts: p.MinimumBidIncrementCts,
		ReservePriceCents:      p.ReservePriceCents,
		BuyNowPriceCents:       p.BuyNowPriceCents,
		StartTime:              p.StartTime,
		EndTime:                endTime,
		HasTimeLimit:           p.HasTimeLimit,
		Status:                 status,
		CreatedBy:              p.CreatedBy,
		BidCount:               0,
		CreatedAt:              now,
	}

	if err := s.auctions.Create(ctx, auction); err != nil {
		return domain.Auction{}, domain.Wrap(domain.KindInternal, "failed to create auction", err)
	}

	s.pub.publishAuctionScoped(ctx, auction.ID, domain.EventAuctionCreated, domain.AuctionLifecyclePayload{
		AuctionID: auction.ID,
		Status:    auction.Status,
	})

	return auction, nil
}

func validateCreateParams(p CreateAuctionParams, now time.Time) error {
	if p.Title == "" || len(p.Title) > maxTitleLength {
		return domain.NewError(domain.KindValidation, "title must be non-empty and at most 200 characters")
	}
	if p.Description == "" {
		return domain.NewError(domain.KindValidation, "description must be non-empty")
	}
	if p.StartingPriceCents < 0 {
		return domain.NewError(domain.KindValidation, "starting price must be non-negative")
	}
	if p.MinimumBidIncrementCts <= 0 {
		return domain.NewError(domain.KindValidation, "minimum bid increment must be positive")
	}
	if p.StartTime.Before(now.Add(-5 * time.Second)) {
		return domain.NewError(domain.KindValidation, "start time must not be in the past")
	}
	if p.HasTimeLimit && !p.EndTime.After(p.StartTime) {
		return domain.NewError(domain.KindValidation, "end time must be after start time")
	}
	if err := validateReserveOrdering(p.StartingPriceCents, p.ReservePriceCents, p.BuyNowPriceCents); err != nil {
		return err
	}
	return nil
}

func validateReserveOrdering(starting int64, reserve, buyNow *int64) error {
	if reserve != nil && starting > *reserve {
		return domain.NewError(domain.KindValidation, "starting price must not exceed reserve price")
	}
	if reserve != nil && buyNow != nil && *reserve >= *buyNow {
		return domain.NewError(domain.KindValidation, "reserve price must be less than buy-now price")
	}
	if reserve == nil && buyNow != nil && starting > *buyNow {
		return domain.NewError(domain.KindValidation, "starting price must not exceed buy-now price")
	}
	return nil
}

// StartAuction manually transitions a PENDING auction to ACTIVE.
func (s *LifecycleService) StartAuction(ctx context.Context, id string) (domain.Auction, error) {
	var result domain.Auction
	err := withLock(ctx, s.locks, lockKeyForAuction(id), lockTimeout, lockMaxRetries, func(ctx context.Context) error {
		auction, err := s.auctions.GetByID(ctx, id)
		if err != nil {
			return domain.Wrap(domain.KindNotFound, "auction not found", err)
		}
		if auction.Status != domain.AuctionStatusPending || s.now().Before(auction.StartTime) {
			return domain.NewError(domain.KindState, "auction cannot be started")
		}
		auction.Status = domain.AuctionStatusActive
		if err := s.auctions.Update(ctx, auction); err != nil {
			return domain.Wrap(domain.KindInternal, "failed to update auction", err)
		}
		s.pub.publishAuctionScoped(ctx, id, domain.EventAuctionStarted, domain.AuctionLifecyclePayload{AuctionID: id, Status: auction.Status})
		result = auction
		return nil
	})
	return result, err
}

// EndAuction transitions an ACTIVE auction to ENDED (if the reserve is met
// and at least one non-retracted bid exists) or UNSOLD otherwise. It is
// idempotent on already-terminal auctions.
func (s *LifecycleService) EndAuction(ctx context.Context, id string) (domain.Auction, error) {
	var result domain.Auction
	err := withLock(ctx, s.locks, lockKeyForAuction(id), lockTimeout, lockMaxRetries, func(ctx context.Context) error {
		auction, err := s.auctions.GetByID(ctx, id)
		if err != nil {
			return domain.Wrap(domain.KindNotFound, "auction not found", err)
		}

		if auction.Status == domain.AuctionStatusEnded || auction.Status == domain.AuctionStatusUnsold {
			result = auction
			return nil
		}
		if auction.Status != domain.AuctionStatusActive {
			return domain.NewError(domain.KindState, "auction is not active")
		}

		bids, err := s.bids.ListByAuction(ctx, id, false, domain.ListOpts{})
		if err != nil {
			return domain.Wrap(domain.KindInternal, "failed to load bids", err)
		}

		if auction.ReserveMet() && len(bids) > 0 {
			auction.Status = domain.AuctionStatusEnded
			winnerID := winnerUserID(bids)
			auction.WinnerID = winnerID
		} else {
			auction.Status = domain.AuctionStatusUnsold
			auction.WinnerID = nil
		}

		if err := s.auctions.Update(ctx, auction); err != nil {
			return domain.Wrap(domain.KindInternal, "failed to update auction", err)
		}

		s.pub.publishAuctionScoped(ctx, id, domain.EventAuctionEnded, domain.AuctionLifecyclePayload{
			AuctionID: id,
			Status:    auction.Status,
			WinnerID:  auction.WinnerID,
		})
		result = auction
		return nil
	})
	return result, err
}

// SelectWinner manually resolves an ACTIVE auction in favor of userID, who
// must hold a non-retracted bid.
func (s *LifecycleService) SelectWinner(ctx context.Context, id, userID string) (domain.Auction, error) {
	var result domain.Auction
	err := withLock(ctx, s.locks, lockKeyForAuction(id), lockTimeout, lockMaxRetries, func(ctx context.Context) error {
		auction, err := s.auctions.GetByID(ctx, id)
		if err != nil {
			return domain.Wrap(domain.KindNotFound, "auction not found", err)
		}
		if auction.Status != domain.AuctionStatusActive {
			return domain.NewError(domain.KindState, "auction is not active")
		}

		bids, err := s.bids.ListByAuction(ctx, id, false, domain.ListOpts{})
		if err != nil {
			return domain.Wrap(domain.KindInternal, "failed to load bids", err)
		}

		var winningBid *domain.Bid
		for i := range bids {
			if bids[i].UserID == userID {
				winningBid = &bids[i]
				break
			}
		}
		if winningBid == nil {
			return domain.NewError(domain.KindValidation, "user has no eligible bid on this auction")
		}

		auction.Status = domain.AuctionStatusEnded
		auction.WinnerID = &userID
		if winningBid.AmountCts > auction.CurrentPriceCents {
			auction.CurrentPriceCents = winningBid.AmountCts
		}

		if err := s.auctions.Update(ctx, auction); err != nil {
			return domain.Wrap(domain.KindInternal, "failed to update auction", err)
		}

		s.pub.publishAuctionScoped(ctx, id, domain.EventAuctionEnded, domain.AuctionLifecyclePayload{
			AuctionID: id,
			Status:    auction.Status,
			WinnerID:  auction.WinnerID,
		})
		result = auction
		return nil
	})
	return result, err
}

// UpdateAuctionParams carries the mutable fields LifecycleService.UpdateAuction
// may change.
type UpdateAuctionParams struct {
	Title                  *string
	Description            *string
	StartingPriceCents     *int64
	MinimumBidIncrementCts *int64
	ReservePriceCents      **int64
	BuyNowPriceCents       **int64
	EndTime                *time.Time
}

// UpdateAuction edits an auction, permitted only if it is PENDING, or ACTIVE
// with zero bids so far.
func (s *LifecycleService) UpdateAuction(ctx context.Context, id string, p UpdateAuctionParams) (domain.Auction, error) {
	var result domain.Auction
	err := withLock(ctx, s.locks, lockKeyForAuction(id), lockTimeout, lockMaxRetries, func(ctx context.Context) error {
		auction, err := s.auctions.GetByID(ctx, id)
		if err != nil {
			return domain.Wrap(domain.KindNotFound, "auction not found", err)
		}
		if !(auction.Status == domain.AuctionStatusPending || (auction.Status == domain.AuctionStatusActive && auction.BidCount == 0)) {
			return domain.NewError(domain.KindState, "auction can no longer be edited")
		}

		if p.Title != nil {
			auction.Title = *p.Title
		}
		if p.Description != nil {
			auction.Description = *p.Description
		}
		if p.MinimumBidIncrementCts != nil {
			auction.MinimumBidIncrementCts = *p.MinimumBidIncrementCts
		}
		if p.ReservePriceCents != nil {
			auction.ReservePriceCents = *p.ReservePriceCents
		}
		if p.BuyNowPriceCents != nil {
			auction.BuyNowPriceCents = *p.BuyNowPriceCents
		}
		if p.EndTime != nil {
			auction.EndTime = *p.EndTime
		}
		if p.StartingPriceCents != nil {
			auction.StartingPriceCents = *p.StartingPriceCents
			auction.CurrentPriceCents = *p.StartingPriceCents
		}

		if err := validateReserveOrdering(auction.StartingPriceCents, auction.ReservePriceCents, auction.BuyNowPriceCents); err != nil {
			return err
		}
		if auction.Title == "" || len(auction.Title) > maxTitleLength {
			return domain.NewError(domain.KindValidation, "title must be non-empty and at most 200 characters")
		}
		if auction.Description == "" {
			return domain.NewError(domain.KindValidation, "description must be non-empty")
		}

		if err := s.auctions.Update(ctx, auction); err != nil {
			return domain.Wrap(domain.KindInternal, "failed to update auction", err)
		}
		s.pub.publishAuctionScoped(ctx, id, domain.EventAuctionUpdated, domain.AuctionLifecyclePayload{AuctionID: id, Status: auction.Status})
		result = auction
		return nil
	})
	return result, err
}

// CancelAuction deletes an auction record, permitted only with zero bids and
// a non-terminal status.
func (s *LifecycleService) CancelAuction(ctx context.Context, id string) error {
	return withLock(ctx, s.locks, lockKeyForAuction(id), lockTimeout, lockMaxRetries, func(ctx context.Context) error {
		auction, err := s.auctions.GetByID(ctx, id)
		if err != nil {
			return domain.Wrap(domain.KindNotFound, "auction not found", err)
		}
		if auction.BidCount != 0 {
			return domain.NewError(domain.KindState, "auction cannot be cancelled once it has bids")
		}
		if auction.Status == domain.AuctionStatusEnded || auction.Status == domain.AuctionStatusUnsold {
			return domain.NewError(domain.KindState, "auction has already ended")
		}
		if err := s.auctions.Delete(ctx, id); err != nil {
			return domain.Wrap(domain.KindInternal, "failed to delete auction", err)
		}
		return nil
	})
}

// CanAcceptBids reports whether a is currently accepting bids.
func (s *LifecycleService) CanAcceptBids(a domain.Auction) bool {
	return canAcceptBids(a, s.now())
}

// ListByStatus exposes the underlying store listing for scheduler sweeps.
func (s *LifecycleService) ListByStatus(ctx context.Context, status domain.AuctionStatus) ([]domain.Auction, error) {
	auctions, err := s.auctions.ListByStatus(ctx, status, domain.ListOpts{})
	if err != nil {
		return nil, domain.Wrap(domain.KindInternal, "failed to list auctions", err)
	}
	return auctions, nil
}

// EmitEndingSoon publishes AUCTION_ENDING_SOON to the auction's topic. It is
// exported for the scheduler's throttled sweep, which has no other way to
// reach the auction-scoped publisher.
func (s *LifecycleService) EmitEndingSoon(ctx context.Context, auctionID string, secondsRemaining int64) {
	s.pub.publishAuctionOnly(ctx, auctionID, domain.EventAuctionEndingSoon, domain.AuctionEndingSoonPayload{
		AuctionID:        auctionID,
		SecondsRemaining: secondsRemaining,
	})
}
