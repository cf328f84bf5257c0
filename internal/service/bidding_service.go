package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/proxybid/auctionengine/internal/domain"
	"github.com/proxybid/auctionengine/internal/ladder"
	"github.com/proxybid/auctionengine/internal/proxy"
)

// lockTimeout and lockMaxRetries are the defaults from the specification's
// KeyedLock contract (§4.2): 500ms timeout, 3 bounded retries with linear
// backoff.
const (
	lockTimeout    = 500 * time.Millisecond
	lockMaxRetries = 3
)

// PlaceBidParams is the BiddingService.PlaceBid request.
type PlaceBidParams struct {
	AuctionID      string
	UserID         string
	AmountCents    int64
	MaxBidCents    *int64
	CustomStepCents *int64
}

// PlaceBidResult is the BiddingService.PlaceBid response.
type PlaceBidResult struct {
	Bid       domain.Bid
	Auction   domain.Auction
	IsWinning bool
}

// BiddingService orchestrates bid placement: acquiring the per-auction lock,
// validating, running the proxy engine, persisting, and emitting events.
type BiddingService struct {
	auctions domain.AuctionStore
	bids     domain.BidStore
	users    domain.UserStore
	locks    domain.LockManager
	engine   *proxy.Engine
	ladder   *ladder.Table
	pub      *publisher
	logger   *slog.Logger
	now      func() time.Time
}

// NewBiddingService builds a BiddingService.
func NewBiddingService(auctions domain.AuctionStore, bids domain.BidStore, users domain.UserStore, locks domain.LockManager, table *ladder.Table, bus domain.SignalBus, logger *slog.Logger) *BiddingService {
	return &BiddingService{
		auctions: auctions,
		bids:     bids,
		users:    users,
		locks:    locks,
		engine:   proxy.NewEngine(table),
		ladder:   table,
		pub:      newPublisher(bus, logger),
		logger:   logger,
		now:      time.Now,
	}
}

// PlaceBid implements the algorithm in specification §4.5, executed under
// KeyedLock(auctionId).
func (s *BiddingService) PlaceBid(ctx context.Context, p PlaceBidParams) (PlaceBidResult, error) {
	var result PlaceBidResult

	err := withLock(ctx, s.locks, lockKeyForAuction(p.AuctionID), lockTimeout, lockMaxRetries, func(ctx context.Context) error {
		r, err := s.placeBidLocked(ctx, p)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return PlaceBidResult{}, err
	}

	return result, nil
}

func (s *BiddingService) placeBidLocked(ctx context.Context, p PlaceBidParams) (PlaceBidResult, error) {
	auction, err := s.auctions.GetByID(ctx, p.AuctionID)
	if err != nil {
		return PlaceBidResult{}, domain.Wrap(domain.KindNotFound, "auction not found", err)
	}

	if !canAcceptBids(auction, s.now()) {
		return PlaceBidResult{}, domain.NewError(domain.KindState, "auction is not accepting bids")
	}

	if p.UserID == auction.CreatedBy {
		return PlaceBidResult{}, domain.NewError(domain.KindForbidden, "seller cannot bid on their own auction")
	}
	if _, err := s.users.GetByID(ctx, p.UserID); err != nil {
		return PlaceBidResult{}, domain.Wrap(domain.KindNotFound, "user not found", err)
	}

	existingBids, err := s.bids.ListByAuction(ctx, p.AuctionID, false, domain.ListOpts{})
	if err != nil {
		return PlaceBidResult{}, domain.Wrap(domain.KindInternal, "failed to load bids", err)
	}

	var decision *proxy.Decision
	var userBidAmount int64

	if p.MaxBidCents != nil {
		competitors := competitorsExcluding(existingBids, p.UserID)
		d := s.engine.Decide(proxy.State{
			CurrentPriceCents: auction.CurrentPriceCents,
			ReservePriceCents: auction.ReservePriceCents,
			Competitors:       competitors,
		}, proxy.Incoming{
			UserID:          p.UserID,
			MaxBidCents:     *p.MaxBidCents,
			CustomStepCents: p.CustomStepCents,
		})
		decision = &d
		userBidAmount = d.UserBidAmountCents
	} else {
		userBidAmount = p.AmountCents
	}

	if err := validateBidAmount(userBidAmount, auction.CurrentPriceCents, s.ladder.Increment(auction.CurrentPriceCents)); err != nil {
		return PlaceBidResult{}, err
	}

	now := s.now()
	previousWinnerID := winnerUserID(existingBids)
	previousPriceCents := auction.CurrentPriceCents

	// Step 5: persist competitor auto-bids from the decision, in emission order.
	if decision != nil {
		for _, auto := range decision.CompetitorAutoBids {
			maxBid := auto.AmountCents
			autoBid := domain.Bid{
				ID:              uuid.New().String(),
				AuctionID:       p.AuctionID,
				UserID:          auto.UserID,
				AmountCts:       auto.AmountCents,
				MaxBidCts:       &maxBid,
				PlacedAt:        now,
				IsProxyBid:      true,
				IsMaxBidReached: auto.IsMaxBidReached,
				Message:         auto.Message,
			}
			if err := s.bids.Add(ctx, autoBid); err != nil {
				return PlaceBidResult{}, domain.Wrap(domain.KindInternal, "failed to persist competitor auto-bid", err)
			}
			auction.BidCount++

			if autoBid.AmountCts > auction.CurrentPriceCents {
				auction.CurrentPriceCents = autoBid.AmountCts
			}
			s.pub.publishAuctionScoped(ctx, p.AuctionID, domain.EventBidPlaced, domain.BidPlacedPayload{
				AuctionID:         p.AuctionID,
				BidID:             autoBid.ID,
				UserID:            autoBid.UserID,
				AmountCts:         autoBid.AmountCts,
				CurrentPriceCents: auction.CurrentPriceCents,
				BidCount:          auction.BidCount,
			})
		}
	}

	// Step 6: persist the user's bid and determine isWinning.
	isWinning := true
	for _, b := range existingBids {
		if b.Retracted || b.UserID == p.UserID {
			continue
		}
		if b.AmountCts > userBidAmount {
			isWinning = false
			break
		}
	}
	if decision != nil && !decision.WouldWin {
		isWinning = false
	}

	userBid := domain.Bid{
		ID:             uuid.New().String(),
		AuctionID:      p.AuctionID,
		UserID:         p.UserID,
		AmountCts:      userBidAmount,
		MaxBidCts:      p.MaxBidCents,
		AutoBidStepCts: p.CustomStepCents,
		PlacedAt:       now,
		IsWinning:      isWinning,
		IsProxyBid:     p.MaxBidCents != nil,
	}
	if decision != nil {
		userBid.IsMaxBidReached = decision.IsMaxBidReached
		userBid.Message = decision.Message
	}

	if err := s.bids.Add(ctx, userBid); err != nil {
		return PlaceBidResult{}, domain.Wrap(domain.KindInternal, "failed to persist bid", err)
	}
	auction.BidCount++

	if isWinning {
		if err := clearPriorWinners(ctx, s.bids, existingBids, userBid.ID); err != nil {
			return PlaceBidResult{}, domain.Wrap(domain.KindInternal, "failed to clear prior winners", err)
		}
		auction.CurrentPriceCents = userBidAmount
	}

	// Step 8: Buy-Now removal rule.
	if auction.BuyNowPriceCents != nil {
		if auction.ReservePriceCents == nil {
			if len(existingBids) == 0 {
				auction.BuyNowPriceCents = nil
			}
		} else if auction.ReserveMet() {
			auction.BuyNowPriceCents = nil
		}
	}

	if err := s.auctions.Update(ctx, auction); err != nil {
		return PlaceBidResult{}, domain.Wrap(domain.KindInternal, "failed to update auction", err)
	}

	// Step 9: emit BID_PLACED for the user's bid, and YOU_WERE_OUTBID if they
	// displaced a previous leader.
	s.pub.publishAuctionScoped(ctx, p.AuctionID, domain.EventBidPlaced, domain.BidPlacedPayload{
		AuctionID:         p.AuctionID,
		BidID:             userBid.ID,
		UserID:            userBid.UserID,
		AmountCts:         userBid.AmountCts,
		CurrentPriceCents: auction.CurrentPriceCents,
		BidCount:          auction.BidCount,
	})

	if isWinning && previousWinnerID != nil && *previousWinnerID != p.UserID {
		s.pub.publishAuctionOnly(ctx, p.AuctionID, domain.EventYouWereOutbid, domain.YouWereOutbidPayload{
			AuctionID:           p.AuctionID,
			TargetUserID:        *previousWinnerID,
			NewLeaderID:         p.UserID,
			PreviousAmountCents: previousPriceCents,
			NewAmountCents:      auction.CurrentPriceCents,
		})
	}

	return PlaceBidResult{Bid: userBid, Auction: auction, IsWinning: isWinning}, nil
}

func canAcceptBids(a domain.Auction, now time.Time) bool {
	return a.Status == domain.AuctionStatusActive && !now.Before(a.StartTime) && now.Before(a.EndTime)
}

func validateBidAmount(amount, currentPrice, increment int64) error {
	if amount <= 0 {
		return domain.NewError(domain.KindValidation, "bid amount must be positive")
	}
	if amount > domain.MaxBidAmountCents {
		return domain.NewError(domain.KindValidation, "bid amount exceeds maximum allowed")
	}
	minNext := currentPrice + increment
	if amount < minNext && amount != currentPrice {
		return domain.Wrap(domain.KindValidation, "bid is below the minimum next bid", domain.ErrBidTooLow)
	}
	return nil
}

func competitorsExcluding(bids []domain.Bid, userID string) []proxy.Competitor {
	var out []proxy.Competitor
	for _, b := range bids {
		if b.Retracted || b.UserID == userID || b.MaxBidCts == nil {
			continue
		}
		out = append(out, proxy.Competitor{
			UserID:         b.UserID,
			MaxBidCents:    *b.MaxBidCts,
			FirstTimestamp: b.PlacedAt,
		})
	}
	return out
}

func winnerUserID(bids []domain.Bid) *string {
	for _, b := range bids {
		if b.IsWinning && !b.Retracted {
			id := b.UserID
			return &id
		}
	}
	return nil
}

func clearPriorWinners(ctx context.Context, store domain.BidStore, existing []domain.Bid, exceptBidID string) error {
	for _, b := range existing {
		if b.IsWinning && b.ID != exceptBidID {
			b.IsWinning = false
			if err := store.Update(ctx, b); err != nil {
				return err
			}
		}
	}
	return nil
}

func lockKeyForAuction(auctionID string) string {
	return fmt.Sprintf("auction:%s", auctionID)
}
