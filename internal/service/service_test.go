package service

import (
	"context"
	"log/slog"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/proxybid/auctionengine/internal/domain"
	"github.com/proxybid/auctionengine/internal/ladder"
	"github.com/proxybid/auctionengine/internal/store/memory"
)

type harness struct {
	store      *memory.Store
	locks      *memory.LockManager
	bus        *memory.SignalBus
	bidding    *BiddingService
	lifecycle  *LifecycleService
	retraction *RetractionService
	clock      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	locks := memory.NewLockManager()
	bus := memory.NewSignalBus()
	table := ladder.DefaultTable()

	h := &harness{
		store:      store,
		locks:      locks,
		bus:        bus,
		bidding:    NewBiddingService(store.Auctions(), store.Bids(), store.Users(), locks, table, bus, logger),
		lifecycle:  NewLifecycleService(store.Auctions(), store.Bids(), locks, bus, logger),
		retraction: NewRetractionService(store.Auctions(), store.Bids(), locks, bus, logger),
		clock:      time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}
	freeze := func() time.Time { return h.clock }
	h.bidding.now = freeze
	h.lifecycle.now = freeze
	h.retraction.now = freeze
	return h
}

func (h *harness) createUser(ctx context.Context, t *testing.T, id string) domain.User {
	t.Helper()
	u := domain.User{ID: id, Name: id, Email: id + "@example.com", CreatedAt: h.clock}
	if err := h.store.Users().Create(ctx, u); err != nil {
		t.Fatalf("create user %s: %v", id, err)
	}
	return u
}

func (h *harness) createActiveAuction(ctx context.Context, t *testing.T, startingPrice int64, reserve *int64) domain.Auction {
	t.Helper()
	h.createUser(ctx, t, "seller")
	a, err := h.lifecycle.CreateAuction(ctx, CreateAuctionParams{
		Title:                  "item",
		Description:            "desc",
		StartingPriceCents:     startingPrice,
		MinimumBidIncrementCts: 5,
		ReservePriceCents:      reserve,
		StartTime:              h.clock,
		EndTime:                h.clock.Add(24 * time.Hour),
		HasTimeLimit:           true,
		CreatedBy:              "seller",
	})
	if err != nil {
		t.Fatalf("create auction: %v", err)
	}
	if a.Status != domain.AuctionStatusActive {
		t.Fatalf("expected auction ACTIVE, got %s", a.Status)
	}
	return a
}

func (h *harness) bid(ctx context.Context, t *testing.T, auctionID, userID string, maxBid int64) PlaceBidResult {
	t.Helper()
	r, err := h.bidding.PlaceBid(ctx, PlaceBidParams{
		AuctionID:   auctionID,
		UserID:      userID,
		MaxBidCents: &maxBid,
	})
	if err != nil {
		t.Fatalf("place bid for %s: %v", userID, err)
	}
	return r
}

func TestScenarioS1StandardSecondPriceNoReserve(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.createActiveAuction(ctx, t, 10_000, nil)
	h.createUser(ctx, t, "A")
	h.createUser(ctx, t, "B")
	h.createUser(ctx, t, "C")

	h.clock = h.clock.Add(1 * time.Hour)
	h.bid(ctx, t, a.ID, "A", 20_000)
	h.clock = h.clock.Add(2 * time.Hour)
	h.bid(ctx, t, a.ID, "B", 12_000)
	h.clock = h.clock.Add(2 * time.Hour)
	result := h.bid(ctx, t, a.ID, "C", 30_000)

	if result.Auction.CurrentPriceCents != 21_000 {
		t.Errorf("currentPrice = %d, want 21000", result.Auction.CurrentPriceCents)
	}
	if !result.IsWinning {
		t.Error("expected C to be winning")
	}

	bids, _ := h.store.Bids().ListByAuction(ctx, a.ID, true, domain.ListOpts{})
	if len(bids) != 3 {
		t.Errorf("bid history length = %d, want 3", len(bids))
	}
}

func TestScenarioS2ReserveNotMet(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	reserve := int64(100_000)
	a := h.createActiveAuction(ctx, t, 1, &reserve)
	h.createUser(ctx, t, "A")
	h.createUser(ctx, t, "B")

	h.bid(ctx, t, a.ID, "A", 30_000)
	result := h.bid(ctx, t, a.ID, "B", 80_000)

	if result.Auction.CurrentPriceCents != 32_500 {
		t.Errorf("currentPrice = %d, want 32500", result.Auction.CurrentPriceCents)
	}

	ended, err := h.lifecycle.EndAuction(ctx, a.ID)
	if err != nil {
		t.Fatalf("end auction: %v", err)
	}
	if ended.Status != domain.AuctionStatusUnsold {
		t.Errorf("status = %s, want UNSOLD", ended.Status)
	}
	if ended.WinnerID != nil {
		t.Errorf("expected nil winner, got %v", *ended.WinnerID)
	}
}

func TestScenarioS3TieEarlierTimestampWins(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.createActiveAuction(ctx, t, 10_000, nil)
	h.createUser(ctx, t, "A")
	h.createUser(ctx, t, "B")

	r1 := h.bid(ctx, t, a.ID, "A", 20_000)
	r2 := h.bid(ctx, t, a.ID, "B", 20_000)

	if !r1.IsWinning {
		t.Error("expected A winning after first bid")
	}
	if r2.IsWinning {
		t.Error("expected B not winning on tie")
	}
	if r2.Auction.CurrentPriceCents != 11_000 {
		t.Errorf("currentPrice = %d, want 11000", r2.Auction.CurrentPriceCents)
	}
	if r2.Auction.WinnerID != nil {
		t.Error("auction should not yet have a winner before ending")
	}
}

func TestScenarioS4LeaderRaisesOwnMax(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.createActiveAuction(ctx, t, 10_000, nil)
	h.createUser(ctx, t, "A")
	h.createUser(ctx, t, "B")

	rA1 := h.bid(ctx, t, a.ID, "A", 60_000)
	if !rA1.IsWinning {
		t.Fatal("expected A winning as the only bidder")
	}

	rB := h.bid(ctx, t, a.ID, "B", 55_000)
	if rB.IsWinning {
		t.Error("expected A still winning, not B, since B's max is below A's")
	}

	rA2 := h.bid(ctx, t, a.ID, "A", 80_000)
	if !rA2.IsWinning {
		t.Error("expected A still winning after raising own max")
	}

	winningBid, err := h.store.Bids().GetWinning(ctx, a.ID)
	if err != nil {
		t.Fatalf("get winning bid: %v", err)
	}
	if winningBid.UserID != "A" {
		t.Errorf("winning user = %s, want A throughout", winningBid.UserID)
	}
}

func TestScenarioS5ReserveJumpClearsBuyNow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	reserve := int64(30_000)
	buyNow := int64(200_000)
	h.createUser(ctx, t, "seller")
	created, err := h.lifecycle.CreateAuction(ctx, CreateAuctionParams{
		Title: "item", Description: "desc",
		StartingPriceCents: 1_000, MinimumBidIncrementCts: 100,
		ReservePriceCents: &reserve, BuyNowPriceCents: &buyNow,
		StartTime: h.clock, EndTime: h.clock.Add(24 * time.Hour), HasTimeLimit: true,
		CreatedBy: "seller",
	})
	if err != nil {
		t.Fatalf("create auction: %v", err)
	}
	h.createUser(ctx, t, "A")
	h.createUser(ctx, t, "B")

	h.bid(ctx, t, created.ID, "A", 20_000)
	result := h.bid(ctx, t, created.ID, "B", 40_000)

	if result.Auction.CurrentPriceCents != 30_000 {
		t.Errorf("currentPrice = %d, want 30000 (reserve jump)", result.Auction.CurrentPriceCents)
	}
	if result.Auction.BuyNowPriceCents != nil {
		t.Error("expected buyNowPrice cleared once reserve is met")
	}
}

func TestScenarioS6RetractionRestoresPriorLeader(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.createActiveAuction(ctx, t, 10_000, nil)
	h.createUser(ctx, t, "A")
	h.createUser(ctx, t, "B")

	rA := h.bid(ctx, t, a.ID, "A", 20_000)
	if rA.Auction.CurrentPriceCents != 11_000 {
		t.Fatalf("currentPrice after A = %d, want 11000", rA.Auction.CurrentPriceCents)
	}
	rB := h.bid(ctx, t, a.ID, "B", 30_000)
	if rB.Auction.CurrentPriceCents != 21_000 {
		t.Fatalf("currentPrice after B = %d, want 21000", rB.Auction.CurrentPriceCents)
	}

	auction, err := h.retraction.Retract(ctx, RetractBidParams{
		BidID:  rB.Bid.ID,
		UserID: "B",
		Reason: domain.ReasonTypo,
	})
	if err != nil {
		t.Fatalf("retract: %v", err)
	}
	if auction.CurrentPriceCents != 11_000 {
		t.Errorf("currentPrice after retraction = %d, want 11000", auction.CurrentPriceCents)
	}

	winningBid, err := h.store.Bids().GetWinning(ctx, a.ID)
	if err != nil {
		t.Fatalf("get winning bid: %v", err)
	}
	if winningBid.UserID != "A" {
		t.Errorf("winning user = %s, want A", winningBid.UserID)
	}

	retracted, err := h.store.Bids().GetByID(ctx, rB.Bid.ID)
	if err != nil {
		t.Fatalf("get retracted bid: %v", err)
	}
	if !retracted.Retracted {
		t.Error("expected B's bid to be marked retracted")
	}
	if retracted.IsWinning {
		t.Error("a retracted bid must never be winning")
	}
}

func TestRetractionRejectsNonWinningBid(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.createActiveAuction(ctx, t, 10_000, nil)
	h.createUser(ctx, t, "A")
	h.createUser(ctx, t, "B")

	rA := h.bid(ctx, t, a.ID, "A", 60_000)
	rB := h.bid(ctx, t, a.ID, "B", 20_000)
	_ = rA

	_, err := h.retraction.Retract(ctx, RetractBidParams{BidID: rB.Bid.ID, UserID: "B", Reason: domain.ReasonTypo})
	if err == nil {
		t.Fatal("expected error retracting a non-winning bid")
	}
}

func TestRetractionWindowExpired(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.createActiveAuction(ctx, t, 10_000, nil)
	h.createUser(ctx, t, "A")

	r := h.bid(ctx, t, a.ID, "A", 20_000)
	h.clock = h.clock.Add(2 * time.Hour)

	_, err := h.retraction.Retract(ctx, RetractBidParams{BidID: r.Bid.ID, UserID: "A", Reason: domain.ReasonTypo})
	if err == nil {
		t.Fatal("expected retraction window expired error")
	}
}

func TestHardCloseRejectsBidAtExactEndTime(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.createActiveAuction(ctx, t, 10_000, nil)
	h.createUser(ctx, t, "A")

	h.clock = a.EndTime // endTime is exclusive

	amount := int64(20_000)
	_, err := h.bidding.PlaceBid(ctx, PlaceBidParams{AuctionID: a.ID, UserID: "A", MaxBidCents: &amount})
	if err == nil {
		t.Fatal("expected hard-close rejection at exact end time")
	}
}

func TestSellerCannotBidOnOwnAuction(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.createActiveAuction(ctx, t, 10_000, nil)

	amount := int64(20_000)
	_, err := h.bidding.PlaceBid(ctx, PlaceBidParams{AuctionID: a.ID, UserID: "seller", MaxBidCents: &amount})
	if err == nil {
		t.Fatal("expected error for seller bidding on own auction")
	}
}

func TestEndAuctionIsIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.createActiveAuction(ctx, t, 10_000, nil)

	first, err := h.lifecycle.EndAuction(ctx, a.ID)
	if err != nil {
		t.Fatalf("end auction: %v", err)
	}
	second, err := h.lifecycle.EndAuction(ctx, a.ID)
	if err != nil {
		t.Fatalf("end auction again: %v", err)
	}
	if first.Status != second.Status {
		t.Errorf("idempotence violated: %s != %s", first.Status, second.Status)
	}
}

func TestCancelAuctionRejectsOnceBidsExist(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	a := h.createActiveAuction(ctx, t, 10_000, nil)
	h.createUser(ctx, t, "A")
	h.bid(ctx, t, a.ID, "A", 20_000)

	if err := h.lifecycle.CancelAuction(ctx, a.ID); err == nil {
		t.Fatal("expected cancel to be rejected once bids exist")
	}
}

func TestPlaceBidUniqueID(t *testing.T) {
	if uuid.Nil.String() == uuid.New().String() {
		t.Fatal("uuid generation appears broken")
	}
}
