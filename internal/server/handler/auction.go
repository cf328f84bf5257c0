package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/proxybid/auctionengine/internal/domain"
	"github.com/proxybid/auctionengine/internal/service"
)

// AuctionLifecycle defines the methods the auction handler requires from
// service.LifecycleService.
type AuctionLifecycle interface {
	CreateAuction(ctx context.Context, p service.CreateAuctionParams) (domain.Auction, error)
	StartAuction(ctx context.Context, id string) (domain.Auction, error)
	EndAuction(ctx context.Context, id string) (domain.Auction, error)
	SelectWinner(ctx context.Context, id, userID string) (domain.Auction, error)
	UpdateAuction(ctx context.Context, id string, p service.UpdateAuctionParams) (domain.Auction, error)
	CancelAuction(ctx context.Context, id string) error
}

// AuctionReader is the read-side store surface the handler queries directly
// for listing and detail views.
type AuctionReader interface {
	GetByID(ctx context.Context, id string) (domain.Auction, error)
	ListByStatus(ctx context.Context, status domain.AuctionStatus, opts domain.ListOpts) ([]domain.Auction, error)
	ListAll(ctx context.Context, opts domain.ListOpts) ([]domain.Auction, error)
}

// BidReader is the read-side store surface for per-auction bid listings.
type BidReader interface {
	ListByAuction(ctx context.Context, auctionID string, includeRetracted bool, opts domain.ListOpts) ([]domain.Bid, error)
	GetWinning(ctx context.Context, auctionID string) (domain.Bid, error)
}

// AuctionHandler serves the /auctions HTTP surface.
type AuctionHandler struct {
	lifecycle AuctionLifecycle
	auctions  AuctionReader
	bids      BidReader
	logger    *slog.Logger
}

// NewAuctionHandler creates an AuctionHandler with the given services and logger.
func NewAuctionHandler(lifecycle AuctionLifecycle, auctions AuctionReader, bids BidReader, logger *slog.Logger) *AuctionHandler {
	return &AuctionHandler{lifecycle: lifecycle, auctions: auctions, bids: bids, logger: logHandler(logger, "auction")}
}

type createAuctionRequest struct {
	Title                  string `json:"title"`
	Description            string `json:"description"`
	StartingPriceCents     int64  `json:"startingPriceCents"`
	MinimumBidIncrementCts int64  `json:"minimumBidIncrementCents"`
	ReservePriceCents      *int64 `json:"reservePriceCents,omitempty"`
	BuyNowPriceCents       *int64 `json:"buyNowPriceCents,omitempty"`
	StartTime              string `json:"startTime"`
	EndTime                string `json:"endTime,omitempty"`
	HasTimeLimit           bool   `json:"hasTimeLimit"`
	CreatedBy              string `json:"createdBy"`
}

// CreateAuction creates a new auction listing.
// POST /auctions
func (h *AuctionHandler) CreateAuction(w http.ResponseWriter, r *http.Request) {
	var req createAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDomainError(w, r, h.logger, domain.NewError(domain.KindValidation, "invalid request body: "+err.Error()))
		return
	}

	startTime, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeDomainError(w, r, h.logger, domain.NewError(domain.KindValidation, "invalid startTime: "+err.Error()))
		return
	}
	var endTime time.Time
	if req.HasTimeLimit {
		endTime, err = time.Parse(time.RFC3339, req.EndTime)
		if err != nil {
			writeDomainError(w, r, h.logger, domain.NewError(domain.KindValidation, "invalid endTime: "+err.Error()))
			return
		}
	}

	auction, err := h.lifecycle.CreateAuction(r.Context(), service.CreateAuctionParams{
		Title:                  req.Title,
		Description:            req.Description,
		StartingPriceCents:     req.StartingPriceCents,
		MinimumBidIncrementCts: req.MinimumBidIncrementCts,
		ReservePriceCents:      req.ReservePriceCents,
		BuyNowPriceCents:       req.BuyNowPriceCents,
		StartTime:              startTime,
		EndTime:                endTime,
		HasTimeLimit:           req.HasTimeLimit,
		CreatedBy:              req.CreatedBy,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, auction)
}

// ListAuctions lists auctions, optionally filtered by status and creator.
// GET /auctions?status=&createdBy=
func (h *AuctionHandler) ListAuctions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := parseListOpts(r)

	var auctions []domain.Auction
	var err error
	if status := q.Get("status"); status != "" {
		auctions, err = h.auctions.ListByStatus(r.Context(), domain.AuctionStatus(status), opts)
	} else {
		auctions, err = h.auctions.ListAll(r.Context(), opts)
	}
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}

	if createdBy := q.Get("createdBy"); createdBy != "" {
		filtered := make([]domain.Auction, 0, len(auctions))
		for _, a := range auctions {
			if a.CreatedBy == createdBy {
				filtered = append(filtered, a)
			}
		}
		auctions = filtered
	}
	if auctions == nil {
		auctions = []domain.Auction{}
	}
	writeSuccess(w, http.StatusOK, auctions)
}

// auctionDetail augments domain.Auction with fields the detail endpoint
// derives rather than stores.
type auctionDetail struct {
	domain.Auction
	TimeRemainingSeconds int64 `json:"timeRemainingSeconds"`
	MinimumBidCents      int64 `json:"minimumBidCents"`
	ReserveMet           bool  `json:"reserveMet"`
	IsEndingSoon         bool  `json:"isEndingSoon"`
}

const endingSoonThreshold = 5 * time.Minute

// GetAuction returns an auction's full detail, including derived fields.
// GET /auctions/{id}
func (h *AuctionHandler) GetAuction(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	auction, err := h.auctions.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, domain.Wrap(domain.KindNotFound, "auction not found", err))
		return
	}
	writeSuccess(w, http.StatusOK, buildAuctionDetail(auction, time.Now()))
}

func buildAuctionDetail(a domain.Auction, now time.Time) auctionDetail {
	var remaining int64
	var isEndingSoon bool
	if a.HasTimeLimit {
		d := a.EndTime.Sub(now)
		if d > 0 {
			remaining = int64(d.Seconds())
			isEndingSoon = d <= endingSoonThreshold
		}
	}
	return auctionDetail{
		Auction:              a,
		TimeRemainingSeconds: remaining,
		MinimumBidCents:      a.CurrentPriceCents + a.MinimumBidIncrementCts,
		ReserveMet:           a.ReserveMet(),
		IsEndingSoon:         isEndingSoon,
	}
}

type updateAuctionRequest struct {
	Title                  *string `json:"title"`
	Description            *string `json:"description"`
	StartingPriceCents     *int64  `json:"startingPriceCents"`
	MinimumBidIncrementCts *int64  `json:"minimumBidIncrementCents"`
	ReservePriceCents      **int64 `json:"reservePriceCents"`
	BuyNowPriceCents       **int64 `json:"buyNowPriceCents"`
	EndTime                *string `json:"endTime"`
}

// UpdateAuction edits a pending auction, or an active one with no bids yet.
// PUT /auctions/{id}
func (h *AuctionHandler) UpdateAuction(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req updateAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDomainError(w, r, h.logger, domain.NewError(domain.KindValidation, "invalid request body: "+err.Error()))
		return
	}

	p := service.UpdateAuctionParams{
		Title:                  req.Title,
		Description:            req.Description,
		StartingPriceCents:     req.StartingPriceCents,
		MinimumBidIncrementCts: req.MinimumBidIncrementCts,
		ReservePriceCents:      req.ReservePriceCents,
		BuyNowPriceCents:       req.BuyNowPriceCents,
	}
	if req.EndTime != nil {
		t, err := time.Parse(time.RFC3339, *req.EndTime)
		if err != nil {
			writeDomainError(w, r, h.logger, domain.NewError(domain.KindValidation, "invalid endTime: "+err.Error()))
			return
		}
		p.EndTime = &t
	}

	auction, err := h.lifecycle.UpdateAuction(r.Context(), id, p)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, auction)
}

// CancelAuction removes a bid-free, non-terminal auction.
// DELETE /auctions/{id}
func (h *AuctionHandler) CancelAuction(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if err := h.lifecycle.CancelAuction(r.Context(), id); err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, map[string]string{"id": id, "status": "cancelled"})
}

// StartAuction manually transitions a pending auction to active.
// POST /auctions/{id}/start
func (h *AuctionHandler) StartAuction(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	auction, err := h.lifecycle.StartAuction(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, auction)
}

// EndAuction manually closes an active auction.
// POST /auctions/{id}/end
func (h *AuctionHandler) EndAuction(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	auction, err := h.lifecycle.EndAuction(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, auction)
}

// SelectWinner resolves an active auction in favor of a specific bidder.
// POST /auctions/{id}/select-winner
func (h *AuctionHandler) SelectWinner(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	var req struct {
		WinnerID string `json:"winnerId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.WinnerID == "" {
		writeDomainError(w, r, h.logger, domain.NewError(domain.KindValidation, "winnerId is required"))
		return
	}
	auction, err := h.lifecycle.SelectWinner(r.Context(), id, req.WinnerID)
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, auction)
}

// ListAuctionBids lists an auction's non-retracted bids, highest amount first.
// GET /auctions/{id}/bids
func (h *AuctionHandler) ListAuctionBids(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	bids, err := h.bids.ListByAuction(r.Context(), id, false, parseListOpts(r))
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	if bids == nil {
		bids = []domain.Bid{}
	}
	writeSuccess(w, http.StatusOK, bids)
}

// WinningBid returns the auction's current winning bid, or null if none.
// GET /auctions/{id}/winning-bid
func (h *AuctionHandler) WinningBid(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	bid, err := h.bids.GetWinning(r.Context(), id)
	if err != nil {
		writeSuccess(w, http.StatusOK, nil)
		return
	}
	writeSuccess(w, http.StatusOK, bid)
}
