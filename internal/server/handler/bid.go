package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/proxybid/auctionengine/internal/domain"
	"github.com/proxybid/auctionengine/internal/service"
)

// Bidding defines the methods the bid handler requires from
// service.BiddingService.
type Bidding interface {
	PlaceBid(ctx context.Context, p service.PlaceBidParams) (service.PlaceBidResult, error)
}

// Retraction defines the methods the bid handler requires from
// service.RetractionService.
type Retraction interface {
	Retract(ctx context.Context, p service.RetractBidParams) (domain.Auction, error)
	CanRetract(ctx context.Context, bidID, userID string) (bool, string)
}

// BidHandler serves the /bids HTTP surface.
type BidHandler struct {
	bidding    Bidding
	retraction Retraction
	logger     *slog.Logger
}

// NewBidHandler creates a BidHandler with the given services and logger.
func NewBidHandler(bidding Bidding, retraction Retraction, logger *slog.Logger) *BidHandler {
	return &BidHandler{bidding: bidding, retraction: retraction, logger: logHandler(logger, "bid")}
}

type placeBidRequest struct {
	AuctionID      string `json:"auctionId"`
	UserID         string `json:"userId"`
	Amount         int64  `json:"amount"`
	MaxBid         *int64 `json:"maxBid,omitempty"`
	AutoBidStep    *int64 `json:"autoBidStep,omitempty"`
}

// PlaceBid places a bid, optionally a proxy bid with a private max.
// POST /bids
func (h *BidHandler) PlaceBid(w http.ResponseWriter, r *http.Request) {
	var req placeBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDomainError(w, r, h.logger, domain.NewError(domain.KindValidation, "invalid request body: "+err.Error()))
		return
	}
	if req.AuctionID == "" || req.UserID == "" {
		writeDomainError(w, r, h.logger, domain.NewError(domain.KindValidation, "auctionId and userId are required"))
		return
	}

	amount := req.Amount
	if req.MaxBid != nil {
		amount = *req.MaxBid
	}

	result, err := h.bidding.PlaceBid(r.Context(), service.PlaceBidParams{
		AuctionID:       req.AuctionID,
		UserID:          req.UserID,
		AmountCents:     amount,
		MaxBidCents:     req.MaxBid,
		CustomStepCents: req.AutoBidStep,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusCreated, result)
}

type retractBidRequest struct {
	UserID string                   `json:"userId"`
	Reason domain.RetractionReason `json:"reason"`
}

// RetractBid retracts the caller's currently winning bid, within the
// retraction window, for one of the enumerated reasons.
// POST /bids/{id}/retract
func (h *BidHandler) RetractBid(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")

	var req retractBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDomainError(w, r, h.logger, domain.NewError(domain.KindValidation, "invalid request body: "+err.Error()))
		return
	}
	if req.UserID == "" {
		writeDomainError(w, r, h.logger, domain.NewError(domain.KindValidation, "userId is required"))
		return
	}

	auction, err := h.retraction.Retract(r.Context(), service.RetractBidParams{
		BidID:  id,
		UserID: req.UserID,
		Reason: req.Reason,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err)
		return
	}
	writeSuccess(w, http.StatusOK, auction)
}

// CanRetract reports whether a bid is currently eligible for retraction by
// the requesting user.
// GET /bids/{id}/can-retract?userId=
func (h *BidHandler) CanRetract(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		writeDomainError(w, r, h.logger, domain.NewError(domain.KindValidation, "userId query parameter is required"))
		return
	}

	canRetract, reason := h.retraction.CanRetract(r.Context(), id, userID)
	resp := map[string]any{"canRetract": canRetract}
	if reason != "" {
		resp["reason"] = reason
	}
	writeSuccess(w, http.StatusOK, resp)
}
