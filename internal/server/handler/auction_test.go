package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/proxybid/auctionengine/internal/domain"
	"github.com/proxybid/auctionengine/internal/ladder"
	"github.com/proxybid/auctionengine/internal/service"
	"github.com/proxybid/auctionengine/internal/store/memory"
)

// testServer wires the auction and bid handlers onto a bare ServeMux using
// the same route patterns as server.NewServer, so PathValue-based path
// params resolve the same way they do in production.
func testServer(t *testing.T) (*http.ServeMux, domain.AuctionStore, domain.UserStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	locks := memory.NewLockManager()
	bus := memory.NewSignalBus()
	table := ladder.DefaultTable()

	lifecycle := service.NewLifecycleService(store.Auctions(), store.Bids(), locks, bus, logger)
	bidding := service.NewBiddingService(store.Auctions(), store.Bids(), store.Users(), locks, table, bus, logger)
	retraction := service.NewRetractionService(store.Auctions(), store.Bids(), locks, bus, logger)

	auctionHandler := NewAuctionHandler(lifecycle, store.Auctions(), store.Bids(), logger)
	bidHandler := NewBidHandler(bidding, retraction, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auctions", auctionHandler.CreateAuction)
	mux.HandleFunc("GET /auctions", auctionHandler.ListAuctions)
	mux.HandleFunc("GET /auctions/{id}", auctionHandler.GetAuction)
	mux.HandleFunc("PUT /auctions/{id}", auctionHandler.UpdateAuction)
	mux.HandleFunc("DELETE /auctions/{id}", auctionHandler.CancelAuction)
	mux.HandleFunc("POST /auctions/{id}/start", auctionHandler.StartAuction)
	mux.HandleFunc("POST /auctions/{id}/end", auctionHandler.EndAuction)
	mux.HandleFunc("POST /auctions/{id}/select-winner", auctionHandler.SelectWinner)
	mux.HandleFunc("GET /auctions/{id}/bids", auctionHandler.ListAuctionBids)
	mux.HandleFunc("GET /auctions/{id}/winning-bid", auctionHandler.WinningBid)
	mux.HandleFunc("POST /bids", bidHandler.PlaceBid)
	mux.HandleFunc("POST /bids/{id}/retract", bidHandler.RetractBid)
	mux.HandleFunc("GET /bids/{id}/can-retract", bidHandler.CanRetract)

	if err := store.Users().Create(context.Background(), domain.User{
		ID: "seller-1", Name: "Seller", Email: "seller@example.com", CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("seed seller: %v", err)
	}
	if err := store.Users().Create(context.Background(), domain.User{
		ID: "bidder-1", Name: "Bidder", Email: "bidder@example.com", CreatedAt: time.Now(),
	}); err != nil {
		t.Fatalf("seed bidder: %v", err)
	}

	return mux, store.Auctions(), store.Users()
}

func decodeSuccess(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env successEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %s: %v", rec.Body.String(), err)
	}
	if !env.Success {
		t.Fatalf("expected success envelope, got %s", rec.Body.String())
	}
	data, ok := env.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %T", env.Data)
	}
	return data
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorEnvelope {
	t.Helper()
	var env errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response %s: %v", rec.Body.String(), err)
	}
	if env.Success {
		t.Fatalf("expected failure envelope, got %s", rec.Body.String())
	}
	return env
}

func createTestAuction(t *testing.T, mux *http.ServeMux) map[string]any {
	t.Helper()
	body := map[string]any{
		"title":                    "Vintage Camera",
		"description":              "Works great",
		"startingPriceCents":       1000,
		"minimumBidIncrementCents": 100,
		"startTime":                time.Now().Add(-time.Minute).Format(time.RFC3339),
		"hasTimeLimit":             false,
		"createdBy":                "seller-1",
	}
	buf, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/auctions", bytes.NewReader(buf))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create auction: status %d body %s", rec.Code, rec.Body.String())
	}
	return decodeSuccess(t, rec)
}

func TestCreateAuction(t *testing.T) {
	mux, _, _ := testServer(t)
	auction := createTestAuction(t, mux)
	if auction["Title"] != "Vintage Camera" {
		t.Fatalf("unexpected title: %v", auction["Title"])
	}
	if auction["Status"] != string(domain.AuctionStatusPending) {
		t.Fatalf("expected pending status, got %v", auction["Status"])
	}
}

func TestCreateAuctionInvalidStartTime(t *testing.T) {
	mux, _, _ := testServer(t)
	body := map[string]any{
		"title":                    "Bad Auction",
		"startingPriceCents":       1000,
		"minimumBidIncrementCents": 100,
		"startTime":                "not-a-time",
		"createdBy":                "seller-1",
	}
	buf, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/auctions", bytes.NewReader(buf))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	env := decodeError(t, rec)
	if env.Error.Code != string(domain.KindValidation) {
		t.Fatalf("expected validation error, got %s", env.Error.Code)
	}
}

func TestGetAuctionNotFound(t *testing.T) {
	mux, _, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/auctions/does-not-exist", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d body %s", rec.Code, rec.Body.String())
	}
}

func TestStartAndEndAuctionLifecycle(t *testing.T) {
	mux, _, _ := testServer(t)
	auction := createTestAuction(t, mux)
	id := auction["ID"].(string)

	req := httptest.NewRequest(http.MethodPost, "/auctions/"+id+"/start", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("start auction: status %d body %s", rec.Code, rec.Body.String())
	}
	started := decodeSuccess(t, rec)
	if started["Status"] != string(domain.AuctionStatusActive) {
		t.Fatalf("expected active status, got %v", started["Status"])
	}

	req = httptest.NewRequest(http.MethodPost, "/auctions/"+id+"/end", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("end auction: status %d body %s", rec.Code, rec.Body.String())
	}
	ended := decodeSuccess(t, rec)
	if ended["Status"] != string(domain.AuctionStatusUnsold) {
		t.Fatalf("expected unsold status for a no-bid auction, got %v", ended["Status"])
	}
}

func TestListAuctionsFilterByStatus(t *testing.T) {
	mux, _, _ := testServer(t)
	createTestAuction(t, mux)

	req := httptest.NewRequest(http.MethodGet, "/auctions?status=pending", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list auctions: status %d body %s", rec.Code, rec.Body.String())
	}
	var env struct {
		Success bool
		Data    []map[string]any
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(env.Data) != 1 {
		t.Fatalf("expected 1 pending auction, got %d", len(env.Data))
	}
}

func TestPlaceBidAndWinningBid(t *testing.T) {
	mux, _, _ := testServer(t)
	auction := createTestAuction(t, mux)
	id := auction["ID"].(string)

	req := httptest.NewRequest(http.MethodPost, "/auctions/"+id+"/start", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("start auction: %d %s", rec.Code, rec.Body.String())
	}

	bidBody := map[string]any{
		"auctionId": id,
		"userId":    "bidder-1",
		"amount":    1100,
	}
	buf, _ := json.Marshal(bidBody)
	req = httptest.NewRequest(http.MethodPost, "/bids", bytes.NewReader(buf))
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("place bid: status %d body %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/auctions/"+id+"/winning-bid", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("winning bid: status %d body %s", rec.Code, rec.Body.String())
	}
	var env successEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Data == nil {
		t.Fatalf("expected a winning bid, got null")
	}
}

func TestSelectWinnerMissingWinnerID(t *testing.T) {
	mux, _, _ := testServer(t)
	auction := createTestAuction(t, mux)
	id := auction["ID"].(string)

	req := httptest.NewRequest(http.MethodPost, "/auctions/"+id+"/select-winner", bytes.NewReader([]byte(`{}`)))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body %s", rec.Code, rec.Body.String())
	}
}

func TestCancelAuction(t *testing.T) {
	mux, _, _ := testServer(t)
	auction := createTestAuction(t, mux)
	id := auction["ID"].(string)

	req := httptest.NewRequest(http.MethodDelete, "/auctions/"+id, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel auction: status %d body %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/auctions/"+id, nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected cancelled auction to be gone, got %d", rec.Code)
	}
}
