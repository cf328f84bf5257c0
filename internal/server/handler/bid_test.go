package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPlaceBidRequiresAuctionAndUser(t *testing.T) {
	mux, _, _ := testServer(t)
	req := httptest.NewRequest(http.MethodPost, "/bids", bytes.NewReader([]byte(`{"amount":100}`)))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d body %s", rec.Code, rec.Body.String())
	}
}

func TestPlaceBidRejectsOnPendingAuction(t *testing.T) {
	mux, _, _ := testServer(t)
	auction := createTestAuction(t, mux)
	id := auction["ID"].(string)

	body := map[string]any{"auctionId": id, "userId": "bidder-1", "amount": 1100}
	buf, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/bids", bytes.NewReader(buf))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected bid on a pending auction to be rejected, got %d body %s", rec.Code, rec.Body.String())
	}
}

func TestCanRetractAndRetractFlow(t *testing.T) {
	mux, _, _ := testServer(t)
	auction := createTestAuction(t, mux)
	id := auction["ID"].(string)

	startReq := httptest.NewRequest(http.MethodPost, "/auctions/"+id+"/start", nil)
	startRec := httptest.NewRecorder()
	mux.ServeHTTP(startRec, startReq)
	if startRec.Code != http.StatusOK {
		t.Fatalf("start auction: %d %s", startRec.Code, startRec.Body.String())
	}

	bidBody := map[string]any{"auctionId": id, "userId": "bidder-1", "amount": 1100}
	buf, _ := json.Marshal(bidBody)
	bidReq := httptest.NewRequest(http.MethodPost, "/bids", bytes.NewReader(buf))
	bidRec := httptest.NewRecorder()
	mux.ServeHTTP(bidRec, bidReq)
	if bidRec.Code != http.StatusCreated {
		t.Fatalf("place bid: %d %s", bidRec.Code, bidRec.Body.String())
	}
	placed := decodeSuccess(t, bidRec)
	bidObj, ok := placed["Bid"].(map[string]any)
	if !ok {
		t.Fatalf("expected Bid in place-bid response, got %v", placed)
	}
	bidID, ok := bidObj["ID"].(string)
	if !ok || bidID == "" {
		t.Fatalf("expected bid ID, got %v", bidObj)
	}

	canReq := httptest.NewRequest(http.MethodGet, "/bids/"+bidID+"/can-retract?userId=bidder-1", nil)
	canRec := httptest.NewRecorder()
	mux.ServeHTTP(canRec, canReq)
	if canRec.Code != http.StatusOK {
		t.Fatalf("can-retract: %d %s", canRec.Code, canRec.Body.String())
	}
	canData := decodeSuccess(t, canRec)
	if canData["canRetract"] != true {
		t.Fatalf("expected canRetract=true immediately after placing a bid, got %v", canData)
	}

	retractBody := map[string]any{"userId": "bidder-1", "reason": "TYPO"}
	retractBuf, _ := json.Marshal(retractBody)
	retractReq := httptest.NewRequest(http.MethodPost, "/bids/"+bidID+"/retract", bytes.NewReader(retractBuf))
	retractRec := httptest.NewRecorder()
	mux.ServeHTTP(retractRec, retractReq)
	if retractRec.Code != http.StatusOK {
		t.Fatalf("retract: %d %s", retractRec.Code, retractRec.Body.String())
	}

	// A second retraction of the same bid must fail.
	retractReq2 := httptest.NewRequest(http.MethodPost, "/bids/"+bidID+"/retract", bytes.NewReader(retractBuf))
	retractRec2 := httptest.NewRecorder()
	mux.ServeHTTP(retractRec2, retractReq2)
	if retractRec2.Code != http.StatusBadRequest {
		t.Fatalf("expected re-retraction to fail with 400, got %d body %s", retractRec2.Code, retractRec2.Body.String())
	}
}

func TestCanRetractMissingUserID(t *testing.T) {
	mux, _, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/bids/some-id/can-retract", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
