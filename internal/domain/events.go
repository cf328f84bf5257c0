package domain

import "time"

// EventType names a real-time event published over the SignalBus and
// forwarded to WebSocket subscribers.
type EventType string

const (
	EventBidPlaced      EventType = "BID_PLACED"
	EventBidRetracted   EventType = "BID_RETRACTED"
	EventAuctionCreated EventType = "AUCTION_CREATED"
	EventAuctionStarted EventType = "AUCTION_STARTED"
	EventAuctionEnded   EventType = "AUCTION_ENDED"
	EventAuctionEndingSoon EventType = "AUCTION_ENDING_SOON"
	EventYouWereOutbid  EventType = "YOU_WERE_OUTBID"
	EventAuctionUpdated EventType = "AUCTION_UPDATED"
)

// Envelope wraps every published event with its type, target topic, and
// timestamp, ahead of a type-specific payload.
type Envelope struct {
	Type      EventType `json:"type"`
	Topic     string    `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// BidPlacedPayload is published whenever BiddingService accepts a bid.
type BidPlacedPayload struct {
	AuctionID         string `json:"auction_id"`
	BidID             string `json:"bid_id"`
	UserID            string `json:"user_id"`
	AmountCts         int64  `json:"amount_cts"`
	CurrentPriceCents int64  `json:"current_price_cents"`
	BidCount          int    `json:"bid_count"`
}

// BidRetractedPayload is published whenever RetractionService retracts a bid.
type BidRetractedPayload struct {
	AuctionID         string `json:"auction_id"`
	BidID             string `json:"bid_id"`
	UserID            string `json:"user_id"`
	CurrentPriceCents int64  `json:"current_price_cents"`
	NewWinnerID       *string `json:"new_winner_id"`
}

// AuctionLifecyclePayload is published for AUCTION_CREATED, AUCTION_STARTED,
// AUCTION_ENDED, and AUCTION_UPDATED.
type AuctionLifecyclePayload struct {
	AuctionID string        `json:"auction_id"`
	Status    AuctionStatus `json:"status"`
	WinnerID  *string       `json:"winner_id,omitempty"`
}

// AuctionEndingSoonPayload is published by the scheduler's throttled
// ending-soon sweep.
type AuctionEndingSoonPayload struct {
	AuctionID      string `json:"auction_id"`
	SecondsRemaining int64 `json:"seconds_remaining"`
}

// YouWereOutbidPayload is published on the auction's own topic when a
// competing bid displaces a previous leader. TargetUserID lets a client that
// has only subscribed to the auction topic filter client-side for the
// notification that concerns it; there is no separate per-user channel.
type YouWereOutbidPayload struct {
	AuctionID           string `json:"auction_id"`
	TargetUserID        string `json:"target_user_id"`
	NewLeaderID         string `json:"new_leader_id"`
	PreviousAmountCents int64  `json:"previous_amount_cents"`
	NewAmountCents      int64  `json:"new_amount_cents"`
}

// AuctionTopic returns the per-auction pub/sub channel and WebSocket topic
// name for auctionID.
func AuctionTopic(auctionID string) string {
	return "auction:" + auctionID
}

// GlobalTopic is the channel that receives a copy of every BID_PLACED,
// BID_RETRACTED and AUCTION_CREATED/STARTED/ENDED/UPDATED event;
// AUCTION_ENDING_SOON and YOU_WERE_OUTBID go to the auction topic only.
const GlobalTopic = "global"
