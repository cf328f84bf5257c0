package domain

import "time"

// User is a bidder or seller in the auction engine. The engine carries no
// authentication of its own (spec.md §1 Non-goals); User records identity
// for ownership checks, outbid notification, and audit only.
type User struct {
	ID        string
	Name      string
	Email     string
	CreatedAt time.Time
}
