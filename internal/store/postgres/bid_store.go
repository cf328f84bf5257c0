package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/proxybid/auctionengine/internal/domain"
)

// BidStore implements domain.BidStore using PostgreSQL.
type BidStore struct {
	pool *pgxpool.Pool
}

// NewBidStore creates a new BidStore backed by the given connection pool.
func NewBidStore(pool *pgxpool.Pool) *BidStore {
	return &BidStore{pool: pool}
}

const bidSelectCols = `id, auction_id, user_id, amount_cents, max_bid_cents, auto_bid_step_cents,
	placed_at, is_winning, is_proxy_bid, retracted, retracted_at, retraction_reason,
	message, is_max_bid_reached`

func (s *BidStore) Add(ctx context.Context, b domain.Bid) error {
	const query = `
		INSERT INTO bids (
			id, auction_id, user_id, amount_cents, max_bid_cents, auto_bid_step_cents,
			placed_at, is_winning, is_proxy_bid, retracted, retracted_at, retraction_reason,
			message, is_max_bid_reached
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)`
	_, err := s.pool.Exec(ctx, query,
		b.ID, b.AuctionID, b.UserID, b.AmountCts, b.MaxBidCts, b.AutoBidStepCts,
		b.PlacedAt, b.IsWinning, b.IsProxyBid, b.Retracted, b.RetractedAt, retractionReasonColumn(b.RetractionReason),
		b.Message, b.IsMaxBidReached,
	)
	if err != nil {
		return fmt.Errorf("postgres: add bid %s: %w", b.ID, err)
	}
	return nil
}

func (s *BidStore) Update(ctx context.Context, b domain.Bid) error {
	const query = `
		UPDATE bids SET
			amount_cents = $2, max_bid_cents = $3, auto_bid_step_cents = $4,
			is_winning = $5, is_proxy_bid = $6, retracted = $7, retracted_at = $8,
			retraction_reason = $9, message = $10, is_max_bid_reached = $11
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query,
		b.ID, b.AmountCts, b.MaxBidCts, b.AutoBidStepCts,
		b.IsWinning, b.IsProxyBid, b.Retracted, b.RetractedAt,
		retractionReasonColumn(b.RetractionReason), b.Message, b.IsMaxBidReached,
	)
	if err != nil {
		return fmt.Errorf("postgres: update bid %s: %w", b.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func retractionReasonColumn(r *domain.RetractionReason) *string {
	if r == nil {
		return nil
	}
	v := string(*r)
	return &v
}

func scanBidFromRow(scanner interface{ Scan(dest ...any) error }) (domain.Bid, error) {
	var b domain.Bid
	var reason *string
	err := scanner.Scan(
		&b.ID, &b.AuctionID, &b.UserID, &b.AmountCts, &b.MaxBidCts, &b.AutoBidStepCts,
		&b.PlacedAt, &b.IsWinning, &b.IsProxyBid, &b.Retracted, &b.RetractedAt, &reason,
		&b.Message, &b.IsMaxBidReached,
	)
	if err != nil {
		return domain.Bid{}, err
	}
	if reason != nil {
		rr := domain.RetractionReason(*reason)
		b.RetractionReason = &rr
	}
	return b, nil
}

func scanBidRows(rows pgx.Rows) ([]domain.Bid, error) {
	var out []domain.Bid
	for rows.Next() {
		b, err := scanBidFromRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *BidStore) GetByID(ctx context.Context, id string) (domain.Bid, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+bidSelectCols+` FROM bids WHERE id = $1`, id)
	b, err := scanBidFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bid{}, domain.ErrNotFound
		}
		return domain.Bid{}, fmt.Errorf("postgres: get bid %s: %w", id, err)
	}
	return b, nil
}

func (s *BidStore) ListByAuction(ctx context.Context, auctionID string, includeRetracted bool, opts domain.ListOpts) ([]domain.Bid, error) {
	query := `SELECT ` + bidSelectCols + ` FROM bids WHERE auction_id = $1`
	if !includeRetracted {
		query += ` AND retracted = false`
	}
	query += ` ORDER BY amount_cents DESC, placed_at ASC`
	args := []any{auctionID}
	argIdx := 2
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bids by auction: %w", err)
	}
	defer rows.Close()

	out, err := scanBidRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan bids by auction: %w", err)
	}
	return out, nil
}

func (s *BidStore) ListByUser(ctx context.Context, userID string, opts domain.ListOpts) ([]domain.Bid, error) {
	query := `SELECT ` + bidSelectCols + ` FROM bids WHERE user_id = $1 ORDER BY placed_at DESC`
	args := []any{userID}
	argIdx := 2
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list bids by user: %w", err)
	}
	defer rows.Close()

	out, err := scanBidRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan bids by user: %w", err)
	}
	return out, nil
}

func (s *BidStore) GetWinning(ctx context.Context, auctionID string) (domain.Bid, error) {
	const query = `SELECT ` + bidSelectCols + ` FROM bids WHERE auction_id = $1 AND is_winning AND NOT retracted LIMIT 1`
	row := s.pool.QueryRow(ctx, query, auctionID)
	b, err := scanBidFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bid{}, domain.ErrNotFound
		}
		return domain.Bid{}, fmt.Errorf("postgres: get winning bid for auction %s: %w", auctionID, err)
	}
	return b, nil
}

var _ domain.BidStore = (*BidStore)(nil)
