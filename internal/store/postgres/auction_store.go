package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/proxybid/auctionengine/internal/domain"
)

// AuctionStore implements domain.AuctionStore using PostgreSQL.
type AuctionStore struct {
	pool *pgxpool.Pool
}

// NewAuctionStore creates a new AuctionStore backed by the given connection pool.
func NewAuctionStore(pool *pgxpool.Pool) *AuctionStore {
	return &AuctionStore{pool: pool}
}

const auctionSelectCols = `id, title, description, starting_price_cents, current_price_cents,
	minimum_bid_increment_cents, reserve_price_cents, buy_now_price_cents,
	start_time, end_time, has_time_limit, status, created_by, winner_id,
	bid_count, created_at`

func (s *AuctionStore) Create(ctx context.Context, a domain.Auction) error {
	const query = `
		INSERT INTO auctions (
			id, title, description, starting_price_cents, current_price_cents,
			minimum_bid_increment_cents, reserve_price_cents, buy_now_price_cents,
			start_time, end_time, has_time_limit, status, created_by, winner_id,
			bid_count, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)`
	_, err := s.pool.Exec(ctx, query,
		a.ID, a.Title, a.Description, a.StartingPriceCents, a.CurrentPriceCents,
		a.MinimumBidIncrementCts, a.ReservePriceCents, a.BuyNowPriceCents,
		a.StartTime, a.EndTime, a.HasTimeLimit, string(a.Status), a.CreatedBy, a.WinnerID,
		a.BidCount, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create auction %s: %w", a.ID, err)
	}
	return nil
}

func (s *AuctionStore) Update(ctx context.Context, a domain.Auction) error {
	const query = `
		UPDATE auctions SET
			title = $2, description = $3, starting_price_cents = $4, current_price_cents = $5,
			minimum_bid_increment_cents = $6, reserve_price_cents = $7, buy_now_price_cents = $8,
			start_time = $9, end_time = $10, has_time_limit = $11, status = $12,
			winner_id = $13, bid_count = $14
		WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query,
		a.ID, a.Title, a.Description, a.StartingPriceCents, a.CurrentPriceCents,
		a.MinimumBidIncrementCts, a.ReservePriceCents, a.BuyNowPriceCents,
		a.StartTime, a.EndTime, a.HasTimeLimit, string(a.Status), a.WinnerID, a.BidCount,
	)
	if err != nil {
		return fmt.Errorf("postgres: update auction %s: %w", a.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanAuctionFromRow(scanner interface{ Scan(dest ...any) error }) (domain.Auction, error) {
	var a domain.Auction
	var status string
	err := scanner.Scan(
		&a.ID, &a.Title, &a.Description, &a.StartingPriceCents, &a.CurrentPriceCents,
		&a.MinimumBidIncrementCts, &a.ReservePriceCents, &a.BuyNowPriceCents,
		&a.StartTime, &a.EndTime, &a.HasTimeLimit, &status, &a.CreatedBy, &a.WinnerID,
		&a.BidCount, &a.CreatedAt,
	)
	if err != nil {
		return domain.Auction{}, err
	}
	a.Status = domain.AuctionStatus(status)
	return a, nil
}

func scanAuctionRows(rows pgx.Rows) ([]domain.Auction, error) {
	var out []domain.Auction
	for rows.Next() {
		a, err := scanAuctionFromRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *AuctionStore) GetByID(ctx context.Context, id string) (domain.Auction, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+auctionSelectCols+` FROM auctions WHERE id = $1`, id)
	a, err := scanAuctionFromRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Auction{}, domain.ErrNotFound
		}
		return domain.Auction{}, fmt.Errorf("postgres: get auction %s: %w", id, err)
	}
	return a, nil
}

func (s *AuctionStore) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM auctions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete auction %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *AuctionStore) ListByStatus(ctx context.Context, status domain.AuctionStatus, opts domain.ListOpts) ([]domain.Auction, error) {
	query := `SELECT ` + auctionSelectCols + ` FROM auctions WHERE status = $1`
	args := []any{string(status)}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND start_time >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND start_time <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}
	query += " ORDER BY start_time DESC"
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
		return nil, fmt.Errorf("postgres: list auctions by status: %w", err)
	}
	defer rows.Close()

	out, err := scanAuctionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan auctions by status: %w", err)
	}
	return out, nil
}

func (s *AuctionStore) ListAll(ctx context.Context, opts domain.ListOpts) ([]domain.Auction, error) {
	query := `SELECT ` + auctionSelectCols + ` FROM auctions`
	args := []any{}
	argIdx := 1

	var conds []string
	if opts.Since != nil {
		conds = append(conds, fmt.Sprintf("start_time >= $%d", argIdx))
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		conds = append(conds, fmt.Sprintf("start_time <= $%d", argIdx))
		args = append(args, *opts.Until)
		argIdx++
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY start_time DESC"
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
		return nil, fmt.Errorf("postgres: list all auctions: %w", err)
	}
	defer rows.Close()

	out, err := scanAuctionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan all auctions: %w", err)
	}
	return out, nil
}

var _ domain.AuctionStore = (*AuctionStore)(nil)
