package clickhouse

import (
	"context"
	"fmt"
	"time"

	"b3-genetic-lab/internal/domain"
	"b3-genetic-lab/internal/storage"
)

// PriceStore implements storage.PriceStore using ClickHouse.
type PriceStore struct {
	conn *Conn
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(conn *Conn) *PriceStore {
	return &PriceStore{conn: conn}
}

// Compile-time interface check.
var _ storage.PriceStore = (*PriceStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on duplicate (date, symbol).
// MergeTree does not enforce uniqueness, so duplicates are checked explicitly.
func (s *PriceStore) InsertBulk(ctx context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	type key struct {
		date   time.Time
		symbol string
	}
	seen := make(map[key]struct{}, len(points))
	for _, p := range points {
		if p == nil || p.Symbol == "" || p.Date.IsZero() {
			return storage.ErrInvalidInput
		}
		k := key{domain.TruncateDate(p.Date), p.Symbol}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for k := range seen {
		exists, err := s.exists(ctx, k.date, k.symbol)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `INSERT INTO daily_prices (date, symbol, close)`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		var closePrice *float64
		if p.HasClose() {
			v := *p.Close
			closePrice = &v
		}
		if err := batch.Append(domain.TruncateDate(p.Date), p.Symbol, closePrice); err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetAll retrieves all points, ordered by date ASC, symbol ASC.
func (s *PriceStore) GetAll(ctx context.Context) ([]*domain.PricePoint, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT date, symbol, close
		FROM daily_prices
		ORDER BY date ASC, symbol ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query all prices: %w", err)
	}
	defer rows.Close()

	return scanPrices(rows)
}

// GetByDateRange retrieves points with date within [from, to] (inclusive).
func (s *PriceStore) GetByDateRange(ctx context.Context, from, to time.Time) ([]*domain.PricePoint, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT date, symbol, close
		FROM daily_prices
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC, symbol ASC
	`, domain.TruncateDate(from), domain.TruncateDate(to))
	if err != nil {
		return nil, fmt.Errorf("query by date range: %w", err)
	}
	defer rows.Close()

	return scanPrices(rows)
}

// GetGlobalDateRange returns min and max dates across all data.
func (s *PriceStore) GetGlobalDateRange(ctx context.Context) (from, to time.Time, err error) {
	var count uint64
	err = s.conn.QueryRow(ctx, `
		SELECT count(*), min(date), max(date) FROM daily_prices
	`).Scan(&count, &from, &to)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("query date range: %w", err)
	}
	if count == 0 {
		return time.Time{}, time.Time{}, nil
	}
	return domain.TruncateDate(from), domain.TruncateDate(to), nil
}

func (s *PriceStore) exists(ctx context.Context, date time.Time, symbol string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count(*) FROM daily_prices
		WHERE date = ? AND symbol = ?
	`, date, symbol).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanPrices(rows chRows) ([]*domain.PricePoint, error) {
	var points []*domain.PricePoint

	for rows.Next() {
		var p domain.PricePoint
		if err := rows.Scan(&p.Date, &p.Symbol, &p.Close); err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}
		p.Date = domain.TruncateDate(p.Date)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price rows: %w", err)
	}

	return points, nil
}
