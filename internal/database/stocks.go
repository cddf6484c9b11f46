package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/trogers1052/stock-run-tracker/internal/models"
)

const stockColumns = `
	id, user_id, ticker, start_date, end_date, num_bases, sector,
	length_run, pct_gain, stock_run_notes`

func scanStock(row rowScanner) (*models.Stock, error) {
	var s models.Stock
	err := row.Scan(
		&s.ID, &s.UserID, &s.Ticker, &s.StartDate, &s.EndDate, &s.NumBases, &s.Sector,
		&s.LengthRun, &s.PctGain, &s.StockRunNotes,
	)
	if err != nil {
		return nil, err
	}
	s.Bases = []*models.StockBase{}
	return &s, nil
}

// ListStocks returns the user's stocks with their bases, newest first
func (db *DB) ListStocks(ctx context.Context, userID int64) ([]*models.Stock, error) {
	query := `SELECT ` + stockColumns + `
		FROM stocks
		WHERE user_id = $1
		ORDER BY id DESC
	`
	rows, err := db.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stocks: %w", err)
	}
	defer rows.Close()

	stocks := []*models.Stock{}
	var ids []int64
	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock: %w", err)
		}
		stocks = append(stocks, s)
		ids = append(ids, s.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stocks: %w", err)
	}

	bases, err := basesForStocks(ctx, db.conn, ids)
	if err != nil {
		return nil, err
	}
	for _, s := range stocks {
		if linked, ok := bases[s.ID]; ok {
			s.Bases = linked
		}
	}

	return stocks, nil
}

// GetStock retrieves one of the user's stocks with its bases
func (db *DB) GetStock(ctx context.Context, userID, id int64) (*models.Stock, error) {
	return getStock(ctx, db.conn, userID, id, false)
}

// getStock reads one stock; lock takes a row lock held until the transaction ends
func getStock(ctx context.Context, q querier, userID, id int64, lock bool) (*models.Stock, error) {
	query := `SELECT ` + stockColumns + ` FROM stocks WHERE id = $1 AND user_id = $2`
	if lock {
		query += ` FOR UPDATE`
	}
	s, err := scanStock(q.QueryRowContext(ctx, query, id, userID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("stock %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock: %w", err)
	}

	bases, err := basesForStocks(ctx, q, []int64{s.ID})
	if err != nil {
		return nil, err
	}
	if linked, ok := bases[s.ID]; ok {
		s.Bases = linked
	}
	return s, nil
}

// CreateStock inserts a stock owned by s.UserID and links each of the given bases,
// reusing an identical base the same user already owns.
func (db *DB) CreateStock(ctx context.Context, s *models.Stock, bases []*models.StockBase) error {
	query := `
		INSERT INTO stocks (
			user_id, ticker, start_date, end_date, num_bases, sector,
			length_run, pct_gain, stock_run_notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	return db.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, query,
			s.UserID, s.Ticker, s.StartDate, s.EndDate, s.NumBases, s.Sector,
			s.LengthRun, s.PctGain, s.StockRunNotes,
		).Scan(&s.ID)
		if isForeignKeyViolation(err) {
			return fmt.Errorf("owner %d: %w", s.UserID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to create stock: %w", err)
		}

		if err := linkBases(ctx, tx, s.ID, s.UserID, bases); err != nil {
			return err
		}
		return reloadBases(ctx, tx, s)
	})
}

// UpdateStock saves the fields of one of the user's stocks. When replaceBases is set
// the stock's base links are cleared and rebuilt from bases; otherwise they are kept.
func (db *DB) UpdateStock(ctx context.Context, s *models.Stock, bases []*models.StockBase, replaceBases bool) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return updateStock(ctx, tx, s, bases, replaceBases)
	})
}

// StockChange applies submitted fields to a locked stock and returns the base
// membership to save. replace false keeps the current links.
type StockChange func(s *models.Stock) (bases []*models.StockBase, replace bool, err error)

// ModifyStock locks one of the user's stocks, lets change edit it and saves the result
// in the same transaction. An error from change aborts without writing.
func (db *DB) ModifyStock(ctx context.Context, userID, id int64, change StockChange) (*models.Stock, error) {
	var stock *models.Stock
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		s, err := getStock(ctx, tx, userID, id, true)
		if err != nil {
			return err
		}
		bases, replace, err := change(s)
		if err != nil {
			return err
		}
		s.ID, s.UserID = id, userID
		if err := updateStock(ctx, tx, s, bases, replace); err != nil {
			return err
		}
		stock = s
		return nil
	})
	return stock, err
}

func updateStock(ctx context.Context, q querier, s *models.Stock, bases []*models.StockBase, replaceBases bool) error {
	query := `
		UPDATE stocks SET
			ticker = $3, start_date = $4, end_date = $5, num_bases = $6, sector = $7,
			length_run = $8, pct_gain = $9, stock_run_notes = $10
		WHERE id = $1 AND user_id = $2
	`
	result, err := q.ExecContext(ctx, query,
		s.ID, s.UserID, s.Ticker, s.StartDate, s.EndDate, s.NumBases, s.Sector,
		s.LengthRun, s.PctGain, s.StockRunNotes,
	)
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("stock %d: %w", s.ID, ErrNotFound)
	}

	if replaceBases {
		if _, err := q.ExecContext(ctx, `DELETE FROM stocks_bases WHERE stock_id = $1`, s.ID); err != nil {
			return fmt.Errorf("failed to clear stock bases: %w", err)
		}
		if err := linkBases(ctx, q, s.ID, s.UserID, bases); err != nil {
			return err
		}
	}
	return reloadBases(ctx, q, s)
}

func linkBases(ctx context.Context, q querier, stockID, userID int64, bases []*models.StockBase) error {
	query := `
		INSERT INTO stocks_bases (stock_id, stock_base_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`
	for _, b := range bases {
		b.UserID = userID
		if err := getOrCreateMatchingBase(ctx, q, b); err != nil {
			return err
		}
		if _, err := q.ExecContext(ctx, query, stockID, b.ID); err != nil {
			return fmt.Errorf("failed to link stock base: %w", err)
		}
	}
	return nil
}

func reloadBases(ctx context.Context, q querier, s *models.Stock) error {
	bases, err := basesForStocks(ctx, q, []int64{s.ID})
	if err != nil {
		return err
	}
	s.Bases = bases[s.ID]
	if s.Bases == nil {
		s.Bases = []*models.StockBase{}
	}
	return nil
}

// DeleteStock removes one of the user's stocks and its base links.
// It fails with ErrProtected while a stock base references the stock.
func (db *DB) DeleteStock(ctx context.Context, userID, id int64) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM stocks WHERE id = $1 AND user_id = $2`, id, userID)
	if isForeignKeyViolation(err) {
		return fmt.Errorf("failed to delete stock %d: %w", id, ErrProtected)
	}
	if err != nil {
		return fmt.Errorf("failed to delete stock: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("stock %d: %w", id, ErrNotFound)
	}
	return nil
}

// StockExists reports whether the stocks table holds any row
func (db *DB) StockExists(ctx context.Context) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM stocks)`).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check stock existence: %w", err)
	}
	return exists, nil
}

// GetOrCreateStock looks a stock up by (user, ticker, start_date, end_date) and inserts
// it when missing. On return s holds the stored row.
func (db *DB) GetOrCreateStock(ctx context.Context, s *models.Stock) (bool, error) {
	query := `SELECT ` + stockColumns + `
		FROM stocks
		WHERE user_id = $1 AND ticker = $2 AND start_date = $3 AND end_date = $4
		ORDER BY id
		LIMIT 1
	`
	existing, err := scanStock(db.conn.QueryRowContext(ctx, query, s.UserID, s.Ticker, s.StartDate, s.EndDate))
	if err == nil {
		*s = *existing
		return false, nil
	}
	if err != sql.ErrNoRows {
		return false, fmt.Errorf("failed to look up stock: %w", err)
	}

	if err := db.CreateStock(ctx, s, nil); err != nil {
		return false, err
	}
	return true, nil
}

// FindStockByTicker returns the user's lowest-id stock whose ticker matches ignoring case
func (db *DB) FindStockByTicker(ctx context.Context, userID int64, ticker string) (*models.Stock, error) {
	query := `SELECT ` + stockColumns + `
		FROM stocks
		WHERE user_id = $1 AND UPPER(ticker) = UPPER($2)
		ORDER BY id
		LIMIT 1
	`
	s, err := scanStock(db.conn.QueryRowContext(ctx, query, userID, ticker))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("stock %s: %w", ticker, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find stock: %w", err)
	}
	return s, nil
}
