package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/trogers1052/stock-run-tracker/internal/models"
)

const stockBaseColumns = `
	id, user_id, stock_reference_id, ticker, base_count, base_failure, bo_date,
	vol_bo, vol_20, bo_vol_ratio, price_percent_range, base_length, sales_0qtr`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanStockBase(row rowScanner) (*models.StockBase, error) {
	var b models.StockBase
	var stockReferenceID, volBo, vol20, baseLength sql.NullInt64
	var baseFailure sql.NullString

	err := row.Scan(
		&b.ID, &b.UserID, &stockReferenceID, &b.Ticker, &b.BaseCount, &baseFailure, &b.BoDate,
		&volBo, &vol20, &b.BoVolRatio, &b.PricePercentRange, &baseLength, &b.Sales0Qtr,
	)
	if err != nil {
		return nil, err
	}

	if stockReferenceID.Valid {
		id := stockReferenceID.Int64
		b.StockReferenceID = &id
	}
	if baseFailure.Valid {
		failure := baseFailure.String
		b.BaseFailure = &failure
	}
	if volBo.Valid {
		vol := volBo.Int64
		b.VolBo = &vol
	}
	if vol20.Valid {
		vol := vol20.Int64
		b.Vol20 = &vol
	}
	if baseLength.Valid {
		length := int(baseLength.Int64)
		b.BaseLength = &length
	}

	return &b, nil
}

func scanStockBases(rows *sql.Rows, err error) ([]*models.StockBase, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to query stock bases: %w", err)
	}
	defer rows.Close()

	bases := []*models.StockBase{}
	for rows.Next() {
		b, err := scanStockBase(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock base: %w", err)
		}
		bases = append(bases, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stock bases: %w", err)
	}

	return bases, nil
}

// ListStockBases returns the user's stock bases ordered by ticker descending
func (db *DB) ListStockBases(ctx context.Context, userID int64) ([]*models.StockBase, error) {
	query := `SELECT ` + stockBaseColumns + `
		FROM stock_bases
		WHERE user_id = $1
		ORDER BY ticker DESC, id DESC
	`
	return scanStockBases(db.conn.QueryContext(ctx, query, userID))
}

// GetStockBase retrieves one of the user's stock bases
func (db *DB) GetStockBase(ctx context.Context, userID, id int64) (*models.StockBase, error) {
	return getStockBase(ctx, db.conn, userID, id, false)
}

func getStockBase(ctx context.Context, q querier, userID, id int64, lock bool) (*models.StockBase, error) {
	query := `SELECT ` + stockBaseColumns + ` FROM stock_bases WHERE id = $1 AND user_id = $2`
	if lock {
		query += ` FOR UPDATE`
	}
	b, err := scanStockBase(q.QueryRowContext(ctx, query, id, userID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("stock base %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock base: %w", err)
	}
	return b, nil
}

// UpdateStockBase saves the fields of one of the user's stock bases.
// Ownership and stock_reference are never changed.
func (db *DB) UpdateStockBase(ctx context.Context, b *models.StockBase) error {
	return updateStockBase(ctx, db.conn, b)
}

// ModifyStockBase locks one of the user's stock bases, lets change edit it and saves
// the result in the same transaction. An error from change aborts without writing.
func (db *DB) ModifyStockBase(ctx context.Context, userID, id int64, change func(b *models.StockBase) error) (*models.StockBase, error) {
	var base *models.StockBase
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		b, err := getStockBase(ctx, tx, userID, id, true)
		if err != nil {
			return err
		}
		if err := change(b); err != nil {
			return err
		}
		b.ID, b.UserID = id, userID
		if err := updateStockBase(ctx, tx, b); err != nil {
			return err
		}
		base = b
		return nil
	})
	return base, err
}

func updateStockBase(ctx context.Context, q querier, b *models.StockBase) error {
	query := `
		UPDATE stock_bases SET
			ticker = $3, base_count = $4, base_failure = $5, bo_date = $6,
			vol_bo = $7, vol_20 = $8, bo_vol_ratio = $9, price_percent_range = $10,
			base_length = $11, sales_0qtr = $12
		WHERE id = $1 AND user_id = $2
	`
	result, err := q.ExecContext(ctx, query,
		b.ID, b.UserID, b.Ticker, b.BaseCount, b.BaseFailure, b.BoDate,
		b.VolBo, b.Vol20, b.BoVolRatio, b.PricePercentRange, b.BaseLength, b.Sales0Qtr,
	)
	if err != nil {
		return fmt.Errorf("failed to update stock base: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("stock base %d: %w", b.ID, ErrNotFound)
	}
	return nil
}

// DeleteStockBase removes one of the user's stock bases and its stock links
func (db *DB) DeleteStockBase(ctx context.Context, userID, id int64) error {
	query := `DELETE FROM stock_bases WHERE id = $1 AND user_id = $2`
	result, err := db.conn.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete stock base: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("stock base %d: %w", id, ErrNotFound)
	}
	return nil
}

// StockBaseExists reports whether the stock_bases table holds any row
func (db *DB) StockBaseExists(ctx context.Context) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM stock_bases)`).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check stock base existence: %w", err)
	}
	return exists, nil
}

// GetOrCreateStockBase looks a base up by (user, ticker, base_count, bo_date) and inserts
// it when missing. On return b holds the stored row.
func (db *DB) GetOrCreateStockBase(ctx context.Context, b *models.StockBase) (bool, error) {
	query := `SELECT ` + stockBaseColumns + `
		FROM stock_bases
		WHERE user_id = $1 AND ticker = $2 AND base_count = $3 AND bo_date = $4
		ORDER BY id
		LIMIT 1
	`
	existing, err := scanStockBase(db.conn.QueryRowContext(ctx, query, b.UserID, b.Ticker, b.BaseCount, b.BoDate))
	if err == nil {
		*b = *existing
		return false, nil
	}
	if err != sql.ErrNoRows {
		return false, fmt.Errorf("failed to look up stock base: %w", err)
	}

	if err := insertStockBase(ctx, db.conn, b); err != nil {
		return false, err
	}
	return true, nil
}

func insertStockBase(ctx context.Context, q querier, b *models.StockBase) error {
	query := `
		INSERT INTO stock_bases (
			user_id, stock_reference_id, ticker, base_count, base_failure, bo_date,
			vol_bo, vol_20, bo_vol_ratio, price_percent_range, base_length, sales_0qtr
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	err := q.QueryRowContext(ctx, query,
		b.UserID, b.StockReferenceID, b.Ticker, b.BaseCount, b.BaseFailure, b.BoDate,
		b.VolBo, b.Vol20, b.BoVolRatio, b.PricePercentRange, b.BaseLength, b.Sales0Qtr,
	).Scan(&b.ID)
	if err != nil {
		return fmt.Errorf("failed to create stock base: %w", err)
	}
	return nil
}

// getOrCreateMatchingBase reuses the user's lowest-id base whose every field equals b,
// NULLs included, and inserts b otherwise
func getOrCreateMatchingBase(ctx context.Context, q querier, b *models.StockBase) error {
	query := `SELECT ` + stockBaseColumns + `
		FROM stock_bases
		WHERE user_id = $1
		  AND ticker = $2
		  AND base_count = $3
		  AND base_failure IS NOT DISTINCT FROM $4::varchar
		  AND bo_date = $5
		  AND vol_bo IS NOT DISTINCT FROM $6::bigint
		  AND vol_20 IS NOT DISTINCT FROM $7::bigint
		  AND bo_vol_ratio IS NOT DISTINCT FROM $8::numeric
		  AND price_percent_range IS NOT DISTINCT FROM $9::numeric
		  AND base_length IS NOT DISTINCT FROM $10::integer
		  AND sales_0qtr IS NOT DISTINCT FROM $11::numeric
		ORDER BY id
		LIMIT 1
	`
	existing, err := scanStockBase(q.QueryRowContext(ctx, query,
		b.UserID, b.Ticker, b.BaseCount, b.BaseFailure, b.BoDate,
		b.VolBo, b.Vol20, b.BoVolRatio, b.PricePercentRange, b.BaseLength, b.Sales0Qtr,
	))
	if err == nil {
		*b = *existing
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("failed to look up matching stock base: %w", err)
	}
	return insertStockBase(ctx, q, b)
}

// basesForStocks loads the linked bases of each stock, ordered by base id
func basesForStocks(ctx context.Context, q querier, stockIDs []int64) (map[int64][]*models.StockBase, error) {
	result := make(map[int64][]*models.StockBase, len(stockIDs))
	if len(stockIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT sb.stock_id, b.id, b.user_id, b.stock_reference_id, b.ticker, b.base_count,
		       b.base_failure, b.bo_date, b.vol_bo, b.vol_20, b.bo_vol_ratio,
		       b.price_percent_range, b.base_length, b.sales_0qtr
		FROM stocks_bases sb
		JOIN stock_bases b ON b.id = sb.stock_base_id
		WHERE sb.stock_id = ANY($1)
		ORDER BY sb.stock_id, b.id
	`
	rows, err := q.QueryContext(ctx, query, pq.Array(stockIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query stock links: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var stockID int64
		b, err := scanStockBase(linkScanner{rows: rows, stockID: &stockID})
		if err != nil {
			return nil, fmt.Errorf("failed to scan linked stock base: %w", err)
		}
		result[stockID] = append(result[stockID], b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stock links: %w", err)
	}

	return result, nil
}

// linkScanner prepends the stock_id column to a stock base scan
type linkScanner struct {
	rows    *sql.Rows
	stockID *int64
}

func (l linkScanner) Scan(dest ...interface{}) error {
	return l.rows.Scan(append([]interface{}{l.stockID}, dest...)...)
}
