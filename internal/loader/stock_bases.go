package loader

import (
	"context"
	"errors"
	"fmt"

	"github.com/trogers1052/stock-run-tracker/internal/database"
	"github.com/trogers1052/stock-run-tracker/internal/models"
)

var stockBaseColumns = []string{"ticker", "base_count", "bo_date"}

// LoadStockBases imports stock_base_data.csv when the stock_bases table is empty.
// Each base is attached to the loader user's stock with the same ticker.
func (l *Loader) LoadStockBases(ctx context.Context) (Result, error) {
	var result Result

	exists, err := l.store.StockBaseExists(ctx)
	if err != nil {
		return result, err
	}
	if exists {
		l.log.Info().Msg("stock base table is populated, no further action")
		return result, nil
	}

	l.log.Info().Msg("no stock bases in the database, importing")
	t, err := readTable(l.opts.DataDir, StockBasesFile, stockBaseColumns)
	if err != nil {
		return result, err
	}

	bases := make([]*models.StockBase, 0, len(t.rows))
	for i, row := range t.rows {
		b, err := parseStockBaseRow(t, row)
		if err != nil {
			return result, fmt.Errorf("%s row %d: %w", t.name, i+2, err)
		}
		bases = append(bases, b)
	}

	user, err := l.loaderUser(ctx)
	if err != nil {
		return result, err
	}

	for _, b := range bases {
		if l.limitReached(result) {
			break
		}

		stock, err := l.store.FindStockByTicker(ctx, user.ID, b.Ticker)
		if errors.Is(err, database.ErrNotFound) {
			result.Skipped++
			l.log.Warn().Str("ticker", b.Ticker).Msg("no stock for ticker, skipping base")
			continue
		}
		if err != nil {
			return result, err
		}

		b.UserID = user.ID
		b.StockReferenceID = &stock.ID
		created, err := l.store.GetOrCreateStockBase(ctx, b)
		if err != nil {
			return result, fmt.Errorf("failed to import stock base %s[%d]: %w", b.Ticker, b.BaseCount, err)
		}
		if created {
			result.Imported++
			l.log.Debug().Str("ticker", b.Ticker).Int("base_count", b.BaseCount).Msg("added stock base")
		} else {
			result.Existing++
		}
	}

	l.log.Info().
		Int("imported", result.Imported).
		Int("existing", result.Existing).
		Int("skipped", result.Skipped).
		Msg("stock base import finished")
	return result, nil
}

func parseStockBaseRow(t *table, row []string) (*models.StockBase, error) {
	b := &models.StockBase{Ticker: t.get(row, "ticker")}
	if b.Ticker == "" {
		return nil, fmt.Errorf("ticker is empty")
	}

	baseCount, err := parseInt(t.get(row, "base_count"))
	if err != nil {
		return nil, fmt.Errorf("base_count: %w", err)
	}
	b.BaseCount = int(baseCount)

	if b.BoDate, err = parseDate(t.get(row, "bo_date")); err != nil {
		return nil, fmt.Errorf("bo_date: %w", err)
	}

	failure := t.get(row, "base_failure")
	if isNull(failure) {
		failure = models.BaseFailureNone
	}
	b.BaseFailure = &failure

	if b.VolBo, err = parseNullInt(t.get(row, "vol_bo")); err != nil {
		return nil, fmt.Errorf("vol_bo: %w", err)
	}
	if b.Vol20, err = parseNullInt(t.get(row, "vol_20")); err != nil {
		return nil, fmt.Errorf("vol_20: %w", err)
	}

	baseLength, err := parseNullInt(t.get(row, "base_length"))
	if err != nil {
		return nil, fmt.Errorf("base_length: %w", err)
	}
	if baseLength != nil {
		length := int(*baseLength)
		b.BaseLength = &length
	}

	if b.BoVolRatio, err = parseNullDecimal(t.get(row, "bo_vol_ratio"), models.RatioPlaces); err != nil {
		return nil, fmt.Errorf("bo_vol_ratio: %w", err)
	}
	if b.PricePercentRange, err = parseNullDecimal(t.get(row, "price_percent_range"), models.RatioPlaces); err != nil {
		return nil, fmt.Errorf("price_percent_range: %w", err)
	}
	if b.Sales0Qtr, err = parseNullDecimal(t.get(row, "sales_0qtr"), models.SalesPlaces); err != nil {
		return nil, fmt.Errorf("sales_0qtr: %w", err)
	}

	return b, nil
}
