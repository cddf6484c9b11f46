package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/trogers1052/stock-run-tracker/internal/models"
)

// StockRunNotes is stored on every imported stock run
const StockRunNotes = "Initial stock base information creation."

var stockColumns = []string{"ticker", "start_date", "end_date", "sector", "num_bases", "length_run", "pct_gain"}

// LoadStocks imports stock_summary.csv when the stocks table is empty
func (l *Loader) LoadStocks(ctx context.Context) (Result, error) {
	var result Result

	exists, err := l.store.StockExists(ctx)
	if err != nil {
		return result, err
	}
	if exists {
		l.log.Info().Msg("stock table is populated, no further action")
		return result, nil
	}

	l.log.Info().Msg("no stocks in the database, importing")
	t, err := readTable(l.opts.DataDir, StocksFile, stockColumns)
	if err != nil {
		return result, err
	}

	var stocks []*models.Stock
	for i, row := range t.rows {
		endDate := t.get(row, "end_date")
		if isNull(endDate) || strings.EqualFold(endDate, "tbd") {
			result.Dropped++
			continue
		}
		s, err := parseStockRow(t, row)
		if err != nil {
			return result, fmt.Errorf("%s row %d: %w", t.name, i+2, err)
		}
		stocks = append(stocks, s)
	}

	user, err := l.loaderUser(ctx)
	if err != nil {
		return result, err
	}

	for _, s := range stocks {
		if l.limitReached(result) {
			break
		}
		s.UserID = user.ID
		created, err := l.store.GetOrCreateStock(ctx, s)
		if err != nil {
			return result, fmt.Errorf("failed to import stock %s: %w", s.Ticker, err)
		}
		if created {
			result.Imported++
			l.log.Debug().Str("ticker", s.Ticker).Msg("added stock")
		} else {
			result.Existing++
		}
	}

	l.log.Info().
		Int("imported", result.Imported).
		Int("existing", result.Existing).
		Int("dropped", result.Dropped).
		Msg("stock import finished")
	return result, nil
}

func parseStockRow(t *table, row []string) (*models.Stock, error) {
	s := &models.Stock{
		Ticker:        t.get(row, "ticker"),
		Sector:        t.get(row, "sector"),
		StockRunNotes: StockRunNotes,
	}
	if s.Ticker == "" {
		return nil, fmt.Errorf("ticker is empty")
	}

	var err error
	if s.StartDate, err = parseDate(t.get(row, "start_date")); err != nil {
		return nil, fmt.Errorf("start_date: %w", err)
	}
	if s.EndDate, err = parseDate(t.get(row, "end_date")); err != nil {
		return nil, fmt.Errorf("end_date: %w", err)
	}

	numBases, err := parseInt(t.get(row, "num_bases"))
	if err != nil {
		return nil, fmt.Errorf("num_bases: %w", err)
	}
	s.NumBases = int(numBases)

	lengthRun, err := parseInt(t.get(row, "length_run"))
	if err != nil {
		return nil, fmt.Errorf("length_run: %w", err)
	}
	s.LengthRun = int(lengthRun)

	pctGain, err := parseDecimal(t.get(row, "pct_gain"))
	if err != nil {
		return nil, fmt.Errorf("pct_gain: %w", err)
	}
	s.PctGain = pctGain.Round(models.PctGainPlaces)

	return s, nil
}
