// Package loader imports the stock run and stock base CSV exports into an empty database.
package loader

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/trogers1052/stock-run-tracker/internal/database"
	"github.com/trogers1052/stock-run-tracker/internal/models"
)

// File names expected under Options.DataDir
const (
	StocksFile     = "stock_summary.csv"
	StockBasesFile = "stock_base_data.csv"
)

// Store is the persistence the loaders need
type Store interface {
	StockExists(ctx context.Context) (bool, error)
	StockBaseExists(ctx context.Context) (bool, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	CreateUser(ctx context.Context, u *models.User) error
	GetOrCreateStock(ctx context.Context, s *models.Stock) (bool, error)
	GetOrCreateStockBase(ctx context.Context, b *models.StockBase) (bool, error)
	FindStockByTicker(ctx context.Context, userID int64, ticker string) (*models.Stock, error)
}

// Options configures a loader run
type Options struct {
	DataDir  string
	Email    string
	Password string
	// Limit caps the number of rows imported; 0 imports everything
	Limit int
}

// Result summarizes one run
type Result struct {
	Imported int // rows inserted
	Existing int // rows that matched a stored row
	Skipped  int // rows without a matching stock
	Dropped  int // rows filtered out before import
}

// Loader imports CSV exports owned by the loader user
type Loader struct {
	store Store
	opts  Options
	log   zerolog.Logger
}

// New creates a loader
func New(store Store, opts Options, log zerolog.Logger) *Loader {
	return &Loader{
		store: store,
		opts:  opts,
		log:   log.With().Str("component", "loader").Logger(),
	}
}

// loaderUser returns the account named by Options.Email, creating it when missing
func (l *Loader) loaderUser(ctx context.Context) (*models.User, error) {
	email := models.NormalizeEmail(l.opts.Email)
	if email == "" {
		return nil, models.ErrEmailRequired
	}

	u, err := l.store.GetUserByEmail(ctx, email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up loader user: %w", err)
	}

	u, err = models.NewUser(email, l.opts.Password, "")
	if err != nil {
		return nil, err
	}
	if err := l.store.CreateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("failed to create loader user: %w", err)
	}
	l.log.Info().Str("email", u.Email).Msg("created loader user")
	return u, nil
}

func (l *Loader) limitReached(r Result) bool {
	return l.opts.Limit > 0 && r.Imported+r.Existing >= l.opts.Limit
}

// table is a CSV file read fully into memory with its header indexed by column name
type table struct {
	name    string
	columns map[string]int
	rows    [][]string
}

func readTable(dir, name string, required []string) (*table, error) {
	path := filepath.Join(dir, name)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	return parseTable(f, name, required)
}

func parseTable(r io.Reader, name string, required []string) (*table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: missing header row", name)
	}

	t := &table{name: name, columns: make(map[string]int), rows: records[1:]}
	for i, col := range records[0] {
		t.columns[strings.ToLower(strings.TrimSpace(col))] = i
	}
	for _, col := range required {
		if _, ok := t.columns[col]; !ok {
			return nil, fmt.Errorf("%s: missing column %q", name, col)
		}
	}
	return t, nil
}

// get returns the trimmed cell of a column, empty when the row is short
func (t *table) get(row []string, col string) string {
	i, ok := t.columns[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
