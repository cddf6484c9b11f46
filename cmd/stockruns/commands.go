package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/trogers1052/stock-run-tracker/internal/database"
	"github.com/trogers1052/stock-run-tracker/internal/loader"
	"github.com/trogers1052/stock-run-tracker/internal/models"
	"github.com/trogers1052/stock-run-tracker/internal/waitdb"
)

type waitForDBCmd struct {
	interval time.Duration
}

func (*waitForDBCmd) Name() string     { return "wait_for_db" }
func (*waitForDBCmd) Synopsis() string { return "block until the database accepts connections" }
func (*waitForDBCmd) Usage() string {
	return `stockruns wait_for_db [-interval <duration>]
`
}

func (c *waitForDBCmd) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&c.interval, "interval", time.Second, "Delay between connection attempts.")
}

func (c *waitForDBCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e := newEnv()
	db, err := database.Open(e.cfg.Database.ConnectionString())
	if err != nil {
		e.log.Error().Err(err).Send()
		return subcommands.ExitFailure
	}
	defer db.Close()

	if err := waitdb.Wait(ctx, db, waitdb.Options{Interval: c.interval, Logger: e.log}); err != nil {
		e.log.Error().Err(err).Msg("database never became available")
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type migrateCmd struct{}

func (*migrateCmd) Name() string             { return "migrate" }
func (*migrateCmd) Synopsis() string         { return "apply pending schema migrations" }
func (*migrateCmd) Usage() string            { return "stockruns migrate\n" }
func (*migrateCmd) SetFlags(_ *flag.FlagSet) {}

func (*migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e := newEnv()
	db, err := e.waitAndMigrate(ctx)
	if err != nil {
		e.log.Error().Err(err).Msg("migration failed")
		return subcommands.ExitFailure
	}
	db.Close()
	return subcommands.ExitSuccess
}

// loadCmd holds what both import commands share
type loadCmd struct {
	limit int
}

func (c *loadCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.limit, "limit", 0, "Maximum rows to import (0 imports everything).")
}

func (c *loadCmd) run(ctx context.Context, load func(context.Context, *loader.Loader) (loader.Result, error)) subcommands.ExitStatus {
	e := newEnv()
	db, err := e.connect()
	if err != nil {
		e.log.Error().Err(err).Send()
		return subcommands.ExitFailure
	}
	defer db.Close()

	l, err := e.newLoader(db, c.limit)
	if err != nil {
		e.log.Error().Err(err).Send()
		return subcommands.ExitFailure
	}
	if _, err := load(ctx, l); err != nil {
		e.log.Error().Err(err).Msg("import failed")
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type populateStocksCmd struct{ loadCmd }

func (*populateStocksCmd) Name() string     { return "populate_db" }
func (*populateStocksCmd) Synopsis() string { return "import stock_summary.csv into an empty stocks table" }
func (*populateStocksCmd) Usage() string {
	return `stockruns populate_db [-limit <n>]

  Reads $STATIC_ROOT/data/stock_summary.csv and stores every finished run
  for the $USER_EMAIL account.
`
}

func (c *populateStocksCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.run(ctx, func(ctx context.Context, l *loader.Loader) (loader.Result, error) {
		return l.LoadStocks(ctx)
	})
}

type populateStockBasesCmd struct{ loadCmd }

func (*populateStockBasesCmd) Name() string { return "populate_stock_base_data_in_db" }
func (*populateStockBasesCmd) Synopsis() string {
	return "import stock_base_data.csv into an empty stock bases table"
}
func (*populateStockBasesCmd) Usage() string {
	return `stockruns populate_stock_base_data_in_db [-limit <n>]

  Reads $STATIC_ROOT/data/stock_base_data.csv and links each base to the
  imported run of the same ticker. Run populate_db first.
`
}

func (c *populateStockBasesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return c.run(ctx, func(ctx context.Context, l *loader.Loader) (loader.Result, error) {
		return l.LoadStockBases(ctx)
	})
}

type createSuperuserCmd struct {
	email    string
	password string
}

func (*createSuperuserCmd) Name() string     { return "createsuperuser" }
func (*createSuperuserCmd) Synopsis() string { return "create a staff account with all permissions" }
func (*createSuperuserCmd) Usage() string {
	return "stockruns createsuperuser -email <email> [-password <password>]\n"
}

func (c *createSuperuserCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "Email address of the new account.")
	f.StringVar(&c.password, "password", os.Getenv("SUPERUSER_PASSWORD"), "Password (defaults to $SUPERUSER_PASSWORD).")
}

func (c *createSuperuserCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	user, err := models.NewSuperuser(c.email, c.password)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}

	e := newEnv()
	db, err := e.connect()
	if err != nil {
		e.log.Error().Err(err).Send()
		return subcommands.ExitFailure
	}
	defer db.Close()

	if err := db.CreateUser(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicateEmail) {
			fmt.Fprintf(os.Stderr, "a user with email %s already exists\n", user.Email)
			return subcommands.ExitFailure
		}
		e.log.Error().Err(err).Send()
		return subcommands.ExitFailure
	}

	e.log.Info().Int64("user_id", user.ID).Str("email", user.Email).Msg("superuser created")
	return subcommands.ExitSuccess
}

type deleteUserCmd struct {
	email string
}

func (*deleteUserCmd) Name() string     { return "deleteuser" }
func (*deleteUserCmd) Synopsis() string { return "delete an account along with its stock runs and token" }
func (*deleteUserCmd) Usage() string    { return "stockruns deleteuser -email <email>\n" }

func (c *deleteUserCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.email, "email", "", "Email address of the account to delete.")
}

func (c *deleteUserCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.email == "" {
		fmt.Fprintln(os.Stderr, "-email is required")
		return subcommands.ExitUsageError
	}

	e := newEnv()
	db, err := e.connect()
	if err != nil {
		e.log.Error().Err(err).Send()
		return subcommands.ExitFailure
	}
	defer db.Close()

	user, err := db.GetUserByEmail(ctx, models.NormalizeEmail(c.email))
	if err != nil {
		e.log.Error().Err(err).Str("email", c.email).Msg("lookup failed")
		return subcommands.ExitFailure
	}
	if err := db.DeleteUser(ctx, user.ID); err != nil {
		e.log.Error().Err(err).Send()
		return subcommands.ExitFailure
	}

	tokens, err := e.tokenCache(ctx)
	if err != nil {
		e.log.Warn().Err(err).Int64("user_id", user.ID).Msg("cached tokens not evicted")
	} else if tokens != nil {
		defer tokens.Close()
		if err := tokens.DeleteUser(ctx, user.ID); err != nil {
			e.log.Warn().Err(err).Int64("user_id", user.ID).Msg("cached tokens not evicted")
		}
	}

	e.log.Info().Int64("user_id", user.ID).Msg("user deleted")
	return subcommands.ExitSuccess
}
