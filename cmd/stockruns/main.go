package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&serveCmd{}, "server")
	commander.Register(&waitForDBCmd{}, "database")
	commander.Register(&migrateCmd{}, "database")
	commander.Register(&populateStocksCmd{}, "data")
	commander.Register(&populateStockBasesCmd{}, "data")
	commander.Register(&createSuperuserCmd{}, "users")
	commander.Register(&deleteUserCmd{}, "users")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	status := commander.Execute(ctx)
	stop()
	os.Exit(int(status))
}
