// repair runs maintenance passes over the food-sharing store.
//
//	repair --mode donations   backfill donations of collected collections
//	repair --mode analytics   replay every donation into the Redis aggregate
//	repair --mode impacts     recompute impact figures from quantity text
//
// Nothing is written unless --apply is given.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/pflag"

	"github.com/sumit010804/food-share-sub000/internal/analytics"
	"github.com/sumit010804/food-share-sub000/internal/config"
	"github.com/sumit010804/food-share-sub000/internal/database"
	"github.com/sumit010804/food-share-sub000/internal/repair"
	"github.com/sumit010804/food-share-sub000/internal/repository"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var mode string
	var apply bool
	var batch int64

	flagSet := pflag.NewFlagSet("repair", pflag.ContinueOnError)
	flagSet.StringVar(&mode, "mode", "", "repair to run: donations, analytics or impacts")
	flagSet.BoolVar(&apply, "apply", false, "write changes (default is a dry run)")
	flagSet.Int64Var(&batch, "batch", 200, "rows read per query")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()

	jobs := &repair.Jobs{
		Collections: repository.NewCollectionRepo(db),
		Donations:   repository.NewDonationRepo(db),
		Apply:       apply,
		BatchSize:   batch,
		Log:         log,
	}

	var rep repair.Report
	switch mode {
	case "donations":
		rep, err = jobs.BackfillDonations(ctx)
	case "analytics":
		if apply {
			rdb, err := config.NewRedisClient(cfg.Redis)
			if err != nil {
				return fmt.Errorf("redis: %w", err)
			}
			defer rdb.Close()
			jobs.Analytics = analytics.New(rdb)
		}
		rep, err = jobs.ReplayAnalytics(ctx)
	case "impacts":
		rep, err = jobs.RecomputeImpacts(ctx)
	default:
		flagSet.PrintDefaults()
		return fmt.Errorf("unknown --mode %q", mode)
	}
	if err != nil {
		return err
	}
	log.Info("repair finished", "mode", mode, "apply", apply, "report", rep.String())
	return nil
}
