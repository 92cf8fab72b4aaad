package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/noah-isme/attendance-engine/internal/models"
	"github.com/noah-isme/attendance-engine/internal/repository"
	"github.com/noah-isme/attendance-engine/internal/service"
	"github.com/noah-isme/attendance-engine/pkg/config"
	"github.com/noah-isme/attendance-engine/pkg/database"
	"github.com/noah-isme/attendance-engine/pkg/logger"
)

func main() {
	var (
		date    string
		grace   int
		dryRun  bool
		verbose bool
	)
	pflag.StringVar(&date, "date", "", "date to reconcile (YYYY-MM-DD), defaults to today")
	pflag.IntVar(&grace, "grace-period", 0, "grace period in minutes, defaults to configured value")
	pflag.BoolVar(&dryRun, "dry-run", false, "evaluate decisions without writing")
	pflag.BoolVar(&verbose, "verbose", false, "print every decision, not just applied ones")
	pflag.Parse()

	date = resolveDate(date, time.Now().UTC())

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	timetableRepo := repository.NewTimetableRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	metricsSvc := service.NewMetricsService()
	reconcileSvc := service.NewReconcileService(timetableRepo, attendanceRepo, metricsSvc, logr,
		cfg.Reconciler.GracePeriodMinutes, cfg.Reconciler.DowngradeConfirmedPresent)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	result, err := reconcileSvc.Run(ctx, service.ReconcileRequest{
		Date:               date,
		GracePeriodMinutes: grace,
		DryRun:             dryRun,
	})
	if err != nil {
		logr.Sugar().Fatalw("reconciliation failed", "error", err)
	}

	for _, decision := range result.Decisions {
		if !verbose && decision.Action == models.ReconcileNoAction {
			continue
		}
		fmt.Printf("%-36s  %-16s  %s\n", decision.TeacherID, decision.Action, decision.Reason)
	}

	fmt.Printf("\ndate=%s dry_run=%v elapsed=%s\n", result.Date, dryRun, time.Since(start).Round(time.Millisecond))
	fmt.Printf("checked=%d absent=%d late=%d already_present=%d already_absent=%d no_action=%d skipped=%d\n",
		result.Stats.TotalChecked,
		result.Stats.MarkedAbsent,
		result.Stats.MarkedLate,
		result.Stats.AlreadyPresent,
		result.Stats.AlreadyAbsent,
		result.Stats.NoAction,
		result.Stats.Skipped,
	)

	if result.Stats.Skipped > 0 {
		os.Exit(1)
	}
}

// resolveDate falls back to the current day when no --date was given, so cron
// invocations reconcile the day they run on.
func resolveDate(flagValue string, now time.Time) string {
	if flagValue == "" {
		return now.Format(models.DateLayout)
	}
	return flagValue
}
