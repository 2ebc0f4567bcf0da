package cli

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	memberstore "github.com/dalemusser/stratamembers/internal/app/store/members"
	"github.com/dalemusser/stratamembers/internal/app/system/address"
	"github.com/dalemusser/stratamembers/internal/app/system/memberfix"
	"github.com/dalemusser/stratamembers/internal/app/system/qualtype"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newFixAddressesCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fix-addresses",
		Short: "Convert full-width characters and split embedded street numbers",
		Long: `fix-addresses rewrites every member's address fields to half-width
characters and moves a street number embedded in the municipality into the
street address field. A record whose write fails is reported and the rest
continue.`,
		Args: cobra.NoArgs,
		PreRun: func(cmd *cobra.Command, _ []string) {
			bindBatchFlags(e, cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.runBatch(cmd.Context(), memberfix.BatchAddressFix)
		},
	}
	addBatchFlags(cmd)
	return cmd
}

func newMigrateTypesCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate-types",
		Short: "Fold retired qualification types into their replacement",
		Long: `migrate-types replaces retired qualification tags with the configured
replacement tag, backfilling the tag list from the legacy single-value type
where needed.`,
		Args: cobra.NoArgs,
		PreRun: func(cmd *cobra.Command, _ []string) {
			bindBatchFlags(e, cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return e.runBatch(cmd.Context(), memberfix.BatchTypeMigration)
		},
	}
	addBatchFlags(cmd)
	cmd.Flags().String("deprecated", "", "comma-separated retired tags (default: the baby-massage tags)")
	cmd.Flags().String("replacement", "", "replacement tag")
	return cmd
}

func addBatchFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Bool("dry-run", false, "report planned changes without writing")
	f.Int("concurrency", 4, "concurrent member writes")
	f.Bool("loose-fallback", true, "split at the first digit when no block pattern matches")
}

func bindBatchFlags(e *env, cmd *cobra.Command) {
	f := cmd.Flags()
	bindFlag(e.v, "dry_run", f, "dry-run")
	bindFlag(e.v, "maintenance_concurrency", f, "concurrency")
	bindFlag(e.v, "address_loose_fallback", f, "loose-fallback")
	if f.Lookup("deprecated") != nil {
		bindFlag(e.v, "type_migration_deprecated", f, "deprecated")
		bindFlag(e.v, "type_migration_replacement", f, "replacement")
	}
}

// batchConfig reads the memberfix settings after flags are bound.
func (e *env) batchConfig() memberfix.Config {
	return memberfix.Config{
		Concurrency: e.v.GetInt("maintenance_concurrency"),
		DryRun:      e.v.GetBool("dry_run"),
		Splitter:    address.NewSplitter(address.WithLooseFallback(e.v.GetBool("address_loose_fallback"))),
		Rule: qualtype.ParseRule(
			e.v.GetString("type_migration_deprecated"),
			e.v.GetString("type_migration_replacement"),
		),
	}
}

func (e *env) runBatch(ctx context.Context, batch string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, closeDB, err := e.openDB(ctx, e.v.GetString("mongo_uri"), e.v.GetString("mongo_database"))
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if err := closeDB(context.Background()); err != nil {
			e.logger.Warn("disconnect failed", zap.Error(err))
		}
	}()

	store := memberstore.New(db)
	runner := memberfix.NewRunner(store, store, e.batchConfig(), e.logger, nil)

	var rep memberfix.Report
	switch batch {
	case memberfix.BatchAddressFix:
		rep, err = runner.RunAddressFix(ctx)
	case memberfix.BatchTypeMigration:
		rep, err = runner.RunTypeMigration(ctx)
	default:
		return fmt.Errorf("unknown batch %q", batch)
	}
	printReport(e.out, rep)
	if err != nil {
		return err
	}
	if rep.Failed > 0 {
		return fmt.Errorf("%d of %d records failed", rep.Failed, rep.Changed)
	}
	return nil
}

func printReport(w io.Writer, rep memberfix.Report) {
	mode := "applied"
	if rep.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(w, "%s (%s) run %s\n", rep.Batch, mode, rep.RunID)

	line := func(label string, n int) {
		fmt.Fprintf(w, "%-10s %d\n", label, n)
	}
	line("total", rep.Total)
	line("changed", rep.Changed)
	switch rep.Batch {
	case memberfix.BatchAddressFix:
		line("converted", rep.Converted)
		line("fixed", rep.Fixed)
	case memberfix.BatchTypeMigration:
		line("migrated", rep.Migrated)
	}
	line("failed", rep.Failed)

	if len(rep.Changes) > 0 {
		fmt.Fprintln(w)
		for _, c := range rep.Changes {
			fmt.Fprintf(w, "  %s %s: %s -> %s\n", c.MemberID, c.Name, c.Before, c.After)
		}
		if rep.Truncated() {
			fmt.Fprintf(w, "  ... %d more\n", rep.Changed-len(rep.Changes))
		}
	}
	for _, f := range rep.Failures {
		fmt.Fprintf(w, "FAILED %s %s: %s\n", f.MemberID, f.Name, f.Error)
	}
}
