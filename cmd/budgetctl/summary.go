package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"budgetform/internal/backend"
	"budgetform/internal/core"
	"budgetform/internal/recorder"
)

type summaryFlags struct {
	income      string
	savings     string
	investments string
	limit       string
	fixed       []string
	variable    []string
	record      bool
}

func newSummaryCmd() *cobra.Command {
	var f summaryFlags
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Compute a budget summary from flags",
		Example: `  budgetctl summary --income 2000 --savings 100 --investments 100 --limit 700 \
    --fixed Housing=500 --fixed Utilities=100 --variable Fun=40`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSummary(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.income, "income", "", "Monthly income")
	cmd.Flags().StringVar(&f.savings, "savings", "", "Monthly savings")
	cmd.Flags().StringVar(&f.investments, "investments", "", "Monthly investments")
	cmd.Flags().StringVar(&f.limit, "limit", "", "Planned monthly spending limit")
	cmd.Flags().StringArrayVar(&f.fixed, "fixed", nil, "Fixed expense as Name=amount (repeatable)")
	cmd.Flags().StringArrayVar(&f.variable, "variable", nil, "Variable expense as Name=amount (repeatable)")
	cmd.Flags().BoolVar(&f.record, "record", false, "Record the summary row with the configured DATA_BACKEND")
	return cmd
}

func runSummary(cmd *cobra.Command, f summaryFlags) error {
	cfg := loadConfig()
	profile, err := cfg.Profile()
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}

	totals, err := parseTotalsFlags(f, profile.Currency)
	if err != nil {
		return err
	}
	fixed, err := ledgerFromFlags(f.fixed, profile.Currency)
	if err != nil {
		return fmt.Errorf("--fixed: %w", err)
	}
	variable, err := ledgerFromFlags(f.variable, profile.Currency)
	if err != nil {
		return fmt.Errorf("--variable: %w", err)
	}

	sum := core.Summarize(totals, fixed, variable, profile.RatioTiers)
	_, collision := fixed.MergeView(variable)
	fmt.Fprint(cmd.OutOrStdout(), renderSummary(sum, profile.Currency, collision))

	if !f.record {
		return nil
	}

	logger := cliLogger()
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	result, err := backend.NewFactory(logger.Logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return fmt.Errorf("create %s backend: %w", cfg.DataBackend, err)
	}
	defer result.Close()

	ref, err := result.Backend.Append(recorder.WithSessionID(ctx, componentCLI), sum.ExportRow())
	if err != nil {
		return fmt.Errorf("record summary: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Recorded (%s): %s\n", cfg.DataBackend, ref)
	return nil
}

func parseTotalsFlags(f summaryFlags, currency string) (core.Totals, error) {
	var t core.Totals
	for _, field := range []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"income", f.income, &t.Income},
		{"savings", f.savings, &t.Savings},
		{"investments", f.investments, &t.Investments},
		{"limit", f.limit, &t.FutureLimit},
	} {
		v, err := core.ParseOptionalAmountIn(field.raw, currency)
		if err != nil {
			return core.Totals{}, fmt.Errorf("--%s: %w", field.name, err)
		}
		*field.dst = v
	}
	return t, nil
}

// ledgerFromFlags builds a ledger from Name=amount pairs. The name may itself
// contain '=', the amount follows the last one.
func ledgerFromFlags(pairs []string, currency string) (*core.Ledger, error) {
	l := core.NewLedger()
	for _, pair := range pairs {
		i := strings.LastIndex(pair, "=")
		if i < 0 {
			return nil, fmt.Errorf("%q: want Name=amount", pair)
		}
		name := strings.TrimSpace(pair[:i])
		amount, err := core.ParseOptionalAmountIn(pair[i+1:], currency)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", pair, err)
		}
		if name == "" {
			return nil, errors.New("category name is empty")
		}
		if err := l.AddCategory(name); err != nil {
			return nil, err
		}
		if err := l.SetAmount(name, amount); err != nil {
			return nil, err
		}
	}
	return l, nil
}
