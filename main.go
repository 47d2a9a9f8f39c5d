package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/hedisam/ethrecon/internal/audit"
	"github.com/hedisam/ethrecon/internal/config"
	"github.com/hedisam/ethrecon/internal/eth"
	"github.com/hedisam/ethrecon/internal/metrics"
)

const usage = `Usage: ethrecon <command> [flags]

Commands:
  funding    verify legacy funding flows and classify treasury LPT conversions
  payouts    recompute ETH payout totals and reconcile against committed totals
  treasury   enumerate USDC/USDC.e treasury transfers and reconcile balances

Run 'ethrecon <command> -h' for the command's flags.

Exit codes: 0 all checks passed, 1 verification fault or runtime error,
2 recomputed totals diverge from the committed snapshot.
`

func main() {
	logger := logrus.New()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := run(ctx, logger, os.Args[1], os.Args[2:])
	switch {
	case err == nil:
	case errors.Is(err, audit.ErrTotalsMismatch):
		logger.WithError(err).Error("Audit completed with diverging totals")
		os.Exit(2)
	default:
		logger.WithError(err).Error("Audit failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *logrus.Logger, command string, args []string) error {
	switch command {
	case "funding":
		return runFunding(ctx, logger, args)
	case "payouts":
		return runPayouts(ctx, logger, args)
	case "treasury":
		return runTreasury(ctx, logger, args)
	case "-h", "--help", "help":
		fmt.Fprint(os.Stderr, usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

// commonFlags are shared across every subcommand; non-empty values override
// the environment-derived config.
type commonFlags struct {
	rpcURL      string
	outDir      string
	metricsAddr string
	verbose     bool
}

func registerCommonFlags(fs *flag.FlagSet) *commonFlags {
	var c commonFlags
	fs.StringVar(&c.rpcURL, "rpc-url", "", "JSON-RPC endpoint (overrides RPC_URL)")
	fs.StringVar(&c.outDir, "out-dir", "", "Directory for report files (overrides OUT_DIR)")
	fs.StringVar(&c.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this addr for the run's duration (overrides METRICS_ADDR)")
	fs.BoolVar(&c.verbose, "v", false, "Verbose output")
	return &c
}

func (c *commonFlags) setup(ctx context.Context, logger *logrus.Logger) (*audit.Runner, error) {
	if c.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	if c.rpcURL != "" {
		cfg.RPCURL = c.rpcURL
	}
	if c.outDir != "" {
		cfg.OutDir = c.outDir
	}
	if c.metricsAddr != "" {
		cfg.MetricsAddr = c.metricsAddr
	}

	if cfg.MetricsAddr != "" {
		serveMetrics(ctx, logger, cfg.MetricsAddr)
	}

	httpClient := &http.Client{Timeout: time.Second * 10}
	ethClient := eth.New(logger, httpClient, cfg.RPCURL, cfg.RetryMaxElapsed)

	return audit.NewRunner(logger, ethClient, cfg), nil
}

func runFunding(ctx context.Context, logger *logrus.Logger, args []string) error {
	fs := flag.NewFlagSet("funding", flag.ExitOnError)
	common := registerCommonFlags(fs)

	var opts audit.FundingOptions
	fs.StringVar(&opts.TestingReturnsCSV, "testing-returns", "", "CSV of expected testing-wallet ETH returns (tx_hash, amount_eth)")
	fs.StringVar(&opts.SafeETHCSV, "safe-eth", "", "CSV of expected Safe execTransaction ETH transfers (tx_hash, amount_eth)")
	fs.StringVar(&opts.SafeLPTCSV, "safe-lpt", "", "CSV of expected Safe-to-gateway LPT transfers (tx_hash, amount_lpt)")
	fs.StringVar(&opts.DisbursementsJSON, "disbursements", "", "JSON of expected treasury ETH disbursements")
	fs.StringVar(&opts.TreasuryLedgerCSV, "treasury-ledger", "", "CSV ledger of treasury transactions to classify (tx_hash, iso_utc)")
	fs.StringVar(&opts.ConversionsDate, "conversions-date", "", "YYYY-MM-DD prefix filter on the ledger timestamps (empty keeps all)")
	err := fs.Parse(args)
	if err != nil {
		return err
	}

	runner, err := common.setup(ctx, logger)
	if err != nil {
		return err
	}
	return runner.Funding(ctx, opts)
}

func runPayouts(ctx context.Context, logger *logrus.Logger, args []string) error {
	fs := flag.NewFlagSet("payouts", flag.ExitOnError)
	common := registerCommonFlags(fs)

	var opts audit.PayoutsOptions
	fs.StringVar(&opts.TicketRunsJSON, "ticket-runs", "", "JSON of named TicketBroker payout runs")
	fs.StringVar(&opts.DirectTransfersCSV, "direct-transfers", "", "CSV of direct native transfer tx hashes (tx_hash)")
	fs.StringVar(&opts.ExpectedTotalsJSON, "expected-totals", "", "Previously committed totals JSON to reconcile against")
	fs.IntVar(&opts.BatchSize, "batch-size", 0, "Transactions per JSON-RPC batch (0 = default)")
	err := fs.Parse(args)
	if err != nil {
		return err
	}

	runner, err := common.setup(ctx, logger)
	if err != nil {
		return err
	}
	return runner.Payouts(ctx, opts)
}

func runTreasury(ctx context.Context, logger *logrus.Logger, args []string) error {
	fs := flag.NewFlagSet("treasury", flag.ExitOnError)
	common := registerCommonFlags(fs)

	snapshot := fs.String("doc-snapshot", "2025-11-07T23:59:59Z", "Doc snapshot cut (RFC 3339 UTC) for the as-of totals")
	err := fs.Parse(args)
	if err != nil {
		return err
	}

	snapshotUTC, err := time.Parse(time.RFC3339, *snapshot)
	if err != nil {
		return fmt.Errorf("invalid -doc-snapshot: %w", err)
	}

	runner, err := common.setup(ctx, logger)
	if err != nil {
		return err
	}
	return runner.Treasury(ctx, audit.TreasuryOptions{SnapshotUTC: snapshotUTC})
}

// serveMetrics exposes the custom registry for the duration of the run. The
// custom registry keeps the default http handler metrics out of the scrape.
func serveMetrics(ctx context.Context, logger *logrus.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.WithField("addr", addr).Info("Serving metrics...")
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}
