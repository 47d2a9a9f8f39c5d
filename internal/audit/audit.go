// Package audit wires the verifier, scanner, and report writers into the
// three one-shot audit runs: funding, payouts, and treasury.
package audit

import (
	"errors"
	"path/filepath"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/hedisam/ethrecon/internal/config"
	"github.com/hedisam/ethrecon/internal/eth"
	"github.com/hedisam/ethrecon/internal/report"
	"github.com/hedisam/ethrecon/internal/scan"
	"github.com/hedisam/ethrecon/internal/verify"
)

// ErrTotalsMismatch signals that recomputed totals diverge from a previously
// committed snapshot. It is an expected terminal outcome of a legitimate run,
// not a programming error, and maps to its own exit code.
var ErrTotalsMismatch = errors.New("recomputed totals do not match committed totals")

type Runner struct {
	logger   *logrus.Logger
	client   *eth.Client
	cfg      config.Config
	verifier *verify.Verifier
	scanner  *scan.Scanner
}

func NewRunner(logger *logrus.Logger, client *eth.Client, cfg config.Config) *Runner {
	return &Runner{
		logger:   logger,
		client:   client,
		cfg:      cfg,
		verifier: verify.New(logger, client, cfg.Chain),
		scanner:  scan.New(logger, client, cfg.ChunkFloor),
	}
}

func (r *Runner) outPath(name string) string {
	return filepath.Join(r.cfg.OutDir, name)
}

func sumFlowAmounts(rows []report.FlowRow, kind string) decimal.Decimal {
	total := decimal.Zero
	for _, row := range rows {
		if row.Kind == kind {
			total = total.Add(row.Amount)
		}
	}
	return total
}
