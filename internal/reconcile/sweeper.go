// Package reconcile repairs active contracts whose workspace provisioning did not complete,
// and completes active contracts whose workspace already finished.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rpggio/handshake/internal/domain/contract"
	"github.com/rpggio/handshake/internal/domain/workspace"
	"github.com/rpggio/handshake/internal/metrics"
)

const defaultBatchSize = 100

// ContractLister pages through contracts that need repair, in contract ID order.
type ContractLister interface {
	ListActiveWithoutWorkspace(ctx context.Context, afterID string, limit int) ([]contract.Contract, error)
	ListActiveWithCompletedWorkspace(ctx context.Context, afterID string, limit int) ([]contract.Contract, error)
}

// Provisioner creates or returns a contract's workspace.
type Provisioner interface {
	Provision(ctx context.Context, contractID string) (*workspace.Workspace, bool, error)
}

// Completer moves an active contract to completed.
type Completer interface {
	Complete(ctx context.Context, contractID string) error
}

// Outcome describes what happened to one contract during a sweep.
type Outcome struct {
	ContractID  string
	Title       string
	WorkspaceID string
	Result      string // created, repaired, completed, failed
	Err         error
}

// Report summarizes one sweep.
type Report struct {
	Outcomes []Outcome
	Created   int
	Repaired  int
	Completed int
	Failed    int
}

// Sweeper re-runs provisioning for active contracts without a workspace reference and
// completes active contracts whose workspace is completed.
type Sweeper struct {
	contracts   ContractLister
	provisioner Provisioner
	completer   Completer
	batchSize   int
	logger      *slog.Logger
}

// NewSweeper creates a sweeper. A non-positive batch size uses the default. A nil completer
// skips the completion pass.
func NewSweeper(contracts ContractLister, provisioner Provisioner, completer Completer, batchSize int, logger *slog.Logger) *Sweeper {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		contracts:   contracts,
		provisioner: provisioner,
		completer:   completer,
		batchSize:   batchSize,
		logger:      logger,
	}
}

// RunOnce walks every stranded contract in pages of the batch size, then every active
// contract with a completed workspace. Per-contract failures are reported, not returned,
// and do not hold back contracts later in the order.
func (s *Sweeper) RunOnce(ctx context.Context) (*Report, error) {
	report := &Report{}

	err := s.each(ctx, s.contracts.ListActiveWithoutWorkspace, func(c contract.Contract) {
		outcome := Outcome{ContractID: c.ID, Title: c.Title}
		ws, created, err := s.provisioner.Provision(ctx, c.ID)
		switch {
		case err != nil:
			outcome.Result = "failed"
			outcome.Err = err
			report.Failed++
			s.logger.Warn("reconcile provisioning failed", "contract_id", c.ID, "error", err)
		case created:
			outcome.Result = "created"
			outcome.WorkspaceID = ws.ID
			report.Created++
		default:
			outcome.Result = "repaired"
			outcome.WorkspaceID = ws.ID
			report.Repaired++
		}
		report.Outcomes = append(report.Outcomes, outcome)
	})
	if err != nil {
		return report, fmt.Errorf("listing contracts without workspace: %w", err)
	}

	if s.completer != nil {
		err = s.each(ctx, s.contracts.ListActiveWithCompletedWorkspace, func(c contract.Contract) {
			outcome := Outcome{ContractID: c.ID, Title: c.Title, Result: "completed"}
			if c.WorkspaceID != nil {
				outcome.WorkspaceID = *c.WorkspaceID
			}
			if err := s.completer.Complete(ctx, c.ID); err != nil {
				outcome.Result = "failed"
				outcome.Err = err
				report.Failed++
				s.logger.Warn("reconcile contract completion failed", "contract_id", c.ID, "error", err)
			} else {
				report.Completed++
			}
			report.Outcomes = append(report.Outcomes, outcome)
		})
		if err != nil {
			return report, fmt.Errorf("listing contracts with completed workspace: %w", err)
		}
	}

	metrics.RecordReconcile(report.Created, report.Repaired, report.Completed, report.Failed)
	if len(report.Outcomes) > 0 {
		s.logger.Info("reconcile sweep finished",
			"created", report.Created, "repaired", report.Repaired,
			"completed", report.Completed, "failed", report.Failed)
	}
	return report, nil
}

type pageFunc func(ctx context.Context, afterID string, limit int) ([]contract.Contract, error)

// each calls fn for every contract list returns, fetching one page at a time until a short page.
func (s *Sweeper) each(ctx context.Context, list pageFunc, fn func(contract.Contract)) error {
	afterID := ""
	for {
		page, err := list(ctx, afterID, s.batchSize)
		if err != nil {
			return err
		}
		for _, c := range page {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(c)
		}
		if len(page) < s.batchSize {
			return nil
		}
		afterID = page[len(page)-1].ID
	}
}

// Run sweeps immediately and then every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("reconcile interval must be positive, got %s", interval)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("reconcile sweep failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
