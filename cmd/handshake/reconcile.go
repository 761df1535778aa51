package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/rpggio/handshake/internal/app"
	"github.com/rpggio/handshake/internal/config"
	"github.com/rpggio/handshake/internal/domain/workspace"
	"github.com/rpggio/handshake/internal/reconcile"
	"github.com/spf13/cobra"
)

func newReconcileCmd() *cobra.Command {
	var batch int
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Provision missing workspaces and complete contracts whose workspace finished",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			logger, closeLog := newLogger(cfg)
			defer closeLog()

			rt, err := openRuntime(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Close()

			if batch <= 0 {
				batch = cfg.Reconcile.BatchSize
			}
			a := app.New(rt.repos, rt.dispatcher, workspace.RetryPolicy{
				Attempts: cfg.Provisioning.Attempts,
				Backoff:  cfg.Provisioning.Backoff,
			}, logger)
			report, err := reconcile.NewSweeper(rt.repos.Contracts, a.Provisioner, a.Contracts, batch, logger).RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			renderReport(cmd.OutOrStdout(), report)
			if report.Failed > 0 {
				return fmt.Errorf("%d contract(s) could not be reconciled", report.Failed)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&batch, "batch", 0, "contracts fetched per page (defaults to reconcile.batch_size)")
	return cmd
}

func renderReport(out io.Writer, report *reconcile.Report) {
	if len(report.Outcomes) == 0 {
		fmt.Fprintln(out, "nothing to reconcile")
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(out)
	tw.AppendHeader(table.Row{"Contract", "Title", "Workspace", "Result", "Error"})
	for _, o := range report.Outcomes {
		errText := ""
		if o.Err != nil {
			errText = o.Err.Error()
		}
		tw.AppendRow(table.Row{o.ContractID, o.Title, o.WorkspaceID, o.Result, errText})
	}
	tw.AppendFooter(table.Row{"", "", "", fmt.Sprintf("created %d / repaired %d / completed %d / failed %d", report.Created, report.Repaired, report.Completed, report.Failed), ""})
	tw.Render()
}
