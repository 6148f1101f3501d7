package main

import (
	"github.com/spf13/cobra"

	"github.com/iota-uz/entity-registry/modules/registry/domain/audit"
	"github.com/iota-uz/entity-registry/modules/registry/domain/changerequest"
	"github.com/iota-uz/entity-registry/modules/registry/domain/consent"
	wf "github.com/iota-uz/entity-registry/modules/registry/domain/workflow"
)

type showOutput struct {
	Request      changerequest.ChangeRequest `json:"request"`
	Requirements []consent.Requirement       `json:"requirements"`
	Progress     consent.Progress            `json:"progress"`
	History      []wf.Transition             `json:"history,omitempty"`
	Audit        []audit.Record              `json:"audit,omitempty"`
}

func newPendingCmd() *cobra.Command {
	var approver string
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List consents awaiting an approver",
		RunE: func(cmd *cobra.Command, args []string) error {
			aid, err := parseUUID("approver", approver)
			if err != nil {
				return err
			}
			rt, ctx, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			pending, err := rt.changeRequests().ListPendingConsentsFor(ctx, aid)
			if err != nil {
				return err
			}
			return writeJSON(pending)
		},
	}
	cmd.Flags().StringVar(&approver, "approver", "", "Approver UUID (required)")
	_ = cmd.MarkFlagRequired("approver")
	return cmd
}

func newShowCmd() *cobra.Command {
	var (
		requestID string
		history   bool
		withAudit bool
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a change request with its consent ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			rid, err := parseUUID("request", requestID)
			if err != nil {
				return err
			}
			rt, ctx, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			svc := rt.changeRequests()
			cr, reqs, progress, err := svc.Get(ctx, rid)
			if err != nil {
				return err
			}
			out := showOutput{Request: cr, Requirements: reqs, Progress: progress}
			if history {
				if out.History, err = svc.History(ctx, rid); err != nil {
					return err
				}
			}
			if withAudit {
				if out.Audit, err = rt.auditTrail().ListByRequest(ctx, rid); err != nil {
					return withCode(exitDB, err)
				}
			}
			return writeJSON(out)
		},
	}
	cmd.Flags().StringVar(&requestID, "request", "", "Change request UUID (required)")
	cmd.Flags().BoolVar(&history, "history", false, "Include workflow transitions")
	cmd.Flags().BoolVar(&withAudit, "audit", false, "Include the audit trail")
	_ = cmd.MarkFlagRequired("request")
	return cmd
}
