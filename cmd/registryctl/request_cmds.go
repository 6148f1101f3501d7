package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iota-uz/entity-registry/modules/registry/domain/actor"
	"github.com/iota-uz/entity-registry/modules/registry/domain/changerequest"
	"github.com/iota-uz/entity-registry/modules/registry/services"
)

func newSubmitCmd() *cobra.Command {
	var (
		kind        string
		entityID    string
		initiator   string
		payload     string
		payloadFile string
		comment     string
	)
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a change request",
		RunE: func(cmd *cobra.Command, args []string) error {
			k, err := parseKind(kind)
			if err != nil {
				return err
			}
			who, err := parseActor("initiator", initiator, nil)
			if err != nil {
				return err
			}
			raw, err := readPayload(payload, payloadFile)
			if err != nil {
				return err
			}
			p, err := decodePayload(k, raw)
			if err != nil {
				return err
			}
			in := services.SubmitInput{Kind: k, Payload: p, Initiator: who, Comment: comment}
			if entityID != "" {
				eid, err := parseUUID("entity", entityID)
				if err != nil {
					return err
				}
				in.EntityID = &eid
			}

			rt, ctx, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			cr, err := rt.changeRequests().Submit(ctx, in)
			if err != nil {
				return err
			}
			return writeJSON(cr)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Change kind (required)")
	cmd.Flags().StringVar(&entityID, "entity", "", "Target entity UUID (omit for FORMATION)")
	cmd.Flags().StringVar(&initiator, "initiator", "", "Initiator UUID (required)")
	cmd.Flags().StringVar(&payload, "payload", "", "Payload JSON")
	cmd.Flags().StringVar(&payloadFile, "payload-file", "", "Payload JSON file (- for stdin)")
	cmd.Flags().StringVar(&comment, "comment", "", "Comment")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("initiator")
	return cmd
}

func newDecideCmd() *cobra.Command {
	var (
		requestID string
		approver  string
		approve   bool
		reject    bool
		comment   string
	)
	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Record an approver's consent decision",
		RunE: func(cmd *cobra.Command, args []string) error {
			if approve == reject {
				return withCode(exitUsage, fmt.Errorf("exactly one of --approve or --reject is required"))
			}
			rid, err := parseUUID("request", requestID)
			if err != nil {
				return err
			}
			aid, err := parseUUID("approver", approver)
			if err != nil {
				return err
			}

			rt, ctx, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			cr, err := rt.changeRequests().DecideConsent(ctx, rid, aid, approve, comment)
			if err != nil {
				return err
			}
			return writeJSON(cr)
		},
	}
	cmd.Flags().StringVar(&requestID, "request", "", "Change request UUID (required)")
	cmd.Flags().StringVar(&approver, "approver", "", "Approver UUID (required)")
	cmd.Flags().BoolVar(&approve, "approve", false, "Approve")
	cmd.Flags().BoolVar(&reject, "reject", false, "Reject")
	cmd.Flags().StringVar(&comment, "comment", "", "Comment")
	_ = cmd.MarkFlagRequired("request")
	_ = cmd.MarkFlagRequired("approver")
	return cmd
}

func newWithdrawCmd() *cobra.Command {
	var (
		requestID string
		initiator string
		comment   string
	)
	cmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Withdraw a change request",
		RunE: func(cmd *cobra.Command, args []string) error {
			rid, err := parseUUID("request", requestID)
			if err != nil {
				return err
			}
			who, err := parseActor("initiator", initiator, nil)
			if err != nil {
				return err
			}

			rt, ctx, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.changeRequests().Withdraw(ctx, rid, who, comment); err != nil {
				return err
			}
			return writeJSON(map[string]any{"request_id": rid, "withdrawn": true})
		},
	}
	cmd.Flags().StringVar(&requestID, "request", "", "Change request UUID (required)")
	cmd.Flags().StringVar(&initiator, "initiator", "", "Initiator UUID (required)")
	cmd.Flags().StringVar(&comment, "comment", "", "Comment")
	_ = cmd.MarkFlagRequired("request")
	_ = cmd.MarkFlagRequired("initiator")
	return cmd
}

func newTransitionCmd() *cobra.Command {
	var (
		requestID string
		action    string
		actorID   string
		roles     []string
		comment   string
		payload   string
	)
	cmd := &cobra.Command{
		Use:   "transition",
		Short: "Perform an administrative workflow action",
		RunE: func(cmd *cobra.Command, args []string) error {
			rid, err := parseUUID("request", requestID)
			if err != nil {
				return err
			}
			who, err := parseActor("actor", actorID, roles)
			if err != nil {
				return err
			}
			if strings.TrimSpace(action) == "" {
				return withCode(exitUsage, fmt.Errorf("--action is required"))
			}
			var raw json.RawMessage
			if payload != "" {
				if !json.Valid([]byte(payload)) {
					return withCode(exitUsage, fmt.Errorf("--payload is not valid JSON"))
				}
				raw = json.RawMessage(payload)
			}

			rt, ctx, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			cr, err := rt.changeRequests().PerformAdminTransition(ctx, services.TransitionInput{
				RequestID: rid,
				Action:    action,
				Actor:     who,
				Comment:   comment,
				Payload:   raw,
			})
			if err != nil {
				return err
			}
			return writeJSON(cr)
		},
	}
	cmd.Flags().StringVar(&requestID, "request", "", "Change request UUID (required)")
	cmd.Flags().StringVar(&action, "action", "", "Workflow action: approve, request_changes, cancel, resubmit (required)")
	cmd.Flags().StringVar(&actorID, "actor", "", "Actor UUID (required)")
	cmd.Flags().StringSliceVar(&roles, "role", []string{actor.RoleReviewer}, "Actor roles")
	cmd.Flags().StringVar(&comment, "comment", "", "Comment")
	cmd.Flags().StringVar(&payload, "payload", "", "Transition payload JSON recorded with the transition")
	_ = cmd.MarkFlagRequired("request")
	_ = cmd.MarkFlagRequired("action")
	_ = cmd.MarkFlagRequired("actor")
	return cmd
}

func newResubmitCmd() *cobra.Command {
	var (
		requestID   string
		initiator   string
		payload     string
		payloadFile string
		comment     string
	)
	cmd := &cobra.Command{
		Use:   "resubmit",
		Short: "Resubmit a request returned for changes, optionally with a revised payload",
		RunE: func(cmd *cobra.Command, args []string) error {
			rid, err := parseUUID("request", requestID)
			if err != nil {
				return err
			}
			who, err := parseActor("initiator", initiator, nil)
			if err != nil {
				return err
			}
			raw, err := readPayload(payload, payloadFile)
			if err != nil {
				return err
			}

			rt, ctx, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer rt.close()

			svc := rt.changeRequests()
			var revised changerequest.Payload
			if len(raw) > 0 {
				current, _, _, err := svc.Get(ctx, rid)
				if err != nil {
					return err
				}
				if revised, err = decodePayload(current.Kind, raw); err != nil {
					return err
				}
			}
			cr, err := svc.Resubmit(ctx, rid, who, revised, comment)
			if err != nil {
				return err
			}
			return writeJSON(cr)
		},
	}
	cmd.Flags().StringVar(&requestID, "request", "", "Change request UUID (required)")
	cmd.Flags().StringVar(&initiator, "initiator", "", "Initiator UUID (required)")
	cmd.Flags().StringVar(&payload, "payload", "", "Revised payload JSON")
	cmd.Flags().StringVar(&payloadFile, "payload-file", "", "Revised payload JSON file (- for stdin)")
	cmd.Flags().StringVar(&comment, "comment", "", "Comment")
	_ = cmd.MarkFlagRequired("request")
	_ = cmd.MarkFlagRequired("initiator")
	return cmd
}
