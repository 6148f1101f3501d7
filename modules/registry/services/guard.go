package services

import (
	"strings"

	"github.com/iota-uz/entity-registry/modules/registry/domain/changerequest"
	"github.com/iota-uz/entity-registry/modules/registry/domain/consent"
	wf "github.com/iota-uz/entity-registry/modules/registry/domain/workflow"
)

// consentGated lists the actions that require an APPROVED verdict.
var consentGated = map[string]struct{}{
	wf.ActionRouteToReview: {},
	wf.ActionApprove:       {},
}

func normalizeAction(action string) string {
	return strings.ToLower(strings.TrimSpace(action))
}

// guardTransition refuses a gated action unless the ledger is APPROVED. The
// verdict is derived from the ledger rather than the cached column.
func guardTransition(cr changerequest.ChangeRequest, action string, reqs []consent.Requirement) error {
	if _, gated := consentGated[action]; !gated {
		return nil
	}
	progress := consent.Evaluate(cr.Kind, reqs)
	if progress.Verdict == changerequest.VerdictApproved {
		return nil
	}
	registryGuardRefusals.WithLabelValues(action).Inc()
	return fail(ErrConsentIncomplete, nil, "%s requires an approved verdict, ledger is %s", action, progress.Verdict)
}

// statusForState maps a workflow state onto the request lifecycle status.
func statusForState(state string, finished bool) changerequest.Status {
	if finished {
		return changerequest.StatusArchived
	}
	switch state {
	case wf.StateSubmitted:
		return changerequest.StatusSubmitted
	case wf.StateUnderReview:
		return changerequest.StatusUnderReview
	case wf.StateNeedsChanges:
		return changerequest.StatusNeedsChanges
	case wf.StateApproved:
		return changerequest.StatusApproved
	case wf.StateRejected:
		return changerequest.StatusRejected
	}
	return changerequest.StatusArchived
}
