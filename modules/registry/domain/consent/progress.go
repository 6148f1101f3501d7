package consent

import (
	"math"

	"github.com/iota-uz/entity-registry/modules/registry/domain/changerequest"
)

// ThresholdTolerance absorbs floating point error in weight comparisons.
const ThresholdTolerance = 1e-9

type Policy string

const (
	PolicyUnanimous             Policy = "UNANIMOUS"
	PolicyWeightedSupermajority Policy = "WEIGHTED_SUPERMAJORITY"
	PolicyWeightedMajority      Policy = "WEIGHTED_MAJORITY"
	PolicyHeadcountMajority     Policy = "HEADCOUNT_MAJORITY"
)

// GroupProgress is the tally of one aggregation group. Approved, Pending,
// Rejected, Total and Threshold are weights for weighted policies and
// requirement counts otherwise.
type GroupProgress struct {
	Group     Group                 `json:"group"`
	Policy    Policy                `json:"policy"`
	Verdict   changerequest.Verdict `json:"verdict"`
	Approved  float64               `json:"approved"`
	Pending   float64               `json:"pending"`
	Rejected  float64               `json:"rejected"`
	Total     float64               `json:"total"`
	Threshold float64               `json:"threshold"`
}

type Progress struct {
	Verdict changerequest.Verdict `json:"verdict"`
	Groups  []GroupProgress       `json:"groups"`
}

// PolicyFor returns the policy a group is aggregated under for kind.
func PolicyFor(kind changerequest.Kind, g Group) Policy {
	switch g {
	case GroupStakeholderVote:
		switch kind {
		case changerequest.KindRename, changerequest.KindDomicileChange, changerequest.KindBusinessScopeChange,
			changerequest.KindCapitalChange, changerequest.KindDeregistration:
			return PolicyWeightedSupermajority
		case changerequest.KindOfficerChange:
			return PolicyWeightedMajority
		case changerequest.KindFormation, changerequest.KindManagementChange, changerequest.KindEquityTransfer:
			return PolicyUnanimous
		}
	case GroupDirector:
		if kind == changerequest.KindManagementChange {
			return PolicyHeadcountMajority
		}
	case GroupNewStakeholder, GroupNewOfficer, GroupNamed:
	}
	return PolicyUnanimous
}

// Evaluate computes the verdict of a request from its ledger. It is a pure
// function of its inputs. An empty ledger is PENDING.
func Evaluate(kind changerequest.Kind, reqs []Requirement) Progress {
	byGroup := make(map[Group][]Requirement, len(Groups))
	for _, r := range reqs {
		g, ok := r.Role.Group()
		if !ok {
			// unknown roles are held to unanimity with the named approvers
			g = GroupNamed
		}
		byGroup[g] = append(byGroup[g], r)
	}

	p := Progress{Verdict: changerequest.VerdictPending}
	if len(reqs) == 0 {
		return p
	}

	allApproved := true
	anyRejected := false
	for _, g := range Groups {
		rows, ok := byGroup[g]
		if !ok {
			continue
		}
		gp := evaluateGroup(g, PolicyFor(kind, g), rows)
		p.Groups = append(p.Groups, gp)
		switch gp.Verdict {
		case changerequest.VerdictRejected:
			anyRejected = true
			allApproved = false
		case changerequest.VerdictPending:
			allApproved = false
		case changerequest.VerdictApproved:
		}
	}

	switch {
	case anyRejected:
		p.Verdict = changerequest.VerdictRejected
	case allApproved:
		p.Verdict = changerequest.VerdictApproved
	}
	return p
}

func evaluateGroup(g Group, policy Policy, rows []Requirement) GroupProgress {
	switch policy {
	case PolicyWeightedSupermajority, PolicyWeightedMajority:
		gp := tally(g, policy, rows, func(r Requirement) float64 { return r.Weight })
		if gp.Total <= ThresholdTolerance {
			return unanimous(g, rows)
		}
		if policy == PolicyWeightedSupermajority {
			gp.Threshold = gp.Total * 2 / 3
			gp.Verdict = atLeast(gp)
		} else {
			gp.Threshold = gp.Total / 2
			gp.Verdict = moreThan(gp)
		}
		return gp
	case PolicyHeadcountMajority:
		gp := tally(g, policy, rows, func(Requirement) float64 { return 1 })
		gp.Threshold = math.Ceil(gp.Total / 2)
		gp.Verdict = atLeast(gp)
		return gp
	case PolicyUnanimous:
	}
	return unanimous(g, rows)
}

func tally(g Group, policy Policy, rows []Requirement, weight func(Requirement) float64) GroupProgress {
	gp := GroupProgress{Group: g, Policy: policy}
	for _, r := range rows {
		w := weight(r)
		gp.Total += w
		switch r.Status {
		case StatusApproved:
			gp.Approved += w
		case StatusRejected:
			gp.Rejected += w
		case StatusPending:
			gp.Pending += w
		}
	}
	return gp
}

// atLeast approves once approved reaches the threshold and rejects as soon as
// the threshold is out of reach even if every pending vote approves.
func atLeast(gp GroupProgress) changerequest.Verdict {
	if gp.Approved >= gp.Threshold-ThresholdTolerance {
		return changerequest.VerdictApproved
	}
	if gp.Approved+gp.Pending < gp.Threshold-ThresholdTolerance {
		return changerequest.VerdictRejected
	}
	return changerequest.VerdictPending
}

// moreThan is atLeast with a strict threshold.
func moreThan(gp GroupProgress) changerequest.Verdict {
	if gp.Approved > gp.Threshold+ThresholdTolerance {
		return changerequest.VerdictApproved
	}
	if gp.Approved+gp.Pending <= gp.Threshold+ThresholdTolerance {
		return changerequest.VerdictRejected
	}
	return changerequest.VerdictPending
}

func unanimous(g Group, rows []Requirement) GroupProgress {
	gp := tally(g, PolicyUnanimous, rows, func(Requirement) float64 { return 1 })
	gp.Threshold = gp.Total
	switch {
	case gp.Rejected > 0:
		gp.Verdict = changerequest.VerdictRejected
	case gp.Pending > 0:
		gp.Verdict = changerequest.VerdictPending
	default:
		gp.Verdict = changerequest.VerdictApproved
	}
	return gp
}

// Group returns the progress of g, if present.
func (p Progress) Group(g Group) (GroupProgress, bool) {
	for _, gp := range p.Groups {
		if gp.Group == g {
			return gp, true
		}
	}
	return GroupProgress{}, false
}
