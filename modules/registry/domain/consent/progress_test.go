package consent

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/entity-registry/modules/registry/domain/changerequest"
)

func vote(weight float64, status Status) Requirement {
	ref := uuid.New()
	return Requirement{
		ID:             uuid.New(),
		ApproverID:     uuid.New(),
		Role:           RoleShareholderUser,
		ShareholderRef: &ref,
		Weight:         weight,
		Status:         status,
	}
}

func named(role Role, status Status) Requirement {
	return Requirement{ID: uuid.New(), ApproverID: uuid.New(), Role: role, Status: status}
}

func TestEvaluate_EmptyLedgerIsPending(t *testing.T) {
	t.Parallel()

	for _, kind := range changerequest.Kinds() {
		p := Evaluate(kind, nil)
		require.Equal(t, changerequest.VerdictPending, p.Verdict, kind)
		require.Empty(t, p.Groups)
	}
}

func TestEvaluate_RenameSupermajority(t *testing.T) {
	t.Parallel()

	t.Run("40 and 35 approve while 25 pending", func(t *testing.T) {
		reqs := []Requirement{
			vote(40, StatusApproved),
			vote(35, StatusApproved),
			vote(25, StatusPending),
		}
		p := Evaluate(changerequest.KindRename, reqs)
		require.Equal(t, changerequest.VerdictApproved, p.Verdict)

		gp, ok := p.Group(GroupStakeholderVote)
		require.True(t, ok)
		require.Equal(t, PolicyWeightedSupermajority, gp.Policy)
		require.InDelta(t, 75, gp.Approved, 1e-9)
		require.InDelta(t, 200.0/3, gp.Threshold, 1e-9)
	})

	t.Run("40 rejects first", func(t *testing.T) {
		reqs := []Requirement{
			vote(40, StatusRejected),
			vote(35, StatusPending),
			vote(25, StatusPending),
		}
		require.Equal(t, changerequest.VerdictRejected, Evaluate(changerequest.KindRename, reqs).Verdict)
	})

	t.Run("only 40 approved", func(t *testing.T) {
		reqs := []Requirement{
			vote(40, StatusApproved),
			vote(35, StatusPending),
			vote(25, StatusPending),
		}
		require.Equal(t, changerequest.VerdictPending, Evaluate(changerequest.KindRename, reqs).Verdict)
	})

	t.Run("exact two thirds approves", func(t *testing.T) {
		third := 100.0 / 3
		reqs := []Requirement{
			vote(third, StatusApproved),
			vote(third, StatusApproved),
			vote(third, StatusRejected),
		}
		require.Equal(t, changerequest.VerdictApproved, Evaluate(changerequest.KindRename, reqs).Verdict)
	})
}

func TestEvaluate_CapitalChangeNewStakeholder(t *testing.T) {
	t.Parallel()

	existing := []Requirement{vote(60, StatusApproved), vote(40, StatusApproved)}

	pending := append(append([]Requirement{}, existing...), named(RoleNewShareholderUser, StatusPending))
	require.Equal(t, changerequest.VerdictPending, Evaluate(changerequest.KindCapitalChange, pending).Verdict)

	approved := append(append([]Requirement{}, existing...), named(RoleNewShareholderUser, StatusApproved))
	require.Equal(t, changerequest.VerdictApproved, Evaluate(changerequest.KindCapitalChange, approved).Verdict)

	rejected := append(append([]Requirement{}, existing...), named(RoleNewShareholderEntityLegalRep, StatusRejected))
	p := Evaluate(changerequest.KindCapitalChange, rejected)
	require.Equal(t, changerequest.VerdictRejected, p.Verdict)
	gp, _ := p.Group(GroupStakeholderVote)
	require.Equal(t, changerequest.VerdictApproved, gp.Verdict)
}

func TestEvaluate_ManagementChangeHeadcount(t *testing.T) {
	t.Parallel()

	directors := []Requirement{
		named(RoleDirector, StatusApproved),
		named(RoleDirector, StatusApproved),
		named(RoleDirector, StatusPending),
		named(RoleDirector, StatusPending),
	}

	p := Evaluate(changerequest.KindManagementChange, directors)
	require.Equal(t, changerequest.VerdictApproved, p.Verdict)
	gp, _ := p.Group(GroupDirector)
	require.Equal(t, PolicyHeadcountMajority, gp.Policy)
	require.Equal(t, 2.0, gp.Threshold)

	withOfficer := append(append([]Requirement{}, directors...), named(RoleNewOfficerRole, StatusPending))
	require.Equal(t, changerequest.VerdictPending, Evaluate(changerequest.KindManagementChange, withOfficer).Verdict)

	withOfficer[4].Status = StatusApproved
	require.Equal(t, changerequest.VerdictApproved, Evaluate(changerequest.KindManagementChange, withOfficer).Verdict)

	failing := []Requirement{
		named(RoleDirector, StatusRejected),
		named(RoleDirector, StatusRejected),
		named(RoleDirector, StatusRejected),
		named(RoleDirector, StatusPending),
	}
	require.Equal(t, changerequest.VerdictRejected, Evaluate(changerequest.KindManagementChange, failing).Verdict)
}

func TestEvaluate_OfficerChangeStrictMajority(t *testing.T) {
	t.Parallel()

	half := []Requirement{vote(50, StatusApproved), vote(50, StatusPending)}
	require.Equal(t, changerequest.VerdictPending, Evaluate(changerequest.KindOfficerChange, half).Verdict)

	half[1].Status = StatusRejected
	require.Equal(t, changerequest.VerdictRejected, Evaluate(changerequest.KindOfficerChange, half).Verdict)

	over := []Requirement{vote(51, StatusApproved), vote(49, StatusPending), named(RoleNewDirector, StatusApproved)}
	require.Equal(t, changerequest.VerdictApproved, Evaluate(changerequest.KindOfficerChange, over).Verdict)
}

func TestEvaluate_ZeroWeightFallsBackToUnanimous(t *testing.T) {
	t.Parallel()

	reqs := []Requirement{vote(0, StatusApproved), vote(0, StatusPending)}
	p := Evaluate(changerequest.KindRename, reqs)
	require.Equal(t, changerequest.VerdictPending, p.Verdict)
	require.Equal(t, PolicyUnanimous, p.Groups[0].Policy)

	reqs[1].Status = StatusApproved
	require.Equal(t, changerequest.VerdictApproved, Evaluate(changerequest.KindRename, reqs).Verdict)
}

func TestEvaluate_UnanimousKinds(t *testing.T) {
	t.Parallel()

	reqs := []Requirement{
		vote(50, StatusApproved),
		vote(50, StatusApproved),
		named(RoleFoundingLegalRep, StatusPending),
	}
	require.Equal(t, changerequest.VerdictPending, Evaluate(changerequest.KindFormation, reqs).Verdict)

	reqs[1].Status = StatusRejected
	reqs[2].Status = StatusApproved
	require.Equal(t, changerequest.VerdictRejected, Evaluate(changerequest.KindFormation, reqs).Verdict)

	transfer := []Requirement{named(RoleTransferee, StatusApproved)}
	require.Equal(t, changerequest.VerdictApproved, Evaluate(changerequest.KindEquityTransfer, transfer).Verdict)
}

func TestEvaluate_DeterministicAndOrderIndependent(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(7))
	statuses := []Status{StatusPending, StatusApproved, StatusRejected}
	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(6)
		reqs := make([]Requirement, 0, n+1)
		for j := 0; j < n; j++ {
			reqs = append(reqs, vote(float64(1+rng.Intn(40)), statuses[rng.Intn(3)]))
		}
		if rng.Intn(2) == 0 {
			reqs = append(reqs, named(RoleNewShareholderUser, statuses[rng.Intn(3)]))
		}

		first := Evaluate(changerequest.KindCapitalChange, reqs)
		require.Equal(t, first, Evaluate(changerequest.KindCapitalChange, reqs))

		shuffled := append([]Requirement{}, reqs...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		require.Equal(t, first.Verdict, Evaluate(changerequest.KindCapitalChange, shuffled).Verdict)
	}
}

func TestEvaluate_ThresholdProperties(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		n := 1 + rng.Intn(5)
		reqs := make([]Requirement, 0, n)
		var approved, pending, total float64
		for j := 0; j < n; j++ {
			w := float64(1 + rng.Intn(50))
			st := []Status{StatusPending, StatusApproved, StatusRejected}[rng.Intn(3)]
			reqs = append(reqs, vote(w, st))
			total += w
			switch st {
			case StatusApproved:
				approved += w
			case StatusPending:
				pending += w
			case StatusRejected:
			}
		}
		threshold := total * 2 / 3
		got := Evaluate(changerequest.KindRename, reqs).Verdict
		if approved >= threshold && pending == 0 {
			require.Equal(t, changerequest.VerdictApproved, got)
		}
		if approved+pending < threshold-ThresholdTolerance {
			require.Equal(t, changerequest.VerdictRejected, got)
		}
	}
}

func TestRoleGroupsAreExhaustive(t *testing.T) {
	t.Parallel()

	for _, r := range Roles() {
		g, ok := r.Group()
		require.True(t, ok, r)
		require.Contains(t, Groups, g)
	}
	require.False(t, Role("OBSERVER").Valid())
}

func TestDedupe(t *testing.T) {
	t.Parallel()

	approver := uuid.New()
	ref := uuid.New()
	a := Requirement{ApproverID: approver, Role: RoleShareholderUser, ShareholderRef: &ref}
	b := a
	b.ID = uuid.New()
	c := Requirement{ApproverID: approver, Role: RoleDirector}

	out := Dedupe([]Requirement{a, b, c})
	require.Len(t, out, 2)
}
