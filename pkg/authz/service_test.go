package authz

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var testPolicies = [][]string{
	{SubjectForRole("reviewer"), "entity_change", "change_request", "approve"},
	{SubjectForRole("admin"), "entity_change", "*", "*"},
	{SubjectForUser(uuid.MustParse("f6f8b13e-755f-41e0-af1a-f2671e40c15c")), "entity_change", "change_request", "show"},
}

func newTestService(t *testing.T, mode Mode) *Service {
	t.Helper()
	svc, err := NewService(Config{
		ModelText:    RoleModel,
		Policies:     testPolicies,
		FlagProvider: NewStaticFlagProvider(mode),
	})
	require.NoError(t, err)
	return svc
}

func TestServiceAuthorize(t *testing.T) {
	svc := newTestService(t, ModeEnforce)
	req := NewRequest(
		SubjectForUser(uuid.MustParse("f6f8b13e-755f-41e0-af1a-f2671e40c15c")),
		"entity_change",
		"change_request",
		"Show",
	)
	require.NoError(t, svc.Authorize(context.Background(), req))
}

func TestServiceAuthorizeDenied(t *testing.T) {
	svc := newTestService(t, ModeEnforce)
	req := NewRequest(SubjectForUser(uuid.New()), "entity_change", "change_request", "approve")
	err := svc.Authorize(context.Background(), req)
	require.Error(t, err)
	require.True(t, IsForbidden(err))
	require.ErrorContains(t, err, "action=approve")
	require.ErrorContains(t, err, "domain=entity_change")
}

func TestServiceAuthorizeRoles(t *testing.T) {
	svc := newTestService(t, ModeEnforce)
	ctx := context.Background()

	require.NoError(t, svc.AuthorizeRoles(ctx, []string{"initiator", "reviewer"}, "entity_change", "change_request", "approve"))
	require.NoError(t, svc.AuthorizeRoles(ctx, []string{"admin"}, "entity_change", "change_request", "reject"))
	require.True(t, IsForbidden(svc.AuthorizeRoles(ctx, []string{"reviewer"}, "entity_change", "change_request", "reject")))
	require.True(t, IsForbidden(svc.AuthorizeRoles(ctx, nil, "entity_change", "change_request", "approve")))
	require.True(t, IsForbidden(svc.AuthorizeRoles(ctx, []string{"reviewer"}, "other", "change_request", "approve")))
}

func TestServiceAuthorizeShadowMode(t *testing.T) {
	svc := newTestService(t, ModeShadow)
	require.NoError(t, svc.AuthorizeRoles(context.Background(), []string{"initiator"}, "entity_change", "change_request", "approve"))
}

func TestServiceMode(t *testing.T) {
	svc := newTestService(t, ModeDisabled)
	require.Equal(t, ModeDisabled, svc.Mode())
	require.NoError(t, svc.Authorize(context.Background(), NewRequest("nobody", "x", "y", "z")))
}

func TestServiceReplacePolicies(t *testing.T) {
	svc := newTestService(t, ModeEnforce)
	ctx := context.Background()
	require.NoError(t, svc.ReplacePolicies(ctx, [][]string{
		{SubjectForRole("initiator"), "entity_change", "change_request", "approve"},
	}))
	require.NoError(t, svc.AuthorizeRoles(ctx, []string{"initiator"}, "entity_change", "change_request", "approve"))
	require.Error(t, svc.AuthorizeRoles(ctx, []string{"reviewer"}, "entity_change", "change_request", "approve"))
}

func TestNewServiceValidatesConfig(t *testing.T) {
	_, err := NewService(Config{Policies: testPolicies, FlagMode: ModeEnforce})
	require.ErrorContains(t, err, "missing model")

	_, err = NewService(Config{ModelText: RoleModel, FlagMode: ModeEnforce})
	require.ErrorContains(t, err, "missing policies")

	_, err = NewService(Config{ModelText: RoleModel, Policies: [][]string{{"a", "b"}}, FlagMode: ModeEnforce})
	require.ErrorContains(t, err, "expected 4")
}

func TestFileFlagProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "authz_flags.yaml")
	p := NewFileFlagProvider(path, ModeEnforce)
	require.Equal(t, ModeEnforce, p.Mode())

	require.NoError(t, os.WriteFile(path, []byte("mode: disabled\n"), 0o600))
	require.Equal(t, ModeDisabled, p.Mode())

	require.NoError(t, os.WriteFile(path, []byte("mode: bogus\n"), 0o600))
	require.Equal(t, ModeDisabled, p.Mode())

	require.NoError(t, os.WriteFile(path, []byte("mode: [\n"), 0o600))
	require.Equal(t, ModeDisabled, p.Mode())

	require.NoError(t, os.Remove(path))
	require.Equal(t, ModeDisabled, p.Mode())
}
