package authz

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestSubjectForUser(t *testing.T) {
	userID := uuid.MustParse("f6f8b13e-755f-41e0-af1a-f2671e40c15c")
	assert.Equal(t, "user:"+userID.String(), SubjectForUser(userID))
	assert.Equal(t, "user:anonymous", SubjectForUser(uuid.Nil))
}

func TestSubjectForRoles(t *testing.T) {
	assert.Equal(t, "role:admin,role:reviewer", SubjectForRoles([]string{"Reviewer", "admin"}))
	assert.Equal(t, "role:unnamed", SubjectForRoles(nil))
	assert.Equal(t, "role:x", SubjectForRole("role:x"))
}

func TestObjectName(t *testing.T) {
	assert.Equal(t, "registry.change_request", ObjectName("REGISTRY", "Change_Request"))
	assert.Equal(t, "global.resource", ObjectName("", ""))
}

func TestNormalizeAction(t *testing.T) {
	assert.Equal(t, "approve", NormalizeAction(" Approve "))
	assert.Equal(t, "*", NormalizeAction(""))
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeEnforce, ParseMode(" ENFORCE "))
	assert.Equal(t, ModeShadow, ParseMode("unknown"))
}
