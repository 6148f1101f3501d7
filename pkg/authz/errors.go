package authz

import (
	"fmt"

	"github.com/iota-uz/entity-registry/pkg/serrors"
)

const errorCodeForbidden = "AUTHZ_FORBIDDEN"

// forbiddenError builds a standardized error for denied policies.
func forbiddenError(req Request) *serrors.BaseError {
	return serrors.NewError(errorCodeForbidden, "permission denied").WithTemplateData(map[string]string{
		"object":  req.Object,
		"action":  req.Action,
		"domain":  req.Domain,
		"subject": req.Subject,
	})
}

// IsForbidden reports whether err is a policy denial.
func IsForbidden(err error) bool {
	return serrors.IsCode(err, errorCodeForbidden)
}

// configError standardizes configuration validation errors.
func configError(msg string, args ...any) error {
	return fmt.Errorf("authz: "+msg, args...)
}
