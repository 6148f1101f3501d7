package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iota-uz/entity-registry/modules/registry/domain/changerequest"
	"github.com/iota-uz/entity-registry/modules/registry/domain/entity"
	wf "github.com/iota-uz/entity-registry/modules/registry/domain/workflow"
)

type ServiceError struct {
	Status  int
	Code    string
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

// Is matches any ServiceError with the same code, so detailed copies still
// satisfy errors.Is against the sentinels below.
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	return ok && t.Code != "" && t.Code == e.Code
}

func newServiceError(status int, code, message string, cause error) *ServiceError {
	return &ServiceError{Status: status, Code: code, Message: message, Cause: cause}
}

var (
	ErrInvalidStructure      = newServiceError(http.StatusUnprocessableEntity, "REGISTRY_INVALID_STRUCTURE", "invalid structure", nil)
	ErrMissingRepresentative = newServiceError(http.StatusUnprocessableEntity, "REGISTRY_MISSING_REPRESENTATIVE", "entity stakeholder has no legal representative", nil)
	ErrNotAuthorized         = newServiceError(http.StatusForbidden, "REGISTRY_NOT_AUTHORIZED", "not authorized", nil)
	ErrAlreadyDecided        = newServiceError(http.StatusConflict, "REGISTRY_ALREADY_DECIDED", "consent already decided", nil)
	ErrConsentIncomplete     = newServiceError(http.StatusConflict, "REGISTRY_CONSENT_INCOMPLETE", "consent is not complete", nil)
	ErrInsufficientHolding   = newServiceError(http.StatusUnprocessableEntity, "REGISTRY_INSUFFICIENT_HOLDING", "insufficient holding", nil)
	ErrNameConflict          = newServiceError(http.StatusConflict, "REGISTRY_NAME_CONFLICT", "entity name already exists", nil)
	ErrAlreadyApplied        = newServiceError(http.StatusConflict, "REGISTRY_ALREADY_APPLIED", "change already applied", nil)
	ErrRequestArchived       = newServiceError(http.StatusConflict, "REGISTRY_REQUEST_ARCHIVED", "change request is archived", nil)
	ErrRequestInProgress     = newServiceError(http.StatusConflict, "REGISTRY_REQUEST_IN_PROGRESS", "entity already has an open change request", nil)
	ErrEntityDeregistered    = newServiceError(http.StatusConflict, "REGISTRY_ENTITY_DEREGISTERED", "entity is deregistered", nil)
	ErrTransitionNotAllowed  = newServiceError(http.StatusConflict, "REGISTRY_TRANSITION_NOT_ALLOWED", "transition not allowed", nil)
	ErrNotFound              = newServiceError(http.StatusNotFound, "REGISTRY_NOT_FOUND", "not found", nil)
)

// fail returns a copy of sentinel carrying a detailed message and cause.
func fail(sentinel *ServiceError, cause error, format string, args ...any) *ServiceError {
	msg := sentinel.Message
	if format != "" {
		msg = fmt.Sprintf("%s: %s", sentinel.Message, fmt.Sprintf(format, args...))
	}
	return newServiceError(sentinel.Status, sentinel.Code, msg, cause)
}

// mapError translates repository, workflow and driver errors into service
// errors. Errors that are already service errors pass through.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return err
	}
	switch {
	case errors.Is(err, changerequest.ErrNotFound):
		return fail(ErrNotFound, err, "change request")
	case errors.Is(err, entity.ErrNotFound):
		return fail(ErrNotFound, err, "entity")
	case errors.Is(err, entity.ErrAuthorityNotFound):
		return fail(ErrInvalidStructure, err, "approving authority does not exist")
	case errors.Is(err, entity.ErrNameTaken):
		recordWriteConflict("name")
		return fail(ErrNameConflict, err, "")
	case errors.Is(err, wf.ErrRoleNotAllowed):
		return fail(ErrNotAuthorized, err, "")
	case errors.Is(err, wf.ErrActionNotAllowed), errors.Is(err, wf.ErrInstanceFinished):
		return fail(ErrTransitionNotAllowed, err, "")
	case errors.Is(err, wf.ErrInstanceNotFound), errors.Is(err, wf.ErrDefinitionNotFound):
		return fail(ErrNotFound, err, "workflow")
	}
	return mapPgErrorToServiceError(err)
}

func mapPgErrorToServiceError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return newServiceError(http.StatusNotFound, ErrNotFound.Code, "not found", err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		recordWriteConflict("unique")
		switch pgErr.ConstraintName {
		case "registry_entities_name_key":
			return fail(ErrNameConflict, err, "")
		case "registry_consent_requirements_key":
			return fail(ErrAlreadyDecided, err, "duplicate requirement")
		case "registry_change_requests_open_key":
			return fail(ErrRequestInProgress, err, "")
		default:
			return newServiceError(http.StatusConflict, "REGISTRY_CONFLICT", "unique constraint violated", err)
		}
	case "23503": // foreign_key_violation
		recordWriteConflict("foreign_key")
		return fail(ErrInvalidStructure, err, "referenced record does not exist")
	case "55P03", "40001", "40P01": // lock_not_available, serialization_failure, deadlock_detected
		recordWriteConflict("lock")
		return newServiceError(http.StatusConflict, "REGISTRY_BUSY", "record is locked by another transaction", err)
	default:
		return newServiceError(http.StatusInternalServerError, "REGISTRY_INTERNAL", fmt.Sprintf("database error (%s)", pgErr.Code), err)
	}
}
