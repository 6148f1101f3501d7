package main

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iota-uz/entity-registry/modules/registry/services"
)

type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string {
	return e.err.Error()
}

func (e *cliError) Unwrap() error {
	return e.err
}

const (
	exitOK         = 0
	exitValidation = 2
	exitUsage      = 3
	exitDB         = 4
	exitDBWrite    = 5
	exitConflict   = 6
	exitForbidden  = 7
	exitNotFound   = 8
)

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &cliError{code: code, err: err}
}

// exitCode prefers an explicit cliError, then the status of a service error.
func exitCode(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	var se *services.ServiceError
	if errors.As(err, &se) {
		switch se.Status {
		case http.StatusUnprocessableEntity, http.StatusBadRequest:
			return exitValidation
		case http.StatusForbidden:
			return exitForbidden
		case http.StatusNotFound:
			return exitNotFound
		case http.StatusConflict:
			return exitConflict
		}
		return exitDBWrite
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return exitDB
	}
	return 1
}
