package executor

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"modernc.org/sqlite"

	"github.com/AntonStoeckl/embedded-query-engine-go/queryengine"
)

// ErrTransactionNotFound mirrors the host-visible message and keeps its capitalization.
var (
	ErrUnknownOperation      = errors.New("unknown operation")
	ErrUnsupportedSelection  = errors.New("fragments are not supported on root fields")
	ErrMissingVariable       = errors.New("missing required variable")
	ErrInvalidUniqueWhere    = errors.New("at least one unique field must be given")
	ErrInvalidPagination     = errors.New("take and skip must not be negative")
	ErrTransactionNotFound   = errors.New("Transaction API error: Transaction not found")
	ErrUnexpectedQuerySchema = errors.New("query schema was not built by this execution service")
	ErrNoRecordReturned      = errors.New("the database returned no record")
)

// User facing error codes.
const (
	codeAuthenticationFailed  = "P1000"
	codeDatabaseUnreachable   = "P1001"
	codeDatabaseDoesNotExist  = "P1003"
	codeUniqueConstraint      = "P2002"
	codeForeignKeyConstraint  = "P2003"
	codeQueryValidation       = "P2009"
	codeRawQueryFailed        = "P2010"
	codeNullConstraint        = "P2011"
	codeTableDoesNotExist     = "P2021"
	codeTransactionNotFound   = "P2028"
	codeUnknownRequestFailure = ""
)

// SQLite extended result codes.
const (
	sqliteConstraintForeignKey = 787
	sqliteConstraintNotNull    = 1299
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

// GQLError is one entry of the errors array of a response.
type GQLError struct {
	Error           string                       `json:"error"`
	UserFacingError *queryengine.UserFacingError `json:"user_facing_error,omitempty"`
}

// GQLResponse is the response to a single query.
type GQLResponse struct {
	Data   map[string]any `json:"data,omitempty"`
	Errors []GQLError     `json:"errors,omitempty"`
}

// BatchResponse is the response to a batch. Errors is set when a transactional batch was rolled back.
type BatchResponse struct {
	BatchResult []GQLResponse `json:"batchResult"`
	Errors      []GQLError    `json:"errors,omitempty"`
}

func errorResponse(err error, userFacing *queryengine.UserFacingError) GQLResponse {
	return GQLResponse{Errors: []GQLError{{Error: err.Error(), UserFacingError: userFacing}}}
}

func newUserFacingError(code, message string, meta map[string]any) *queryengine.UserFacingError {
	return &queryengine.UserFacingError{Message: message, ErrorCode: code, Meta: meta}
}

// databaseUserFacingError classifies driver errors of all three drivers.
func databaseUserFacingError(err error) *queryengine.UserFacingError {
	if code, constraint, ok := postgresErrorCode(err); ok {
		return postgresUserFacingError(code, constraint, err)
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteUserFacingError(sqliteErr.Code(), err)
	}

	return newUserFacingError(codeUnknownRequestFailure, err.Error(), nil)
}

func postgresErrorCode(err error) (code, constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName, true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint, true
	}

	return "", "", false
}

func postgresUserFacingError(code, constraint string, err error) *queryengine.UserFacingError {
	meta := map[string]any{"database_error": err.Error()}
	if constraint != "" {
		meta["target"] = constraint
	}

	switch code {
	case "23505":
		return newUserFacingError(codeUniqueConstraint, "Unique constraint failed", meta)
	case "23503":
		return newUserFacingError(codeForeignKeyConstraint, "Foreign key constraint failed", meta)
	case "23502":
		return newUserFacingError(codeNullConstraint, "Null constraint violation", meta)
	case "42P01":
		return newUserFacingError(codeTableDoesNotExist, "The table does not exist in the current database.", meta)
	case "3D000":
		return newUserFacingError(codeDatabaseDoesNotExist, "Database does not exist on the database server", meta)
	case "28P01", "28000":
		return newUserFacingError(codeAuthenticationFailed, "Authentication failed against database server", meta)
	default:
		return newUserFacingError(codeUnknownRequestFailure, err.Error(), meta)
	}
}

func sqliteUserFacingError(code int, err error) *queryengine.UserFacingError {
	meta := map[string]any{"database_error": err.Error()}

	switch code {
	case sqliteConstraintUnique, sqliteConstraintPrimaryKey:
		return newUserFacingError(codeUniqueConstraint, "Unique constraint failed", meta)
	case sqliteConstraintForeignKey:
		return newUserFacingError(codeForeignKeyConstraint, "Foreign key constraint failed", meta)
	case sqliteConstraintNotNull:
		return newUserFacingError(codeNullConstraint, "Null constraint violation", meta)
	}

	message := err.Error()

	switch {
	case strings.Contains(message, "UNIQUE constraint failed"):
		return newUserFacingError(codeUniqueConstraint, "Unique constraint failed", meta)
	case strings.Contains(message, "FOREIGN KEY constraint failed"):
		return newUserFacingError(codeForeignKeyConstraint, "Foreign key constraint failed", meta)
	case strings.Contains(message, "NOT NULL constraint failed"):
		return newUserFacingError(codeNullConstraint, "Null constraint violation", meta)
	}

	if strings.Contains(message, "no such table") {
		return newUserFacingError(codeTableDoesNotExist, "The table does not exist in the current database.", meta)
	}

	return newUserFacingError(codeUnknownRequestFailure, message, meta)
}

// connectionUserFacingError classifies a failed connectivity check.
func connectionUserFacingError(err error, connector string) *queryengine.UserFacingError {
	if code, constraint, ok := postgresErrorCode(err); ok {
		if userFacing := postgresUserFacingError(code, constraint, err); userFacing.ErrorCode != codeUnknownRequestFailure {
			return userFacing
		}
	}

	return newUserFacingError(
		codeDatabaseUnreachable,
		"Can't reach database server",
		map[string]any{"connector": connector, "details": err.Error()},
	)
}
