package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid transaction execution context")

	// Webhook ingestion errors
	ErrSignatureInvalid   = errors.New("webhook signature invalid")
	ErrMalformedPayload   = errors.New("malformed webhook payload")
	ErrUnknownReference   = errors.New("webhook references unknown payment")
	ErrNonTerminalOutcome = errors.New("non-terminal provider outcome")
	ErrDuplicateOutcome   = errors.New("duplicate terminal outcome")
	ErrIllegalTransition  = errors.New("illegal payment status transition")

	// Gateway errors
	ErrGatewayNetwork    = errors.New("gateway network failure")
	ErrGatewayRejected   = errors.New("gateway rejected request")
	ErrMalformedResponse = errors.New("malformed gateway response")
	ErrSandboxForbidden  = errors.New("sandbox operation refused on non-test endpoint")

	// Lock / session errors
	ErrLockNotAcquired     = errors.New("payment lock not acquired")
	ErrSandboxSessionState = errors.New("sandbox session is not in the required step")
)
