package engine

import "errors"

// Sentinel errors for the recoverable failure kinds the engine can
// hit at run time: plain sentinels callers can compare against with
// errors.Is, rather than a bespoke error-code type.
var (
	ErrUnknownLabel  = errors.New("unknown label")
	ErrUnknownFunc   = errors.New("function not found")
	ErrTypeMismatch  = errors.New("operand type mismatch")
	ErrMissingArg    = errors.New("call: missing argument")
	ErrUndefinedName = errors.New("undefined variable")
	ErrNoReturnValue = errors.New("dest bound to a call with no return value")
)
