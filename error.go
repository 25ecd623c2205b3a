package kvom

import "fmt"

type ErrorCode int

const (
	Unknown ErrorCode = iota
	// FutureNotReady signals a read of a Future before its batch executed.
	FutureNotReady
	// FutureReuse signals a second resolution of a single-assignment Future.
	FutureReuse
	// BackendProtocol signals a failed round trip of one connection group.
	BackendProtocol
	// MissingPrimaryKey signals a record without a primary key value.
	MissingPrimaryKey
	// MissingRequiredField signals a save of a record lacking a required field.
	MissingRequiredField
	// CorruptColdEntry signals a cold entry whose restore failed checksum verification.
	CorruptColdEntry
)

// KVOM custom error.
type Error struct {
	Code     ErrorCode
	Err      error
	UserData any
}

func (e Error) Error() string {
	return fmt.Errorf("error code: %d, user data: %v, details: %w", e.Code, e.UserData, e.Err).Error()
}

func (e Error) Unwrap() error {
	return e.Err
}

// Is reports whether err carries the given kvom error code.
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	if e, ok := err.(Error); ok {
		return e.Code == code
	}
	return false
}
