// Package source holds the error taxonomy shared by mailbox adapters.
package source

import (
	"errors"
	"fmt"
)

// TransportError indicates the mailbox session could not be
// established: DNS, TCP, TLS, or dial timeout failures.
type TransportError struct {
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mail transport %s: %v", e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransportError reports whether err (or any error in its chain) is a
// TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ProtocolError indicates the server rejected a command after the
// session was established: failed login, select, search, or fetch.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("imap %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// IsProtocolError reports whether err (or any error in its chain) is a
// ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// DecodeError indicates a single fetched message could not be
// normalized. It is scoped to one uid; the rest of the batch proceeds.
type DecodeError struct {
	UID uint32
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding message uid=%d: %v", e.UID, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecodeError reports whether err (or any error in its chain) is a
// DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
