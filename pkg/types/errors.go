// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-keyutils.
//
// go-keyutils is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package types

import (
	"errors"
	"fmt"
	"syscall"
)

// =============================================================================
// Error Taxonomy
// =============================================================================

var (
	// ErrKeyNotFound indicates the requested key or keyring does not
	// exist, has not been instantiated, or was not reachable from the
	// search root.
	ErrKeyNotFound = errors.New("keyutils: key not found")

	// ErrKeyExpired indicates the key's timeout has elapsed.
	ErrKeyExpired = errors.New("keyutils: key has expired")

	// ErrKeyRevoked indicates the key has been revoked.
	ErrKeyRevoked = errors.New("keyutils: key has been revoked")

	// ErrKeyRejected indicates a request-key callout negatively
	// instantiated the key.
	ErrKeyRejected = errors.New("keyutils: key was rejected")

	// ErrPermissionDenied indicates the caller lacks the permission the
	// operation requires on the key or keyring.
	ErrPermissionDenied = errors.New("keyutils: permission denied")

	// ErrQuotaExceeded indicates the owning user's key quota would be
	// exceeded.
	ErrQuotaExceeded = errors.New("keyutils: key quota exceeded")

	// ErrKeyringCycle indicates a link operation would introduce a cycle
	// into the keyring graph.
	ErrKeyringCycle = errors.New("keyutils: link would create a keyring cycle")

	// ErrNestingTooDeep indicates the keyring graph exceeds the kernel's
	// nesting limit.
	ErrNestingTooDeep = errors.New("keyutils: keyring nesting too deep")

	// ErrInvalidIdentifier indicates a value that cannot name a key or
	// keyring, such as the zero serial or an unknown special identifier.
	ErrInvalidIdentifier = errors.New("keyutils: invalid key identifier")

	// ErrInvalidDescription indicates a description that cannot cross
	// the syscall boundary, such as one containing a NUL byte, or a
	// kernel describe string that does not parse.
	ErrInvalidDescription = errors.New("keyutils: invalid key description")

	// ErrInvalidArguments indicates arguments the kernel or this module
	// rejects before performing the operation.
	ErrInvalidArguments = errors.New("keyutils: invalid arguments")

	// ErrOperationNotSupported indicates the operation is unavailable,
	// either on this platform or for this key type.
	ErrOperationNotSupported = errors.New("keyutils: operation not supported")
)

// KernelError carries a raw errno for kernel failures outside the
// semantic taxonomy. Callers match it with errors.As, or reach the
// errno itself through errors.Is against syscall.Errno values.
type KernelError struct {
	Errno syscall.Errno
}

// Error returns the errno's message and number.
func (e *KernelError) Error() string {
	return fmt.Sprintf("keyutils: kernel error: %v (errno %d)", e.Errno, int(e.Errno))
}

// Unwrap exposes the underlying errno.
func (e *KernelError) Unwrap() error {
	return e.Errno
}
