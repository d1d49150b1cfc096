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

// Package keyctl exposes the kernel key retention service behind a
// narrow Gateway interface. The Gateway carries one method per kernel
// operation this module uses; the Linux implementation delegates to the
// add_key(2), request_key(2) and keyctl(2) syscalls through
// golang.org/x/sys/unix and translates every errno into the error
// taxonomy in pkg/types. Higher layers depend on the interface so tests
// can substitute the in-memory simulation in pkg/keyctl/mocks.
package keyctl

import (
	"fmt"
	"strings"

	"github.com/jeremyhahn/go-keyutils/pkg/types"
)

// Gateway is the kernel key retention service surface. Identifier
// arguments accept real serial numbers and, where the kernel allows it,
// the special keyring placeholders in types; the kernel substitutes the
// calling context's keyring at point of use.
type Gateway interface {
	// AddKey creates or updates a key of the given type under ring and
	// returns its serial number. Adding a description that already
	// exists in the ring atomically displaces the old key.
	AddKey(keyType types.KeyType, description string, payload []byte, ring types.ID) (types.ID, error)

	// RequestKey searches the calling process's subscribed keyrings for
	// a key. When callout is non-empty and the key is missing, the
	// kernel invokes /sbin/request-key to construct it. A found or
	// constructed key is linked into dest when dest is non-zero.
	RequestKey(keyType types.KeyType, description, callout string, dest types.ID) (types.ID, error)

	// GetKeyringID resolves an identifier, typically one of the special
	// keyring placeholders, to a real serial number. When create is true
	// the kernel instantiates missing per-context keyrings instead of
	// failing.
	GetKeyringID(id types.ID, create bool) (types.ID, error)

	// JoinSessionKeyring joins the named session keyring, creating it if
	// needed, or creates a fresh anonymous session when name is empty.
	JoinSessionKeyring(name string) (types.ID, error)

	// Update replaces a key's payload.
	Update(id types.ID, payload []byte) error

	// Revoke marks a key revoked. Further operations on it fail.
	Revoke(id types.ID) error

	// Invalidate marks a key invalid and schedules immediate garbage
	// collection.
	Invalidate(id types.ID) error

	// Chown changes a key's owning UID and GID. An argument of -1
	// leaves that owner unchanged.
	Chown(id types.ID, uid, gid int) error

	// SetPerm replaces a key's permission mask.
	SetPerm(id types.ID, perm types.Permissions) error

	// Describe returns the kernel's type;uid;gid;perm;description
	// string for a key.
	Describe(id types.ID) (string, error)

	// Clear unlinks every key from a keyring.
	Clear(ring types.ID) error

	// Link adds a link to id into ring, displacing any existing link to
	// a key of the same type and description.
	Link(id, ring types.ID) error

	// Unlink removes the link to id from ring.
	Unlink(id, ring types.ID) error

	// Search performs the kernel's breadth-first search for a key below
	// ring, descending only through searchable keyrings. A found key is
	// linked into dest when dest is non-zero.
	Search(ring types.ID, keyType types.KeyType, description string, dest types.ID) (types.ID, error)

	// Read returns a key's payload, retrying with a larger buffer until
	// it fits. For keyrings the payload is the packed array of 32-bit
	// serial numbers of every linked key.
	Read(id types.ID) ([]byte, error)

	// ReadInto reads a key's payload into buf and returns the payload's
	// full size, which can exceed len(buf). For keyrings the kernel
	// copies only as many whole 32-bit entries as fit.
	ReadInto(id types.ID, buf []byte) (int, error)

	// SetTimeout sets a key's expiry in seconds from now. Zero clears
	// the timeout.
	SetTimeout(id types.ID, seconds uint) error

	// GetPersistent acquires the persistent keyring for a UID and links
	// it into ring. A uid of -1 names the calling process's real UID.
	GetPersistent(uid int, ring types.ID) (types.ID, error)

	// Instantiate positively instantiates an uninstantiated key with a
	// payload and links it into ring. Requires request-key authority.
	Instantiate(id types.ID, payload []byte, ring types.ID) error

	// Negate negatively instantiates an uninstantiated key for timeout
	// seconds and links it into ring. Requires request-key authority.
	Negate(id types.ID, timeout uint, ring types.ID) error

	// AssumeAuthority assumes the authority granted by a request_key
	// authorisation key, or divests it when id is zero.
	AssumeAuthority(id types.ID) error
}

// CheckDescription validates a key description before it crosses the
// syscall boundary. Descriptions travel as NUL-terminated C strings, so
// an embedded NUL byte cannot be represented and is rejected here
// rather than surfacing as a misleading kernel error.
func CheckDescription(description string) error {
	if strings.IndexByte(description, 0) >= 0 {
		return fmt.Errorf("%w: description contains a NUL byte", types.ErrInvalidDescription)
	}
	if len(description) > types.MaxDescriptionSize {
		return fmt.Errorf("%w: description exceeds %d bytes", types.ErrInvalidDescription, types.MaxDescriptionSize)
	}
	return nil
}
