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

package keyring

import (
	"fmt"
	"time"

	"github.com/jeremyhahn/go-keyutils/pkg/types"
)

// Key is a handle on an individual kernel key. Like Keyring it wraps
// only the serial number: copying is safe and equality compares
// serials.
type Key struct {
	id types.ID
}

// KeyFromID adopts a known serial number without touching the kernel.
// The zero serial is rejected with types.ErrInvalidIdentifier.
func KeyFromID(id types.ID) (Key, error) {
	if !id.Valid() {
		return Key{}, fmt.Errorf("%w: key id %d", types.ErrInvalidIdentifier, int32(id))
	}
	return Key{id: id}, nil
}

// ID returns the kernel serial number the handle refers to.
func (k Key) ID() types.ID {
	return k.id
}

// Read returns a copy of the key's payload. The kernel sizes the
// transfer, so concurrent updates are handled by retrying until the
// payload fits. Reading requires read permission on the key.
func (k Key) Read() ([]byte, error) {
	return gateway.Read(k.id)
}

// Update replaces the key's payload in place; the serial number does
// not change. The same payload bounds as Keyring.AddKey apply: the
// kernel runs the user key type's payload checks on update too, so
// empty and oversized payloads are rejected with
// types.ErrInvalidArguments before any kernel call.
func (k Key) Update(payload []byte) error {
	if err := checkUserPayload(payload); err != nil {
		return err
	}
	return gateway.Update(k.id, payload)
}

// Metadata returns the key's description record: type, owner, group,
// permission mask and description string.
func (k Key) Metadata() (types.Metadata, error) {
	return describe(k.id)
}

// Describe returns the raw semicolon-delimited description record as
// reported by the kernel. Most callers want Metadata instead.
func (k Key) Describe() (string, error) {
	return gateway.Describe(k.id)
}

// SetPermissions replaces the key's permission mask.
func (k Key) SetPermissions(perm types.Permissions) error {
	return gateway.SetPerm(k.id, perm)
}

// Chown changes the key's owner and group. Passing -1 keeps the
// corresponding value. Changing the owner requires CAP_SYS_ADMIN.
func (k Key) Chown(uid, gid int) error {
	return gateway.Chown(k.id, uid, gid)
}

// SetTimeout arranges for the key to expire after the given duration,
// rounded up to whole seconds. A zero duration clears any expiry.
// Negative durations are rejected with types.ErrInvalidArguments.
func (k Key) SetTimeout(d time.Duration) error {
	secs, err := timeoutSeconds(d)
	if err != nil {
		return err
	}
	return gateway.SetTimeout(k.id, secs)
}

// Revoke revokes the key. The payload is discarded and further
// operations fail with types.ErrKeyRevoked until the kernel garbage
// collects the key.
func (k Key) Revoke() error {
	return gateway.Revoke(k.id)
}

// Invalidate marks the key for immediate garbage collection. It
// disappears from all keyrings and searches at once.
func (k Key) Invalidate() error {
	return gateway.Invalidate(k.id)
}

// =============================================================================
// Request-Key Service Operations
// =============================================================================
//
// These calls matter only inside a request-key handler, where the
// process holds the authorization key for a key under construction.

// Instantiate supplies the payload for an uninstantiated key and links
// the finished key into ring. The calling process must hold the
// authorization key; see AssumeAuthority.
func (k Key) Instantiate(payload []byte, ring Keyring) error {
	return gateway.Instantiate(k.id, payload, ring.id)
}

// Negate marks an uninstantiated key as negative for the given
// duration, rounded up to whole seconds, and links it into ring.
// Requests for the key fail fast with types.ErrKeyNotFound until the
// negative entry expires.
func (k Key) Negate(d time.Duration, ring Keyring) error {
	secs, err := timeoutSeconds(d)
	if err != nil {
		return err
	}
	return gateway.Negate(k.id, secs, ring.id)
}

// AssumeAuthority assumes the authority to instantiate the key with
// the given serial, as granted by the authorization key passed to a
// request-key handler. Passing zero divests any assumed authority.
func AssumeAuthority(id types.ID) error {
	return gateway.AssumeAuthority(id)
}
