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

// Package keyring provides typed handles over the Linux kernel key
// retention service.
//
// A Keyring is a handle on a kernel keyring and a Key is a handle on an
// individual key. Both wrap nothing but the kernel serial number, so
// they are cheap to copy, comparable, and safe to share between
// goroutines; all state lives in the kernel.
//
// Handles are obtained by resolving one of the kernel's special keyring
// IDs (FromSpecial), adopting a known serial (FromID), joining a session
// keyring (JoinSession, DefaultSession), or acquiring the calling user's
// persistent keyring (GetPersistent). Keys are created with
// Keyring.AddKey and located with Keyring.RequestKey or Keyring.Search.
//
// Errors returned by this package come from the taxonomy in pkg/types:
// callers branch with errors.Is against sentinels such as
// types.ErrKeyNotFound and types.ErrPermissionDenied instead of
// matching raw errnos.
package keyring

import (
	"fmt"
	"time"

	"github.com/jeremyhahn/go-keyutils/pkg/keyctl"
	"github.com/jeremyhahn/go-keyutils/pkg/types"
)

// gateway is the kernel interface behind every operation in this
// package. Tests swap it for a mock via SetGateway.
var gateway keyctl.Gateway = keyctl.System()

// SetGateway replaces the kernel gateway used by this package and
// returns a function that restores the previous one. It exists for
// tests and must not be called concurrently with keyring operations.
func SetGateway(g keyctl.Gateway) func() {
	prev := gateway
	gateway = g
	return func() { gateway = prev }
}

// =============================================================================
// Keyring Handle
// =============================================================================

// Keyring is a handle on a kernel keyring. The zero value is not a
// usable handle; obtain one from a constructor.
type Keyring struct {
	id types.ID
}

// ID returns the kernel serial number the handle refers to.
func (r Keyring) ID() types.ID {
	return r.id
}

// FromSpecial resolves one of the kernel's special keyring IDs into a
// concrete handle. Resolution happens once, at the point of call: the
// returned handle carries the real serial, so it stays pinned to the
// keyring that was current for the calling thread even if the thread's
// keyrings change afterwards.
//
// With create set, the kernel instantiates the thread, process, session
// and user keyrings on first use. With create unset, resolving a
// keyring that has never been instantiated fails with
// types.ErrKeyNotFound. The group keyring is accepted here but is not
// implemented by the kernel, which reports types.ErrInvalidArguments.
func FromSpecial(spec types.SpecialID, create bool) (Keyring, error) {
	if !spec.IsValid() {
		return Keyring{}, fmt.Errorf("%w: special keyring id %d", types.ErrInvalidIdentifier, int32(spec))
	}
	id, err := gateway.GetKeyringID(spec.ID(), create)
	if err != nil {
		return Keyring{}, err
	}
	return Keyring{id: id}, nil
}

// FromID adopts a known serial number without touching the kernel. The
// zero serial is rejected with types.ErrInvalidIdentifier. Negative
// values are accepted and behave as the corresponding special keyring
// ID, re-resolved by the kernel on every operation.
func FromID(id types.ID) (Keyring, error) {
	if !id.Valid() {
		return Keyring{}, fmt.Errorf("%w: keyring id %d", types.ErrInvalidIdentifier, int32(id))
	}
	return Keyring{id: id}, nil
}

// GetPersistent acquires the calling user's persistent keyring and
// links it into the keyring named by link. The kernel creates the
// persistent keyring on first acquisition; later acquisitions return
// the same serial and reset its expiry clock. The UID is always the
// calling user's; acquiring another user's persistent keyring requires
// CAP_SETUID and is deliberately not exposed here.
func GetPersistent(link types.SpecialID) (Keyring, error) {
	target, err := FromSpecial(link, true)
	if err != nil {
		return Keyring{}, err
	}
	id, err := gateway.GetPersistent(-1, target.id)
	if err != nil {
		return Keyring{}, err
	}
	return Keyring{id: id}, nil
}

// JoinSession makes the keyring with the given name the calling
// process's session keyring, creating it if no keyring of that name
// exists. An empty name behaves like DefaultSession.
func JoinSession(name string) (Keyring, error) {
	if name == "" {
		return DefaultSession()
	}
	if err := keyctl.CheckDescription(name); err != nil {
		return Keyring{}, err
	}
	id, err := gateway.JoinSessionKeyring(name)
	if err != nil {
		return Keyring{}, err
	}
	return Keyring{id: id}, nil
}

// DefaultSession replaces the calling process's session keyring with a
// fresh anonymous one and returns a handle on it.
func DefaultSession() (Keyring, error) {
	id, err := gateway.JoinSessionKeyring("")
	if err != nil {
		return Keyring{}, err
	}
	return Keyring{id: id}, nil
}

// =============================================================================
// Key Creation and Lookup
// =============================================================================

// AddKey creates a user key with the given description and payload,
// linked into the keyring. If the keyring already holds a user key with
// the same description, the kernel updates that key in place and the
// existing serial number is returned; otherwise a new key is created.
//
// The kernel's user key type takes 1 to types.MaxUserPayloadSize
// payload bytes. Payloads outside that range and empty descriptions
// are rejected with types.ErrInvalidArguments before any kernel call.
func (r Keyring) AddKey(description string, payload []byte) (Key, error) {
	if err := checkAddDescription(description); err != nil {
		return Key{}, err
	}
	if err := checkUserPayload(payload); err != nil {
		return Key{}, err
	}
	id, err := gateway.AddKey(types.KeyTypeUser, description, payload, r.id)
	if err != nil {
		return Key{}, err
	}
	return Key{id: id}, nil
}

// CreateKeyring creates a nested keyring with the given description,
// linked into the keyring. If a keyring with the same description is
// already linked here it is displaced: keyrings cannot be updated in
// place, so the new keyring gets a fresh serial number and the old one
// drops out of this keyring.
func (r Keyring) CreateKeyring(description string) (Keyring, error) {
	if err := checkAddDescription(description); err != nil {
		return Keyring{}, err
	}
	id, err := gateway.AddKey(types.KeyTypeKeyring, description, nil, r.id)
	if err != nil {
		return Keyring{}, err
	}
	return Keyring{id: id}, nil
}

// RequestKey asks the kernel for a user key with the given description.
// The kernel searches the calling thread's keyrings and, when the key
// is found, links it into the keyring. No callout is made: an absent
// key fails with types.ErrKeyNotFound.
func (r Keyring) RequestKey(description string) (Key, error) {
	return r.requestKey(description, "")
}

// RequestKeyWithCallout is RequestKey with callout info. When the
// search comes up empty the kernel invokes /sbin/request-key with the
// callout info, giving user space a chance to construct and
// instantiate the key before the call returns.
func (r Keyring) RequestKeyWithCallout(description, callout string) (Key, error) {
	if err := keyctl.CheckDescription(callout); err != nil {
		return Key{}, err
	}
	return r.requestKey(description, callout)
}

func (r Keyring) requestKey(description, callout string) (Key, error) {
	if err := keyctl.CheckDescription(description); err != nil {
		return Key{}, err
	}
	id, err := gateway.RequestKey(types.KeyTypeUser, description, callout, r.id)
	if err != nil {
		return Key{}, err
	}
	return Key{id: id}, nil
}

// Search performs a breadth-first search for a user key with the given
// description, starting at the keyring and descending through every
// nested keyring that grants search permission, to the kernel's nesting
// limit. The found key is returned as a handle only; it is not linked
// anywhere. An absent key fails with types.ErrKeyNotFound.
func (r Keyring) Search(description string) (Key, error) {
	if err := keyctl.CheckDescription(description); err != nil {
		return Key{}, err
	}
	id, err := gateway.Search(r.id, types.KeyTypeUser, description, 0)
	if err != nil {
		return Key{}, err
	}
	return Key{id: id}, nil
}

// SearchKeyring is Search for a nested keyring instead of a user key.
func (r Keyring) SearchKeyring(description string) (Keyring, error) {
	if err := keyctl.CheckDescription(description); err != nil {
		return Keyring{}, err
	}
	id, err := gateway.Search(r.id, types.KeyTypeKeyring, description, 0)
	if err != nil {
		return Keyring{}, err
	}
	return Keyring{id: id}, nil
}

// =============================================================================
// Link Management
// =============================================================================

// LinkKey links the given key into the keyring. Linking a key that
// would displace an existing key of the same type and description
// unlinks the old one. Creating a cycle fails with
// types.ErrKeyringCycle; exceeding the kernel's nesting limit fails
// with types.ErrNestingTooDeep.
func (r Keyring) LinkKey(k Key) error {
	return gateway.Link(k.id, r.id)
}

// UnlinkKey removes the link to the given key from the keyring. A link
// that does not exist fails with types.ErrKeyNotFound.
func (r Keyring) UnlinkKey(k Key) error {
	return gateway.Unlink(k.id, r.id)
}

// LinkKeyring links another keyring into the keyring, subject to the
// same cycle and nesting checks as LinkKey.
func (r Keyring) LinkKeyring(other Keyring) error {
	return gateway.Link(other.id, r.id)
}

// UnlinkKeyring removes the link to another keyring.
func (r Keyring) UnlinkKeyring(other Keyring) error {
	return gateway.Unlink(other.id, r.id)
}

// LinkKeyringID resolves the given special keyring, creating it if it
// has never been instantiated, and links it into the keyring.
func (r Keyring) LinkKeyringID(spec types.SpecialID) error {
	other, err := FromSpecial(spec, true)
	if err != nil {
		return err
	}
	return gateway.Link(other.id, r.id)
}

// UnlinkKeyringID resolves the given special keyring without creating
// it and removes its link from the keyring. A special keyring that has
// never been instantiated fails with types.ErrKeyNotFound.
func (r Keyring) UnlinkKeyringID(spec types.SpecialID) error {
	other, err := FromSpecial(spec, false)
	if err != nil {
		return err
	}
	return gateway.Unlink(other.id, r.id)
}

// Clear atomically removes every link from the keyring.
func (r Keyring) Clear() error {
	return gateway.Clear(r.id)
}

// =============================================================================
// Attributes
// =============================================================================

// Metadata returns the keyring's description record: type, owner,
// group, permission mask and description string.
func (r Keyring) Metadata() (types.Metadata, error) {
	return describe(r.id)
}

// SetPermissions replaces the keyring's permission mask.
func (r Keyring) SetPermissions(perm types.Permissions) error {
	return gateway.SetPerm(r.id, perm)
}

// Chown changes the keyring's owner and group. Passing -1 keeps the
// corresponding value. Changing the owner requires CAP_SYS_ADMIN.
func (r Keyring) Chown(uid, gid int) error {
	return gateway.Chown(r.id, uid, gid)
}

// SetTimeout arranges for the keyring to expire after the given
// duration, rounded up to whole seconds. A zero duration clears any
// expiry. Negative durations are rejected with
// types.ErrInvalidArguments.
func (r Keyring) SetTimeout(d time.Duration) error {
	secs, err := timeoutSeconds(d)
	if err != nil {
		return err
	}
	return gateway.SetTimeout(r.id, secs)
}

// Revoke revokes the keyring. Further operations on it fail with
// types.ErrKeyRevoked until the kernel garbage collects it.
func (r Keyring) Revoke() error {
	return gateway.Revoke(r.id)
}

// Invalidate marks the keyring for immediate garbage collection. It
// disappears from all searches at once.
func (r Keyring) Invalidate() error {
	return gateway.Invalidate(r.id)
}

// =============================================================================
// Helpers
// =============================================================================

func describe(id types.ID) (types.Metadata, error) {
	raw, err := gateway.Describe(id)
	if err != nil {
		return types.Metadata{}, err
	}
	return types.ParseMetadata(raw)
}

func checkAddDescription(description string) error {
	if err := keyctl.CheckDescription(description); err != nil {
		return err
	}
	if description == "" {
		return fmt.Errorf("%w: description must not be empty", types.ErrInvalidArguments)
	}
	return nil
}

// checkUserPayload mirrors the user key type's preparse bounds, which
// the kernel applies on both add and update.
func checkUserPayload(payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: user keys do not accept empty payloads", types.ErrInvalidArguments)
	}
	if len(payload) > types.MaxUserPayloadSize {
		return fmt.Errorf("%w: payload of %d bytes exceeds the user key limit of %d",
			types.ErrInvalidArguments, len(payload), types.MaxUserPayloadSize)
	}
	return nil
}

func timeoutSeconds(d time.Duration) (uint, error) {
	if d < 0 {
		return 0, fmt.Errorf("%w: negative timeout %s", types.ErrInvalidArguments, d)
	}
	if d == 0 {
		return 0, nil
	}
	// Round up so sub-second timeouts do not silently clear the expiry.
	secs := (d + time.Second - 1) / time.Second
	return uint(secs), nil
}
