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

// Package types contains shared type definitions used across the keyutils
// module, including kernel key serial numbers, special keyring identifiers,
// key types, permission masks, and the error taxonomy. This package has no
// dependencies on pkg/keyctl or pkg/keyring to prevent import cycles.
package types

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxDescriptionSize is the maximum length of a key description,
	// excluding the NUL terminator (KEY_MAX_DESC_SIZE - 1).
	MaxDescriptionSize = 4095

	// MaxUserPayloadSize is the maximum payload length the kernel accepts
	// for a "user" type key.
	MaxUserPayloadSize = 32767
)

// =============================================================================
// Serial Numbers
// =============================================================================

// ID is a kernel key serial number. Serial numbers are signed 32-bit
// integers assigned by the kernel. Zero is never a valid serial number,
// and the negative range -1..-8 is reserved for the special keyring
// identifiers that the kernel resolves at point of use.
type ID int32

// Valid returns true if the ID could name a key or keyring. Zero is
// never valid.
func (id ID) Valid() bool {
	return id != 0
}

// IsSpecial returns true if the ID falls in the reserved special
// keyring range.
func (id ID) IsSpecial() bool {
	return id >= ID(KeyringRequestor) && id <= ID(KeyringThread)
}

// String returns the decimal representation of the serial number.
func (id ID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseID converts a decimal string to an ID. It rejects values outside
// the signed 32-bit range and the never-valid zero serial.
func ParseID(s string) (ID, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a key serial number", ErrInvalidIdentifier, s)
	}
	if n == 0 {
		return 0, fmt.Errorf("%w: zero is never a valid key serial number", ErrInvalidIdentifier)
	}
	return ID(n), nil
}

// =============================================================================
// Special Keyring Identifiers
// =============================================================================

// SpecialID identifies one of the kernel's per-context keyrings. These
// values are placeholders, not serial numbers: the kernel substitutes
// the real keyring of the calling context each time one crosses the
// syscall boundary.
type SpecialID int32

const (
	// KeyringThread is the calling thread's keyring (@t).
	KeyringThread SpecialID = -1

	// KeyringProcess is the calling process's keyring (@p).
	KeyringProcess SpecialID = -2

	// KeyringSession is the session keyring the process subscribes to (@s).
	KeyringSession SpecialID = -3

	// KeyringUser is the calling user's UID keyring (@u).
	KeyringUser SpecialID = -4

	// KeyringUserSession is the calling user's UID session keyring (@us).
	KeyringUserSession SpecialID = -5

	// KeyringGroup is the calling group's GID keyring (@g). The kernel
	// reserves this identifier but has never implemented it.
	KeyringGroup SpecialID = -6

	// KeyringReqKeyAuth is the request_key authorisation key (@a),
	// available inside a request-key callout.
	KeyringReqKeyAuth SpecialID = -7

	// KeyringRequestor is the keyring of the process that triggered a
	// request-key callout.
	KeyringRequestor SpecialID = -8
)

// String returns the canonical name of the special keyring.
func (s SpecialID) String() string {
	switch s {
	case KeyringThread:
		return "thread"
	case KeyringProcess:
		return "process"
	case KeyringSession:
		return "session"
	case KeyringUser:
		return "user"
	case KeyringUserSession:
		return "user-session"
	case KeyringGroup:
		return "group"
	case KeyringReqKeyAuth:
		return "reqkey-auth"
	case KeyringRequestor:
		return "requestor"
	default:
		return "unknown"
	}
}

// IsValid returns true if the value is one of the kernel's special
// keyring identifiers.
func (s SpecialID) IsValid() bool {
	return s >= KeyringRequestor && s <= KeyringThread
}

// ID returns the identifier as a raw serial-number placeholder.
func (s SpecialID) ID() ID {
	return ID(s)
}

// ParseSpecialID converts a string to a SpecialID. It accepts the
// canonical names returned by String as well as the keyctl(1) style
// @-aliases (@t, @p, @s, @u, @us, @g, @a).
func ParseSpecialID(s string) (SpecialID, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "thread", "@t":
		return KeyringThread, nil
	case "process", "@p":
		return KeyringProcess, nil
	case "session", "@s":
		return KeyringSession, nil
	case "user", "@u":
		return KeyringUser, nil
	case "user-session", "@us":
		return KeyringUserSession, nil
	case "group", "@g":
		return KeyringGroup, nil
	case "reqkey-auth", "@a":
		return KeyringReqKeyAuth, nil
	case "requestor":
		return KeyringRequestor, nil
	default:
		return 0, fmt.Errorf("%w: unknown special keyring %q", ErrInvalidIdentifier, s)
	}
}

// ParseKeyRef converts a user-supplied key or keyring reference to an
// ID. It accepts the special keyring names and @-aliases understood by
// ParseSpecialID as well as decimal serial numbers.
func ParseKeyRef(s string) (ID, error) {
	if spec, err := ParseSpecialID(s); err == nil {
		return spec.ID(), nil
	}
	return ParseID(s)
}

// =============================================================================
// Key Type
// =============================================================================

// KeyType identifies a kernel key type by its registered name.
type KeyType string

const (
	// KeyTypeUser is the general purpose "user" key type carrying an
	// opaque payload readable from user space.
	KeyTypeUser KeyType = "user"

	// KeyTypeKeyring is the kernel "keyring" type: a key whose payload
	// is a list of links to other keys.
	KeyTypeKeyring KeyType = "keyring"

	// KeyTypeLogon is the "logon" type: payloads are writable from user
	// space but never readable back.
	KeyTypeLogon KeyType = "logon"

	// KeyTypeBigKey is the "big_key" type for payloads too large to hold
	// in kernel memory.
	KeyTypeBigKey KeyType = "big_key"
)

// String returns the registered key type name.
func (kt KeyType) String() string {
	return string(kt)
}

// IsValid returns true if the key type is one this module understands.
func (kt KeyType) IsValid() bool {
	switch kt {
	case KeyTypeUser, KeyTypeKeyring, KeyTypeLogon, KeyTypeBigKey:
		return true
	default:
		return false
	}
}
