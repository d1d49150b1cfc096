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
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// Permission Mask
// =============================================================================

// Permissions is the 32-bit key permission mask. The mask holds four
// subject bands of six rights each: possessor (bits 24-29), user
// (bits 16-21), group (bits 8-13) and other (bits 0-5).
type Permissions uint32

// Possessor band constants.
const (
	PermPossessorView    Permissions = 0x01000000
	PermPossessorRead    Permissions = 0x02000000
	PermPossessorWrite   Permissions = 0x04000000
	PermPossessorSearch  Permissions = 0x08000000
	PermPossessorLink    Permissions = 0x10000000
	PermPossessorSetAttr Permissions = 0x20000000
	PermPossessorAll     Permissions = 0x3f000000
)

// User band constants.
const (
	PermUserView    Permissions = 0x00010000
	PermUserRead    Permissions = 0x00020000
	PermUserWrite   Permissions = 0x00040000
	PermUserSearch  Permissions = 0x00080000
	PermUserLink    Permissions = 0x00100000
	PermUserSetAttr Permissions = 0x00200000
	PermUserAll     Permissions = 0x003f0000
)

// Group band constants.
const (
	PermGroupView    Permissions = 0x00000100
	PermGroupRead    Permissions = 0x00000200
	PermGroupWrite   Permissions = 0x00000400
	PermGroupSearch  Permissions = 0x00000800
	PermGroupLink    Permissions = 0x00001000
	PermGroupSetAttr Permissions = 0x00002000
	PermGroupAll     Permissions = 0x00003f00
)

// Other band constants.
const (
	PermOtherView    Permissions = 0x00000001
	PermOtherRead    Permissions = 0x00000002
	PermOtherWrite   Permissions = 0x00000004
	PermOtherSearch  Permissions = 0x00000008
	PermOtherLink    Permissions = 0x00000010
	PermOtherSetAttr Permissions = 0x00000020
	PermOtherAll     Permissions = 0x0000003f
)

// PermissionRights is the six-bit rights set applied to a single
// subject band.
type PermissionRights uint32

const (
	RightView    PermissionRights = 0x01
	RightRead    PermissionRights = 0x02
	RightWrite   PermissionRights = 0x04
	RightSearch  PermissionRights = 0x08
	RightLink    PermissionRights = 0x10
	RightSetAttr PermissionRights = 0x20
	RightAll     PermissionRights = 0x3f
)

// Possessor extracts the possessor band rights.
func (p Permissions) Possessor() PermissionRights {
	return PermissionRights(p>>24) & RightAll
}

// User extracts the user band rights.
func (p Permissions) User() PermissionRights {
	return PermissionRights(p>>16) & RightAll
}

// Group extracts the group band rights.
func (p Permissions) Group() PermissionRights {
	return PermissionRights(p>>8) & RightAll
}

// Other extracts the other band rights.
func (p Permissions) Other() PermissionRights {
	return PermissionRights(p) & RightAll
}

// Mask returns the raw 32-bit permission mask.
func (p Permissions) Mask() uint32 {
	return uint32(p)
}

// String renders the mask the way keyctl describe does: four bands of
// "alswrv" letters, possessor first, with dashes for absent rights.
// For example a fresh user key renders as "alswrv-----v------------".
func (p Permissions) String() string {
	var b strings.Builder
	b.Grow(24)
	for _, band := range []PermissionRights{p.Possessor(), p.User(), p.Group(), p.Other()} {
		writeBand(&b, band)
	}
	return b.String()
}

func writeBand(b *strings.Builder, r PermissionRights) {
	letters := []struct {
		right PermissionRights
		char  byte
	}{
		{RightSetAttr, 'a'},
		{RightLink, 'l'},
		{RightSearch, 's'},
		{RightWrite, 'w'},
		{RightRead, 'r'},
		{RightView, 'v'},
	}
	for _, l := range letters {
		if r&l.right != 0 {
			b.WriteByte(l.char)
		} else {
			b.WriteByte('-')
		}
	}
}

// ParsePermissions converts a hexadecimal mask string, as found in key
// describe output, to a Permissions value.
func ParsePermissions(s string) (Permissions, error) {
	mask, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(s), "0x"), 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a permission mask", ErrInvalidArguments, s)
	}
	return Permissions(mask), nil
}

// =============================================================================
// Permissions Builder
// =============================================================================

// PermissionsBuilder composes a permission mask band by band.
type PermissionsBuilder struct {
	mask Permissions
}

// NewPermissionsBuilder returns a builder with an empty mask.
func NewPermissionsBuilder() *PermissionsBuilder {
	return &PermissionsBuilder{}
}

// Possessor grants rights to whoever possesses the key.
func (b *PermissionsBuilder) Possessor(r PermissionRights) *PermissionsBuilder {
	b.mask |= Permissions(r&RightAll) << 24
	return b
}

// User grants rights to the key's owning UID.
func (b *PermissionsBuilder) User(r PermissionRights) *PermissionsBuilder {
	b.mask |= Permissions(r&RightAll) << 16
	return b
}

// Group grants rights to the key's owning GID.
func (b *PermissionsBuilder) Group(r PermissionRights) *PermissionsBuilder {
	b.mask |= Permissions(r&RightAll) << 8
	return b
}

// Other grants rights to everyone else.
func (b *PermissionsBuilder) Other(r PermissionRights) *PermissionsBuilder {
	b.mask |= Permissions(r & RightAll)
	return b
}

// Build returns the composed mask.
func (b *PermissionsBuilder) Build() Permissions {
	return b.mask
}
