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
// Key Metadata
// =============================================================================

// Metadata holds the attributes the kernel reports for a key through
// the describe operation.
type Metadata struct {
	// Type is the key's registered type name.
	Type KeyType

	// UID is the key's owning user ID.
	UID int

	// GID is the key's owning group ID.
	GID int

	// Permissions is the key's 32-bit permission mask.
	Permissions Permissions

	// Description is the key's description string.
	Description string
}

// describeFieldCount is the number of ;-separated fields in a kernel
// describe string: type;uid;gid;perm;description.
const describeFieldCount = 5

// ParseMetadata parses a kernel describe string of the form
// "type;uid;gid;perm;description" into a Metadata value. The split is
// bounded at five fields so descriptions containing semicolons survive
// intact. The permission field is hexadecimal.
func ParseMetadata(raw string) (Metadata, error) {
	parts := strings.SplitN(raw, ";", describeFieldCount)
	if len(parts) != describeFieldCount {
		return Metadata{}, fmt.Errorf("%w: describe string %q has %d fields, want %d",
			ErrInvalidDescription, raw, len(parts), describeFieldCount)
	}

	uid, err := strconv.Atoi(parts[1])
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: describe uid %q is not numeric", ErrInvalidDescription, parts[1])
	}

	gid, err := strconv.Atoi(parts[2])
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: describe gid %q is not numeric", ErrInvalidDescription, parts[2])
	}

	perm, err := strconv.ParseUint(parts[3], 16, 32)
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: describe permission mask %q is not hexadecimal", ErrInvalidDescription, parts[3])
	}

	return Metadata{
		Type:        KeyType(parts[0]),
		UID:         uid,
		GID:         gid,
		Permissions: Permissions(perm),
		Description: parts[4],
	}, nil
}

// String renders the metadata back into the kernel describe format.
func (m Metadata) String() string {
	return fmt.Sprintf("%s;%d;%d;%08x;%s", m.Type, m.UID, m.GID, m.Permissions.Mask(), m.Description)
}
