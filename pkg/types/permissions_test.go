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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPermissions_Bands(t *testing.T) {
	// Mask of a freshly added user key: possessor everything, user view.
	p := Permissions(0x3f010000)

	assert.Equal(t, RightAll, p.Possessor())
	assert.Equal(t, RightView, p.User())
	assert.Equal(t, PermissionRights(0), p.Group())
	assert.Equal(t, PermissionRights(0), p.Other())
	assert.Equal(t, uint32(0x3f010000), p.Mask())
}

func TestPermissions_BandConstants(t *testing.T) {
	tests := []struct {
		name string
		perm Permissions
		want uint32
	}{
		{"PossessorView", PermPossessorView, 0x01000000},
		{"PossessorAll", PermPossessorAll, 0x3f000000},
		{"UserRead", PermUserRead, 0x00020000},
		{"UserAll", PermUserAll, 0x003f0000},
		{"GroupSearch", PermGroupSearch, 0x00000800},
		{"GroupAll", PermGroupAll, 0x00003f00},
		{"OtherSetAttr", PermOtherSetAttr, 0x00000020},
		{"OtherAll", PermOtherAll, 0x0000003f},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.perm.Mask())
		})
	}
}

func TestPermissions_String(t *testing.T) {
	tests := []struct {
		name string
		perm Permissions
		want string
	}{
		{"Empty", Permissions(0), "------------------------"},
		{"FreshUserKey", Permissions(0x3f010000), "alswrv-----v------------"},
		{"PossessorAll_UserAll", PermPossessorAll | PermUserAll, "alswrvalswrv------------"},
		{"OtherViewOnly", PermOtherView, "-----------------------v"},
		{"GroupReadSearch", PermGroupRead | PermGroupSearch, "--------------s-r-------"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.perm.String())
			assert.Len(t, tt.perm.String(), 24)
		})
	}
}

func TestParsePermissions(t *testing.T) {
	tests := []struct {
		name    string
		s       string
		want    Permissions
		wantErr bool
	}{
		{"FreshUserKey", "3f010000", Permissions(0x3f010000), false},
		{"Prefixed", "0x3f010000", Permissions(0x3f010000), false},
		{"Zero", "0", Permissions(0), false},
		{"Whitespace", " 3f3f3f3f ", Permissions(0x3f3f3f3f), false},
		{"Empty", "", 0, true},
		{"NotHex", "zz", 0, true},
		{"TooWide", "100000000", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePermissions(tt.s)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidArguments)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPermissionsBuilder(t *testing.T) {
	perm := NewPermissionsBuilder().
		Possessor(RightAll).
		User(RightView | RightRead).
		Group(RightSearch).
		Other(RightView).
		Build()

	assert.Equal(t, RightAll, perm.Possessor())
	assert.Equal(t, RightView|RightRead, perm.User())
	assert.Equal(t, RightSearch, perm.Group())
	assert.Equal(t, RightView, perm.Other())
	assert.Equal(t, uint32(0x3f030801), perm.Mask())
}

func TestPermissionsBuilder_Empty(t *testing.T) {
	assert.Equal(t, Permissions(0), NewPermissionsBuilder().Build())
}

func TestPermissionsBuilder_Accumulates(t *testing.T) {
	perm := NewPermissionsBuilder().
		User(RightView).
		User(RightRead).
		Build()

	assert.Equal(t, RightView|RightRead, perm.User())
}

func TestPermissionsBuilder_MasksOverflow(t *testing.T) {
	// Bits beyond the six rights must not leak into adjacent bands.
	perm := NewPermissionsBuilder().Other(PermissionRights(0xff)).Build()

	assert.Equal(t, RightAll, perm.Other())
	assert.Equal(t, PermissionRights(0), perm.Group())
}

func TestPermissions_BuilderMatchesConstants(t *testing.T) {
	built := NewPermissionsBuilder().Possessor(RightAll).User(RightView).Build()
	assert.Equal(t, PermPossessorAll|PermUserView, built)
}
