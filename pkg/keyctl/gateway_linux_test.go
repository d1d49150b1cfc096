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

//go:build linux

package keyctl

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/jeremyhahn/go-keyutils/pkg/types"
)

func TestMapErrno(t *testing.T) {
	tests := []struct {
		name  string
		errno unix.Errno
		want  error
	}{
		{"ENOKEY", unix.ENOKEY, types.ErrKeyNotFound},
		{"EKEYEXPIRED", unix.EKEYEXPIRED, types.ErrKeyExpired},
		{"EKEYREVOKED", unix.EKEYREVOKED, types.ErrKeyRevoked},
		{"EKEYREJECTED", unix.EKEYREJECTED, types.ErrKeyRejected},
		{"EACCES", unix.EACCES, types.ErrPermissionDenied},
		{"EPERM", unix.EPERM, types.ErrPermissionDenied},
		{"EDQUOT", unix.EDQUOT, types.ErrQuotaExceeded},
		{"EDEADLK", unix.EDEADLK, types.ErrKeyringCycle},
		{"ELOOP", unix.ELOOP, types.ErrNestingTooDeep},
		{"EINVAL", unix.EINVAL, types.ErrInvalidArguments},
		{"EOPNOTSUPP", unix.EOPNOTSUPP, types.ErrOperationNotSupported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapErrno(tt.errno)
			assert.ErrorIs(t, got, tt.want)
		})
	}
}

func TestMapErrno_Nil(t *testing.T) {
	assert.NoError(t, mapErrno(nil))
}

func TestMapErrno_Unmapped(t *testing.T) {
	got := mapErrno(unix.ENOMEM)

	var kerr *types.KernelError
	require.ErrorAs(t, got, &kerr)
	assert.Equal(t, unix.ENOMEM, unix.Errno(kerr.Errno))
	assert.ErrorIs(t, got, unix.ENOMEM)
}

func TestMapErrno_WrappedErrno(t *testing.T) {
	wrapped := fmt.Errorf("keyctl: %w", unix.ENOKEY)
	assert.ErrorIs(t, mapErrno(wrapped), types.ErrKeyNotFound)
}

func TestMapErrno_NonErrno(t *testing.T) {
	plain := errors.New("not an errno")
	assert.Equal(t, plain, mapErrno(plain))
}

func TestSystem_ReturnsGateway(t *testing.T) {
	require.NotNil(t, System())
}
