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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelErrors_Distinct(t *testing.T) {
	sentinels := []error{
		ErrKeyNotFound,
		ErrKeyExpired,
		ErrKeyRevoked,
		ErrKeyRejected,
		ErrPermissionDenied,
		ErrQuotaExceeded,
		ErrKeyringCycle,
		ErrNestingTooDeep,
		ErrInvalidIdentifier,
		ErrInvalidDescription,
		ErrInvalidArguments,
		ErrOperationNotSupported,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.NotErrorIs(t, a, b)
		}
	}
}

func TestSentinelErrors_Prefix(t *testing.T) {
	assert.Contains(t, ErrKeyNotFound.Error(), "keyutils:")
	assert.Contains(t, ErrKeyringCycle.Error(), "keyutils:")
}

func TestSentinelErrors_WrappedMatch(t *testing.T) {
	wrapped := fmt.Errorf("add key %q: %w", "svc", ErrQuotaExceeded)

	assert.ErrorIs(t, wrapped, ErrQuotaExceeded)
	assert.NotErrorIs(t, wrapped, ErrKeyNotFound)
}

func TestKernelError(t *testing.T) {
	err := &KernelError{Errno: syscall.ENOMEM}

	assert.Contains(t, err.Error(), "kernel error")
	assert.Contains(t, err.Error(), syscall.ENOMEM.Error())
	assert.ErrorIs(t, err, syscall.ENOMEM)

	var kerr *KernelError
	require.ErrorAs(t, fmt.Errorf("read: %w", error(err)), &kerr)
	assert.Equal(t, syscall.ENOMEM, kerr.Errno)
}

func TestKernelError_NotSentinel(t *testing.T) {
	err := &KernelError{Errno: syscall.EIO}

	assert.False(t, errors.Is(err, ErrKeyNotFound))
	assert.False(t, errors.Is(err, ErrPermissionDenied))
}
