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
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/jeremyhahn/go-keyutils/pkg/types"
)

// readBufferSize is the initial buffer for payload reads. Reads retry
// with the size the kernel reports when the payload is larger.
const readBufferSize = 512

// systemGateway is the Gateway backed by the running kernel.
type systemGateway struct{}

var _ Gateway = systemGateway{}

// System returns the Gateway backed by the running kernel.
func System() Gateway {
	return systemGateway{}
}

func (systemGateway) AddKey(keyType types.KeyType, description string, payload []byte, ring types.ID) (types.ID, error) {
	id, err := unix.AddKey(keyType.String(), description, payload, int(ring))
	if err != nil {
		return 0, mapErrno(err)
	}
	return types.ID(id), nil
}

func (systemGateway) RequestKey(keyType types.KeyType, description, callout string, dest types.ID) (types.ID, error) {
	if callout == "" {
		// A NULL callout disables the request-key upcall so an absent
		// key fails fast with ENOKEY. x/sys passes an empty C string
		// instead, which still triggers the upcall.
		typePtr, err := unix.BytePtrFromString(keyType.String())
		if err != nil {
			return 0, mapErrno(err)
		}
		descPtr, err := unix.BytePtrFromString(description)
		if err != nil {
			return 0, mapErrno(err)
		}
		id, _, errno := unix.Syscall6(unix.SYS_REQUEST_KEY,
			uintptr(unsafe.Pointer(typePtr)),
			uintptr(unsafe.Pointer(descPtr)),
			0, uintptr(dest), 0, 0)
		if errno != 0 {
			return 0, mapErrno(errno)
		}
		return types.ID(id), nil
	}
	id, err := unix.RequestKey(keyType.String(), description, callout, int(dest))
	if err != nil {
		return 0, mapErrno(err)
	}
	return types.ID(id), nil
}

func (systemGateway) GetKeyringID(id types.ID, create bool) (types.ID, error) {
	ringID, err := unix.KeyctlGetKeyringID(int(id), create)
	if err != nil {
		return 0, mapErrno(err)
	}
	return types.ID(ringID), nil
}

func (systemGateway) JoinSessionKeyring(name string) (types.ID, error) {
	if name == "" {
		// A NULL name joins a fresh anonymous session keyring. x/sys
		// converts "" to an empty C string instead, which the kernel
		// rejects, so issue the raw call for the anonymous case.
		ringID, _, errno := unix.Syscall(unix.SYS_KEYCTL, uintptr(unix.KEYCTL_JOIN_SESSION_KEYRING), 0, 0)
		if errno != 0 {
			return 0, mapErrno(errno)
		}
		return types.ID(ringID), nil
	}
	ringID, err := unix.KeyctlJoinSessionKeyring(name)
	if err != nil {
		return 0, mapErrno(err)
	}
	return types.ID(ringID), nil
}

func (systemGateway) Update(id types.ID, payload []byte) error {
	_, err := unix.KeyctlBuffer(unix.KEYCTL_UPDATE, int(id), payload, 0)
	return mapErrno(err)
}

func (systemGateway) Revoke(id types.ID) error {
	_, err := unix.KeyctlInt(unix.KEYCTL_REVOKE, int(id), 0, 0, 0)
	return mapErrno(err)
}

func (systemGateway) Invalidate(id types.ID) error {
	_, err := unix.KeyctlInt(unix.KEYCTL_INVALIDATE, int(id), 0, 0, 0)
	return mapErrno(err)
}

func (systemGateway) Chown(id types.ID, uid, gid int) error {
	_, err := unix.KeyctlInt(unix.KEYCTL_CHOWN, int(id), uid, gid, 0)
	return mapErrno(err)
}

func (systemGateway) SetPerm(id types.ID, perm types.Permissions) error {
	return mapErrno(unix.KeyctlSetperm(int(id), perm.Mask()))
}

func (systemGateway) Describe(id types.ID) (string, error) {
	desc, err := unix.KeyctlString(unix.KEYCTL_DESCRIBE, int(id))
	if err != nil {
		return "", mapErrno(err)
	}
	return desc, nil
}

func (systemGateway) Clear(ring types.ID) error {
	_, err := unix.KeyctlInt(unix.KEYCTL_CLEAR, int(ring), 0, 0, 0)
	return mapErrno(err)
}

func (systemGateway) Link(id, ring types.ID) error {
	_, err := unix.KeyctlInt(unix.KEYCTL_LINK, int(id), int(ring), 0, 0)
	return mapErrno(err)
}

func (systemGateway) Unlink(id, ring types.ID) error {
	_, err := unix.KeyctlInt(unix.KEYCTL_UNLINK, int(id), int(ring), 0, 0)
	return mapErrno(err)
}

func (systemGateway) Search(ring types.ID, keyType types.KeyType, description string, dest types.ID) (types.ID, error) {
	id, err := unix.KeyctlSearch(int(ring), keyType.String(), description, int(dest))
	if err != nil {
		return 0, mapErrno(err)
	}
	return types.ID(id), nil
}

func (systemGateway) Read(id types.ID) ([]byte, error) {
	size := readBufferSize
	for {
		buf := make([]byte, size)
		n, err := unix.KeyctlBuffer(unix.KEYCTL_READ, int(id), buf, 0)
		if err != nil {
			return nil, mapErrno(err)
		}
		if n <= size {
			return buf[:n], nil
		}
		// Payload larger than the buffer; the kernel reported the size
		// it needs. It can keep growing between calls, so loop.
		size = n
	}
}

func (systemGateway) ReadInto(id types.ID, buf []byte) (int, error) {
	n, err := unix.KeyctlBuffer(unix.KEYCTL_READ, int(id), buf, 0)
	if err != nil {
		return 0, mapErrno(err)
	}
	return n, nil
}

func (systemGateway) SetTimeout(id types.ID, seconds uint) error {
	_, err := unix.KeyctlInt(unix.KEYCTL_SET_TIMEOUT, int(id), int(seconds), 0, 0)
	return mapErrno(err)
}

func (systemGateway) GetPersistent(uid int, ring types.ID) (types.ID, error) {
	id, err := unix.KeyctlInt(unix.KEYCTL_GET_PERSISTENT, uid, int(ring), 0, 0)
	if err != nil {
		return 0, mapErrno(err)
	}
	return types.ID(id), nil
}

func (systemGateway) Instantiate(id types.ID, payload []byte, ring types.ID) error {
	_, err := unix.KeyctlBuffer(unix.KEYCTL_INSTANTIATE, int(id), payload, int(ring))
	return mapErrno(err)
}

func (systemGateway) Negate(id types.ID, timeout uint, ring types.ID) error {
	_, err := unix.KeyctlInt(unix.KEYCTL_NEGATE, int(id), int(timeout), int(ring), 0)
	return mapErrno(err)
}

func (systemGateway) AssumeAuthority(id types.ID) error {
	_, err := unix.KeyctlInt(unix.KEYCTL_ASSUME_AUTHORITY, int(id), 0, 0, 0)
	return mapErrno(err)
}

// mapErrno translates a syscall errno into the pkg/types taxonomy.
// Errnos with no semantic mapping are wrapped in types.KernelError so
// the raw value stays reachable through errors.As.
func mapErrno(err error) error {
	if err == nil {
		return nil
	}
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return err
	}
	switch errno {
	case unix.ENOKEY:
		return types.ErrKeyNotFound
	case unix.EKEYEXPIRED:
		return types.ErrKeyExpired
	case unix.EKEYREVOKED:
		return types.ErrKeyRevoked
	case unix.EKEYREJECTED:
		return types.ErrKeyRejected
	case unix.EACCES, unix.EPERM:
		return types.ErrPermissionDenied
	case unix.EDQUOT:
		return types.ErrQuotaExceeded
	case unix.EDEADLK:
		return types.ErrKeyringCycle
	case unix.ELOOP:
		return types.ErrNestingTooDeep
	case unix.EINVAL:
		return types.ErrInvalidArguments
	case unix.EOPNOTSUPP:
		return types.ErrOperationNotSupported
	default:
		return &types.KernelError{Errno: errno}
	}
}
