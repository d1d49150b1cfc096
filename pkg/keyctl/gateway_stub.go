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

//go:build !linux

package keyctl

import (
	"github.com/jeremyhahn/go-keyutils/pkg/types"
)

// stubGateway is the Gateway on platforms without a kernel key
// retention service. Every operation fails with
// types.ErrOperationNotSupported.
type stubGateway struct{}

var _ Gateway = stubGateway{}

// System returns the Gateway backed by the running kernel. On
// non-Linux platforms it returns a stub whose operations fail with
// types.ErrOperationNotSupported.
func System() Gateway {
	return stubGateway{}
}

func (stubGateway) AddKey(types.KeyType, string, []byte, types.ID) (types.ID, error) {
	return 0, types.ErrOperationNotSupported
}

func (stubGateway) RequestKey(types.KeyType, string, string, types.ID) (types.ID, error) {
	return 0, types.ErrOperationNotSupported
}

func (stubGateway) GetKeyringID(types.ID, bool) (types.ID, error) {
	return 0, types.ErrOperationNotSupported
}

func (stubGateway) JoinSessionKeyring(string) (types.ID, error) {
	return 0, types.ErrOperationNotSupported
}

func (stubGateway) Update(types.ID, []byte) error {
	return types.ErrOperationNotSupported
}

func (stubGateway) Revoke(types.ID) error {
	return types.ErrOperationNotSupported
}

func (stubGateway) Invalidate(types.ID) error {
	return types.ErrOperationNotSupported
}

func (stubGateway) Chown(types.ID, int, int) error {
	return types.ErrOperationNotSupported
}

func (stubGateway) SetPerm(types.ID, types.Permissions) error {
	return types.ErrOperationNotSupported
}

func (stubGateway) Describe(types.ID) (string, error) {
	return "", types.ErrOperationNotSupported
}

func (stubGateway) Clear(types.ID) error {
	return types.ErrOperationNotSupported
}

func (stubGateway) Link(types.ID, types.ID) error {
	return types.ErrOperationNotSupported
}

func (stubGateway) Unlink(types.ID, types.ID) error {
	return types.ErrOperationNotSupported
}

func (stubGateway) Search(types.ID, types.KeyType, string, types.ID) (types.ID, error) {
	return 0, types.ErrOperationNotSupported
}

func (stubGateway) Read(types.ID) ([]byte, error) {
	return nil, types.ErrOperationNotSupported
}

func (stubGateway) ReadInto(types.ID, []byte) (int, error) {
	return 0, types.ErrOperationNotSupported
}

func (stubGateway) SetTimeout(types.ID, uint) error {
	return types.ErrOperationNotSupported
}

func (stubGateway) GetPersistent(int, types.ID) (types.ID, error) {
	return 0, types.ErrOperationNotSupported
}

func (stubGateway) Instantiate(types.ID, []byte, types.ID) error {
	return types.ErrOperationNotSupported
}

func (stubGateway) Negate(types.ID, uint, types.ID) error {
	return types.ErrOperationNotSupported
}

func (stubGateway) AssumeAuthority(types.ID) error {
	return types.ErrOperationNotSupported
}
