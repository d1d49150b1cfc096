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

// Package mocks provides an in-memory simulation of the kernel key
// retention service for testing. The MockGateway models the keyring
// graph, special keyring instantiation, link displacement, breadth
// first search with the kernel's depth limit, cycle detection, quotas
// and key lifecycle, so unit tests can exercise pkg/keyring without a
// Linux kernel. Permission checks are simplified: a right is granted
// when any subject band carries it.
package mocks

import (
	"encoding/binary"
	"strconv"
	"sync"
	"syscall"

	"github.com/jeremyhahn/go-keyutils/pkg/keyctl"
	"github.com/jeremyhahn/go-keyutils/pkg/types"
)

// serialBase is the first serial number the mock hands out. The value
// keeps mock serials visually distinct from the small IDs tests type
// by hand.
const serialBase = 100000001

// searchMaxDepth mirrors the kernel's KEYRING_SEARCH_MAX_DEPTH.
const searchMaxDepth = 6

// Default permission masks, matching what the kernel assigns to keys
// created through add_key and to per-context keyrings.
const (
	defaultKeyPerm  types.Permissions = 0x3f010000
	defaultRingPerm types.Permissions = 0x3f130000
)

// mockKey is one node in the simulated keyring graph.
type mockKey struct {
	id             types.ID
	keyType        types.KeyType
	description    string
	payload        []byte
	uid            int
	gid            int
	perm           types.Permissions
	timeout        uint
	revoked        bool
	expired        bool
	negative       bool
	uninstantiated bool
	links          []types.ID
}

// MockGateway is an in-memory implementation of keyctl.Gateway.
type MockGateway struct {
	mu sync.Mutex

	// Simulated kernel state
	keys          map[types.ID]*mockKey
	special       map[types.SpecialID]types.ID
	namedSessions map[string]types.ID
	persistent    types.ID
	authority     types.ID
	nextSerial    types.ID

	// Simulated caller identity and quota. A Quota of zero means
	// unlimited.
	UID   int
	GID   int
	Quota int

	// Configurable behavior
	AddKeyFunc             func(types.KeyType, string, []byte, types.ID) (types.ID, error)
	RequestKeyFunc         func(types.KeyType, string, string, types.ID) (types.ID, error)
	GetKeyringIDFunc       func(types.ID, bool) (types.ID, error)
	JoinSessionKeyringFunc func(string) (types.ID, error)
	UpdateFunc             func(types.ID, []byte) error
	RevokeFunc             func(types.ID) error
	InvalidateFunc         func(types.ID) error
	ChownFunc              func(types.ID, int, int) error
	SetPermFunc            func(types.ID, types.Permissions) error
	DescribeFunc           func(types.ID) (string, error)
	ClearFunc              func(types.ID) error
	LinkFunc               func(types.ID, types.ID) error
	UnlinkFunc             func(types.ID, types.ID) error
	SearchFunc             func(types.ID, types.KeyType, string, types.ID) (types.ID, error)
	ReadFunc               func(types.ID) ([]byte, error)
	ReadIntoFunc           func(types.ID, []byte) (int, error)
	SetTimeoutFunc         func(types.ID, uint) error
	GetPersistentFunc      func(int, types.ID) (types.ID, error)
	InstantiateFunc        func(types.ID, []byte, types.ID) error
	NegateFunc             func(types.ID, uint, types.ID) error
	AssumeAuthorityFunc    func(types.ID) error

	// Call tracking
	AddKeyCalls          []string
	RequestKeyCalls      []string
	GetKeyringIDCalls    []types.ID
	JoinSessionCalls     []string
	UpdateCalls          []types.ID
	RevokeCalls          []types.ID
	InvalidateCalls      []types.ID
	ChownCalls           []types.ID
	SetPermCalls         []types.ID
	DescribeCalls        []types.ID
	ClearCalls           []types.ID
	LinkCalls            []types.ID
	UnlinkCalls          []types.ID
	SearchCalls          []string
	ReadCalls            []types.ID
	ReadIntoCalls        []types.ID
	SetTimeoutCalls      []types.ID
	GetPersistentCalls   int
	InstantiateCalls     []types.ID
	NegateCalls          []types.ID
	AssumeAuthorityCalls []types.ID
}

var _ keyctl.Gateway = (*MockGateway)(nil)

// NewMockGateway creates a MockGateway with no keyrings instantiated,
// owned by UID/GID 1000.
func NewMockGateway() *MockGateway {
	return &MockGateway{
		keys:          make(map[types.ID]*mockKey),
		special:       make(map[types.SpecialID]types.ID),
		namedSessions: make(map[string]types.ID),
		nextSerial:    serialBase,
		UID:           1000,
		GID:           1000,
	}
}

// =============================================================================
// Gateway implementation
// =============================================================================

// AddKey creates or displaces a key under ring.
func (m *MockGateway) AddKey(keyType types.KeyType, description string, payload []byte, ring types.ID) (types.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AddKeyCalls = append(m.AddKeyCalls, description)

	if m.AddKeyFunc != nil {
		return m.AddKeyFunc(keyType, description, payload, ring)
	}

	if description == "" {
		return 0, types.ErrInvalidArguments
	}
	// The user key type's preparse bounds: 1 to MaxUserPayloadSize bytes.
	if keyType == types.KeyTypeUser && (len(payload) == 0 || len(payload) > types.MaxUserPayloadSize) {
		return 0, types.ErrInvalidArguments
	}

	target, err := m.resolve(ring, true)
	if err != nil {
		return 0, err
	}
	if err := m.validate(target); err != nil {
		return 0, err
	}
	if target.keyType != types.KeyTypeKeyring {
		return 0, types.ErrInvalidArguments
	}
	if !m.permitted(target, types.RightWrite) {
		return 0, types.ErrPermissionDenied
	}

	// Displacement: adding an existing type+description updates the
	// key in place when the type supports update, otherwise the old
	// key is unlinked and a fresh one linked in its stead.
	for i, linked := range target.links {
		k, ok := m.keys[linked]
		if !ok || k.revoked {
			continue
		}
		if k.keyType == keyType && k.description == description {
			if keyType == types.KeyTypeKeyring {
				repl := m.newKey(types.KeyTypeKeyring, description, nil, defaultKeyPerm)
				target.links[i] = repl.id
				return repl.id, nil
			}
			k.payload = append([]byte(nil), payload...)
			k.negative = false
			k.uninstantiated = false
			return k.id, nil
		}
	}

	if m.Quota > 0 && len(m.keys) >= m.Quota {
		return 0, types.ErrQuotaExceeded
	}

	perm := defaultKeyPerm
	key := m.newKey(keyType, description, payload, perm)
	target.links = append(target.links, key.id)
	return key.id, nil
}

// RequestKey searches the instantiated per-context keyrings. The mock
// performs no callout: a missing key stays missing regardless of the
// callout info, mirroring a system without a request-key handler.
func (m *MockGateway) RequestKey(keyType types.KeyType, description, callout string, dest types.ID) (types.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RequestKeyCalls = append(m.RequestKeyCalls, description)

	if m.RequestKeyFunc != nil {
		return m.RequestKeyFunc(keyType, description, callout, dest)
	}

	for _, spec := range []types.SpecialID{types.KeyringThread, types.KeyringProcess, types.KeyringSession} {
		ringID, ok := m.special[spec]
		if !ok {
			continue
		}
		id, err := m.search(ringID, keyType, description)
		if err == nil {
			if dest != 0 {
				if linkErr := m.link(id, dest); linkErr != nil {
					return 0, linkErr
				}
			}
			return id, nil
		}
	}
	return 0, types.ErrKeyNotFound
}

// GetKeyringID resolves an identifier to a real serial number.
func (m *MockGateway) GetKeyringID(id types.ID, create bool) (types.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetKeyringIDCalls = append(m.GetKeyringIDCalls, id)

	if m.GetKeyringIDFunc != nil {
		return m.GetKeyringIDFunc(id, create)
	}

	k, err := m.resolve(id, create)
	if err != nil {
		return 0, err
	}
	return k.id, nil
}

// JoinSessionKeyring joins or creates a session keyring.
func (m *MockGateway) JoinSessionKeyring(name string) (types.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.JoinSessionCalls = append(m.JoinSessionCalls, name)

	if m.JoinSessionKeyringFunc != nil {
		return m.JoinSessionKeyringFunc(name)
	}

	if name == "" {
		ring := m.newKeyring("_ses", defaultRingPerm)
		m.special[types.KeyringSession] = ring.id
		return ring.id, nil
	}

	if ringID, ok := m.namedSessions[name]; ok {
		if _, exists := m.keys[ringID]; exists {
			m.special[types.KeyringSession] = ringID
			return ringID, nil
		}
	}
	ring := m.newKeyring(name, defaultRingPerm)
	m.namedSessions[name] = ring.id
	m.special[types.KeyringSession] = ring.id
	return ring.id, nil
}

// Update replaces a key's payload.
func (m *MockGateway) Update(id types.ID, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UpdateCalls = append(m.UpdateCalls, id)

	if m.UpdateFunc != nil {
		return m.UpdateFunc(id, payload)
	}

	k, err := m.resolve(id, false)
	if err != nil {
		return err
	}
	if err := m.validate(k); err != nil {
		return err
	}
	if !m.permitted(k, types.RightWrite) {
		return types.ErrPermissionDenied
	}
	if k.keyType == types.KeyTypeKeyring {
		return types.ErrOperationNotSupported
	}
	// Preparse runs on update as well as add.
	if k.keyType == types.KeyTypeUser && (len(payload) == 0 || len(payload) > types.MaxUserPayloadSize) {
		return types.ErrInvalidArguments
	}
	k.payload = append([]byte(nil), payload...)
	return nil
}

// Revoke marks a key revoked.
func (m *MockGateway) Revoke(id types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RevokeCalls = append(m.RevokeCalls, id)

	if m.RevokeFunc != nil {
		return m.RevokeFunc(id)
	}

	k, err := m.resolve(id, false)
	if err != nil {
		return err
	}
	if k.revoked {
		return types.ErrKeyRevoked
	}
	k.revoked = true
	return nil
}

// Invalidate removes a key from the graph immediately.
func (m *MockGateway) Invalidate(id types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InvalidateCalls = append(m.InvalidateCalls, id)

	if m.InvalidateFunc != nil {
		return m.InvalidateFunc(id)
	}

	k, err := m.resolve(id, false)
	if err != nil {
		return err
	}
	delete(m.keys, k.id)
	for _, other := range m.keys {
		other.links = removeID(other.links, k.id)
	}
	for spec, ringID := range m.special {
		if ringID == k.id {
			delete(m.special, spec)
		}
	}
	if m.persistent == k.id {
		m.persistent = 0
	}
	return nil
}

// Chown changes a key's ownership. An argument of -1 leaves that owner
// unchanged.
func (m *MockGateway) Chown(id types.ID, uid, gid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ChownCalls = append(m.ChownCalls, id)

	if m.ChownFunc != nil {
		return m.ChownFunc(id, uid, gid)
	}

	k, err := m.resolve(id, false)
	if err != nil {
		return err
	}
	if err := m.validate(k); err != nil {
		return err
	}
	if uid != -1 {
		k.uid = uid
	}
	if gid != -1 {
		k.gid = gid
	}
	return nil
}

// SetPerm replaces a key's permission mask.
func (m *MockGateway) SetPerm(id types.ID, perm types.Permissions) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SetPermCalls = append(m.SetPermCalls, id)

	if m.SetPermFunc != nil {
		return m.SetPermFunc(id, perm)
	}

	k, err := m.resolve(id, false)
	if err != nil {
		return err
	}
	if err := m.validate(k); err != nil {
		return err
	}
	k.perm = perm
	return nil
}

// Describe renders the kernel describe string. Like the kernel, it
// works on revoked and expired keys.
func (m *MockGateway) Describe(id types.ID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DescribeCalls = append(m.DescribeCalls, id)

	if m.DescribeFunc != nil {
		return m.DescribeFunc(id)
	}

	k, err := m.resolve(id, false)
	if err != nil {
		return "", err
	}
	if !m.permitted(k, types.RightView) {
		return "", types.ErrPermissionDenied
	}
	meta := types.Metadata{
		Type:        k.keyType,
		UID:         k.uid,
		GID:         k.gid,
		Permissions: k.perm,
		Description: k.description,
	}
	return meta.String(), nil
}

// Clear unlinks every key from a keyring.
func (m *MockGateway) Clear(ring types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ClearCalls = append(m.ClearCalls, ring)

	if m.ClearFunc != nil {
		return m.ClearFunc(ring)
	}

	k, err := m.resolve(ring, true)
	if err != nil {
		return err
	}
	if err := m.validate(k); err != nil {
		return err
	}
	if k.keyType != types.KeyTypeKeyring {
		return types.ErrOperationNotSupported
	}
	if !m.permitted(k, types.RightWrite) {
		return types.ErrPermissionDenied
	}
	k.links = nil
	return nil
}

// Link adds a link to id into ring.
func (m *MockGateway) Link(id, ring types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.LinkCalls = append(m.LinkCalls, id)

	if m.LinkFunc != nil {
		return m.LinkFunc(id, ring)
	}

	return m.link(id, ring)
}

// Unlink removes the link to id from ring. Neither identifier is
// auto-created: unlinking from a never-instantiated special keyring
// fails with ErrKeyNotFound. The unlinked object itself may be revoked
// or expired; only the keyring must be valid.
func (m *MockGateway) Unlink(id, ring types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.UnlinkCalls = append(m.UnlinkCalls, id)

	if m.UnlinkFunc != nil {
		return m.UnlinkFunc(id, ring)
	}

	k, err := m.resolve(id, false)
	if err != nil {
		return err
	}
	target, err := m.resolve(ring, false)
	if err != nil {
		return err
	}
	if err := m.validate(target); err != nil {
		return err
	}
	if target.keyType != types.KeyTypeKeyring {
		return types.ErrOperationNotSupported
	}
	if !m.permitted(target, types.RightWrite) {
		return types.ErrPermissionDenied
	}
	for _, linked := range target.links {
		if linked == k.id {
			target.links = removeID(target.links, k.id)
			return nil
		}
	}
	return types.ErrKeyNotFound
}

// Search runs the kernel's breadth-first search below ring.
func (m *MockGateway) Search(ring types.ID, keyType types.KeyType, description string, dest types.ID) (types.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SearchCalls = append(m.SearchCalls, description)

	if m.SearchFunc != nil {
		return m.SearchFunc(ring, keyType, description, dest)
	}

	root, err := m.resolve(ring, true)
	if err != nil {
		return 0, err
	}
	if err := m.validate(root); err != nil {
		return 0, err
	}
	id, err := m.search(root.id, keyType, description)
	if err != nil {
		return 0, err
	}
	if dest != 0 {
		if linkErr := m.link(id, dest); linkErr != nil {
			return 0, linkErr
		}
	}
	return id, nil
}

// Read returns a key's full payload.
func (m *MockGateway) Read(id types.ID) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ReadCalls = append(m.ReadCalls, id)

	if m.ReadFunc != nil {
		return m.ReadFunc(id)
	}

	payload, err := m.readPayload(id)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), payload...), nil
}

// ReadInto reads a key's payload into buf, returning the full size.
// For keyrings only whole 32-bit entries are copied, as the kernel
// does.
func (m *MockGateway) ReadInto(id types.ID, buf []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ReadIntoCalls = append(m.ReadIntoCalls, id)

	if m.ReadIntoFunc != nil {
		return m.ReadIntoFunc(id, buf)
	}

	payload, err := m.readPayload(id)
	if err != nil {
		return 0, err
	}
	k := m.keys[id]
	if k != nil && k.keyType == types.KeyTypeKeyring {
		fit := len(buf) - len(buf)%4
		copy(buf, payload[:min(fit, len(payload))])
	} else {
		copy(buf, payload)
	}
	return len(payload), nil
}

// SetTimeout records a key's expiry in seconds.
func (m *MockGateway) SetTimeout(id types.ID, seconds uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SetTimeoutCalls = append(m.SetTimeoutCalls, id)

	if m.SetTimeoutFunc != nil {
		return m.SetTimeoutFunc(id, seconds)
	}

	k, err := m.resolve(id, false)
	if err != nil {
		return err
	}
	if k.revoked {
		return types.ErrKeyRevoked
	}
	k.timeout = seconds
	if seconds == 0 {
		k.expired = false
	}
	return nil
}

// GetPersistent acquires the caller's persistent keyring and links it
// into ring. Repeated acquisitions return the same serial number.
func (m *MockGateway) GetPersistent(uid int, ring types.ID) (types.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetPersistentCalls++

	if m.GetPersistentFunc != nil {
		return m.GetPersistentFunc(uid, ring)
	}

	if uid != -1 && uid != m.UID {
		return 0, types.ErrPermissionDenied
	}

	if m.persistent == 0 {
		ringKey := m.newKeyring(persistentDescription(m.UID), defaultRingPerm)
		m.persistent = ringKey.id
	}
	if err := m.link(m.persistent, ring); err != nil {
		return 0, err
	}
	return m.persistent, nil
}

// Instantiate positively instantiates a pending key.
func (m *MockGateway) Instantiate(id types.ID, payload []byte, ring types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InstantiateCalls = append(m.InstantiateCalls, id)

	if m.InstantiateFunc != nil {
		return m.InstantiateFunc(id, payload, ring)
	}

	k, ok := m.keys[id]
	if !ok {
		return types.ErrKeyNotFound
	}
	if !k.uninstantiated {
		return &types.KernelError{Errno: syscall.EBUSY}
	}
	k.payload = append([]byte(nil), payload...)
	k.uninstantiated = false
	k.negative = false
	if ring != 0 {
		return m.link(id, ring)
	}
	return nil
}

// Negate negatively instantiates a pending key.
func (m *MockGateway) Negate(id types.ID, timeout uint, ring types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.NegateCalls = append(m.NegateCalls, id)

	if m.NegateFunc != nil {
		return m.NegateFunc(id, timeout, ring)
	}

	k, ok := m.keys[id]
	if !ok {
		return types.ErrKeyNotFound
	}
	if !k.uninstantiated {
		return &types.KernelError{Errno: syscall.EBUSY}
	}
	k.uninstantiated = false
	k.negative = true
	k.timeout = timeout
	if ring != 0 {
		return m.link(id, ring)
	}
	return nil
}

// AssumeAuthority assumes or divests request-key authority.
func (m *MockGateway) AssumeAuthority(id types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.AssumeAuthorityCalls = append(m.AssumeAuthorityCalls, id)

	if m.AssumeAuthorityFunc != nil {
		return m.AssumeAuthorityFunc(id)
	}

	if id == 0 {
		m.authority = 0
		return nil
	}
	if _, ok := m.keys[id]; !ok {
		return types.ErrKeyNotFound
	}
	m.authority = id
	return nil
}

// =============================================================================
// Test helpers
// =============================================================================

// KeyCount returns the number of keys and keyrings in the simulated
// kernel.
func (m *MockGateway) KeyCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.keys)
}

// LinksOf returns a copy of a keyring's link list.
func (m *MockGateway) LinksOf(ring types.ID) []types.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[ring]
	if !ok {
		return nil
	}
	return append([]types.ID(nil), k.links...)
}

// InstantiatedSpecial reports whether a special keyring has been
// instantiated, and its serial number if so.
func (m *MockGateway) InstantiatedSpecial(spec types.SpecialID) (types.ID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.special[spec]
	return id, ok
}

// SetExpired marks a key expired, as if its timeout elapsed.
func (m *MockGateway) SetExpired(id types.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k, ok := m.keys[id]; ok {
		k.expired = true
	}
}

// AddUninstantiated creates a key awaiting instantiation, as
// request_key does before invoking the callout.
func (m *MockGateway) AddUninstantiated(keyType types.KeyType, description string) types.ID {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.newKey(keyType, description, nil, defaultKeyPerm)
	k.uninstantiated = true
	return k.id
}

// =============================================================================
// Internals
// =============================================================================

func (m *MockGateway) newKey(keyType types.KeyType, description string, payload []byte, perm types.Permissions) *mockKey {
	k := &mockKey{
		id:          m.nextSerial,
		keyType:     keyType,
		description: description,
		payload:     append([]byte(nil), payload...),
		uid:         m.UID,
		gid:         m.GID,
		perm:        perm,
	}
	m.nextSerial++
	m.keys[k.id] = k
	return k
}

func (m *MockGateway) newKeyring(description string, perm types.Permissions) *mockKey {
	return m.newKey(types.KeyTypeKeyring, description, nil, perm)
}

// resolve looks up an identifier the way lookup_user_key does: real
// serials must exist, special identifiers resolve to the per-context
// keyring, instantiating it when create is set.
func (m *MockGateway) resolve(id types.ID, create bool) (*mockKey, error) {
	if id == 0 {
		return nil, types.ErrInvalidArguments
	}
	if id > 0 {
		k, ok := m.keys[id]
		if !ok {
			return nil, types.ErrKeyNotFound
		}
		return k, nil
	}

	spec := types.SpecialID(id)
	switch spec {
	case types.KeyringThread, types.KeyringProcess, types.KeyringSession,
		types.KeyringUser, types.KeyringUserSession:
		if ringID, ok := m.special[spec]; ok {
			if k, exists := m.keys[ringID]; exists {
				return k, nil
			}
		}
		if !create {
			return nil, types.ErrKeyNotFound
		}
		ring := m.newKeyring(m.specialDescription(spec), defaultRingPerm)
		m.special[spec] = ring.id
		return ring, nil
	case types.KeyringGroup:
		// The kernel reserves the group keyring but has never
		// implemented it.
		return nil, types.ErrInvalidArguments
	case types.KeyringReqKeyAuth, types.KeyringRequestor:
		if ringID, ok := m.special[spec]; ok {
			if k, exists := m.keys[ringID]; exists {
				return k, nil
			}
		}
		return nil, types.ErrKeyNotFound
	default:
		return nil, types.ErrInvalidArguments
	}
}

func (m *MockGateway) specialDescription(spec types.SpecialID) string {
	switch spec {
	case types.KeyringThread:
		return "_tid"
	case types.KeyringProcess:
		return "_pid"
	case types.KeyringSession:
		return "_ses"
	case types.KeyringUser:
		return "_uid." + strconv.Itoa(m.UID)
	case types.KeyringUserSession:
		return "_uid_ses." + strconv.Itoa(m.UID)
	default:
		return spec.String()
	}
}

func persistentDescription(uid int) string {
	return "_persistent." + strconv.Itoa(uid)
}

// validate mirrors key_validate: revoked and expired keys fail.
func (m *MockGateway) validate(k *mockKey) error {
	if k.revoked {
		return types.ErrKeyRevoked
	}
	if k.expired {
		return types.ErrKeyExpired
	}
	return nil
}

// permitted grants a right when any subject band carries it.
func (m *MockGateway) permitted(k *mockKey, right types.PermissionRights) bool {
	return (k.perm.Possessor()|k.perm.User()|k.perm.Group()|k.perm.Other())&right != 0
}

func (m *MockGateway) readPayload(id types.ID) ([]byte, error) {
	k, err := m.resolve(id, false)
	if err != nil {
		return nil, err
	}
	if err := m.validate(k); err != nil {
		return nil, err
	}
	// Read permission, or search permission on a possessed key; the
	// mock treats every key as possessed.
	if !m.permitted(k, types.RightRead) && !m.permitted(k, types.RightSearch) {
		return nil, types.ErrPermissionDenied
	}
	switch k.keyType {
	case types.KeyTypeKeyring:
		buf := make([]byte, 4*len(k.links))
		for i, linked := range k.links {
			binary.NativeEndian.PutUint32(buf[i*4:], uint32(linked))
		}
		return buf, nil
	case types.KeyTypeLogon:
		return nil, types.ErrOperationNotSupported
	default:
		if k.negative {
			return nil, types.ErrKeyNotFound
		}
		return k.payload, nil
	}
}

// link adds id into ring with the kernel's displacement, cycle and
// nesting checks. Both identifiers resolve with create semantics and
// must be valid; revoked or expired objects cannot be linked.
func (m *MockGateway) link(id, ring types.ID) error {
	k, err := m.resolve(id, true)
	if err != nil {
		return err
	}
	target, err := m.resolve(ring, true)
	if err != nil {
		return err
	}
	if err := m.validate(k); err != nil {
		return err
	}
	if err := m.validate(target); err != nil {
		return err
	}
	if target.keyType != types.KeyTypeKeyring {
		return types.ErrOperationNotSupported
	}
	if !m.permitted(target, types.RightWrite) {
		return types.ErrPermissionDenied
	}
	if !m.permitted(k, types.RightLink) {
		return types.ErrPermissionDenied
	}

	if k.keyType == types.KeyTypeKeyring {
		if k.id == target.id || m.reachable(k, target.id) {
			return types.ErrKeyringCycle
		}
		if 1+m.subtreeDepth(k, 1) > searchMaxDepth {
			return types.ErrNestingTooDeep
		}
	}

	for i, linked := range target.links {
		if linked == k.id {
			return nil
		}
		other, ok := m.keys[linked]
		if ok && other.keyType == k.keyType && other.description == k.description {
			target.links[i] = k.id
			return nil
		}
	}
	target.links = append(target.links, k.id)
	return nil
}

// reachable reports whether want is reachable by walking links from k.
func (m *MockGateway) reachable(k *mockKey, want types.ID) bool {
	for _, linked := range k.links {
		if linked == want {
			return true
		}
		child, ok := m.keys[linked]
		if ok && child.keyType == types.KeyTypeKeyring && m.reachable(child, want) {
			return true
		}
	}
	return false
}

// subtreeDepth returns the keyring nesting depth below k, including k.
func (m *MockGateway) subtreeDepth(k *mockKey, depth int) int {
	if depth >= searchMaxDepth {
		return depth
	}
	deepest := depth
	for _, linked := range k.links {
		child, ok := m.keys[linked]
		if !ok || child.keyType != types.KeyTypeKeyring {
			continue
		}
		if d := m.subtreeDepth(child, depth+1); d > deepest {
			deepest = d
		}
	}
	return deepest
}

// search walks the keyring graph breadth-first from root, descending
// only through searchable keyrings and at most searchMaxDepth levels.
// Matches that are revoked, expired or negative decide the error when
// nothing valid is found.
func (m *MockGateway) search(root types.ID, keyType types.KeyType, description string) (types.ID, error) {
	type entry struct {
		id    types.ID
		depth int
	}

	bestErr := types.ErrKeyNotFound
	visited := map[types.ID]bool{root: true}
	queue := []entry{{root, 1}}

	for len(queue) > 0 {
		e := queue[0]
		queue = queue[1:]

		ring, ok := m.keys[e.id]
		if !ok || ring.keyType != types.KeyTypeKeyring {
			continue
		}
		for _, linked := range ring.links {
			k, ok := m.keys[linked]
			if !ok {
				continue
			}
			if k.keyType == keyType && k.description == description {
				switch {
				case k.revoked:
					bestErr = types.ErrKeyRevoked
				case k.expired:
					bestErr = types.ErrKeyExpired
				case k.negative:
					bestErr = types.ErrKeyNotFound
				case !m.permitted(k, types.RightSearch):
					bestErr = types.ErrPermissionDenied
				default:
					return k.id, nil
				}
				continue
			}
			if k.keyType == types.KeyTypeKeyring && !visited[k.id] && e.depth < searchMaxDepth {
				if m.permitted(k, types.RightSearch) && m.validate(k) == nil {
					visited[k.id] = true
					queue = append(queue, entry{k.id, e.depth + 1})
				}
			}
		}
	}
	return 0, bestErr
}

func removeID(ids []types.ID, id types.ID) []types.ID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
