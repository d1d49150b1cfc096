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

package keyring

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-keyutils/pkg/keyctl/mocks"
	"github.com/jeremyhahn/go-keyutils/pkg/types"
)

// newTestGateway installs a fresh simulated kernel for the duration of
// the test.
func newTestGateway(t *testing.T) *mocks.MockGateway {
	t.Helper()
	mock := mocks.NewMockGateway()
	t.Cleanup(SetGateway(mock))
	return mock
}

func TestFromSpecial(t *testing.T) {
	t.Run("resolves each per-context keyring", func(t *testing.T) {
		newTestGateway(t)

		specials := []types.SpecialID{
			types.KeyringThread,
			types.KeyringProcess,
			types.KeyringSession,
			types.KeyringUser,
			types.KeyringUserSession,
		}

		seen := make(map[types.ID]bool)
		for _, spec := range specials {
			ring, err := FromSpecial(spec, true)
			require.NoError(t, err, "resolving %s", spec)
			assert.Greater(t, int32(ring.ID()), int32(0), "serial for %s", spec)
			assert.False(t, seen[ring.ID()], "serial for %s collides", spec)
			seen[ring.ID()] = true
		}
	})

	t.Run("resolution is stable across calls", func(t *testing.T) {
		newTestGateway(t)

		first, err := FromSpecial(types.KeyringThread, true)
		require.NoError(t, err)
		second, err := FromSpecial(types.KeyringThread, true)
		require.NoError(t, err)
		assert.Equal(t, first.ID(), second.ID())
		assert.Equal(t, first, second)
	})

	t.Run("create false on a fresh keyring", func(t *testing.T) {
		newTestGateway(t)

		_, err := FromSpecial(types.KeyringThread, false)
		assert.ErrorIs(t, err, types.ErrKeyNotFound)
	})

	t.Run("create false after instantiation", func(t *testing.T) {
		newTestGateway(t)

		created, err := FromSpecial(types.KeyringProcess, true)
		require.NoError(t, err)

		found, err := FromSpecial(types.KeyringProcess, false)
		require.NoError(t, err)
		assert.Equal(t, created.ID(), found.ID())
	})

	t.Run("group keyring is not implemented", func(t *testing.T) {
		newTestGateway(t)

		_, err := FromSpecial(types.KeyringGroup, true)
		assert.ErrorIs(t, err, types.ErrInvalidArguments)
	})

	t.Run("invalid special ids fail before the kernel", func(t *testing.T) {
		mock := newTestGateway(t)

		for _, spec := range []types.SpecialID{0, 1, -9, 42} {
			_, err := FromSpecial(spec, true)
			assert.ErrorIs(t, err, types.ErrInvalidIdentifier, "special %d", spec)
		}
		assert.Empty(t, mock.GetKeyringIDCalls)
	})

	t.Run("handle stays pinned when the context changes", func(t *testing.T) {
		newTestGateway(t)

		old, err := DefaultSession()
		require.NoError(t, err)
		pinned, err := FromSpecial(types.KeyringSession, false)
		require.NoError(t, err)
		require.Equal(t, old.ID(), pinned.ID())

		// Joining a new session moves the special ID to a new keyring
		// but already-resolved handles keep their serial.
		fresh, err := DefaultSession()
		require.NoError(t, err)
		assert.NotEqual(t, pinned.ID(), fresh.ID())

		current, err := FromSpecial(types.KeyringSession, false)
		require.NoError(t, err)
		assert.Equal(t, fresh.ID(), current.ID())
		assert.Equal(t, old.ID(), pinned.ID())
	})
}

func TestFromID(t *testing.T) {
	newTestGateway(t)

	tests := []struct {
		name    string
		id      types.ID
		wantErr error
	}{
		{"positive serial", 12345, nil},
		{"zero is never valid", 0, types.ErrInvalidIdentifier},
		{"special range passes through", types.ID(types.KeyringSession), nil},
		{"large negative passes through", -100, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ring, err := FromID(tt.id)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, ring.ID())
		})
	}
}

func TestGetPersistent(t *testing.T) {
	t.Run("acquires and links into the target", func(t *testing.T) {
		mock := newTestGateway(t)

		persistent, err := GetPersistent(types.KeyringSession)
		require.NoError(t, err)
		assert.Greater(t, int32(persistent.ID()), int32(0))

		session, ok := mock.InstantiatedSpecial(types.KeyringSession)
		require.True(t, ok, "session keyring created as link target")
		assert.Contains(t, mock.LinksOf(session), persistent.ID())

		meta, err := persistent.Metadata()
		require.NoError(t, err)
		assert.Equal(t, types.KeyTypeKeyring, meta.Type)
		assert.Equal(t, "_persistent.1000", meta.Description)
	})

	t.Run("repeated acquisition returns the same serial", func(t *testing.T) {
		mock := newTestGateway(t)

		first, err := GetPersistent(types.KeyringSession)
		require.NoError(t, err)
		second, err := GetPersistent(types.KeyringUser)
		require.NoError(t, err)

		assert.Equal(t, first.ID(), second.ID())
		assert.Equal(t, 2, mock.GetPersistentCalls)
	})

	t.Run("invalid link target", func(t *testing.T) {
		mock := newTestGateway(t)

		_, err := GetPersistent(types.SpecialID(7))
		assert.ErrorIs(t, err, types.ErrInvalidIdentifier)
		assert.Zero(t, mock.GetPersistentCalls)
	})
}

func TestJoinSession(t *testing.T) {
	t.Run("anonymous sessions are always fresh", func(t *testing.T) {
		newTestGateway(t)

		first, err := DefaultSession()
		require.NoError(t, err)
		second, err := DefaultSession()
		require.NoError(t, err)
		assert.NotEqual(t, first.ID(), second.ID())
	})

	t.Run("named sessions are joined by name", func(t *testing.T) {
		newTestGateway(t)

		build, err := JoinSession("build")
		require.NoError(t, err)
		again, err := JoinSession("build")
		require.NoError(t, err)
		assert.Equal(t, build.ID(), again.ID())

		other, err := JoinSession("deploy")
		require.NoError(t, err)
		assert.NotEqual(t, build.ID(), other.ID())
	})

	t.Run("empty name joins anonymously", func(t *testing.T) {
		mock := newTestGateway(t)

		_, err := JoinSession("")
		require.NoError(t, err)
		assert.Equal(t, []string{""}, mock.JoinSessionCalls)
	})

	t.Run("name with embedded NUL", func(t *testing.T) {
		mock := newTestGateway(t)

		_, err := JoinSession("bad\x00name")
		assert.ErrorIs(t, err, types.ErrInvalidDescription)
		assert.Empty(t, mock.JoinSessionCalls)
	})
}

func TestAddKey(t *testing.T) {
	t.Run("creates a key readable through its handle", func(t *testing.T) {
		newTestGateway(t)

		ring, err := DefaultSession()
		require.NoError(t, err)

		key, err := ring.AddKey("api-token", []byte("s3cret"))
		require.NoError(t, err)
		assert.Greater(t, int32(key.ID()), int32(0))

		payload, err := key.Read()
		require.NoError(t, err)
		assert.Equal(t, []byte("s3cret"), payload)
	})

	t.Run("same description updates in place", func(t *testing.T) {
		newTestGateway(t)

		ring, err := DefaultSession()
		require.NoError(t, err)

		first, err := ring.AddKey("api-token", []byte("one"))
		require.NoError(t, err)
		second, err := ring.AddKey("api-token", []byte("two"))
		require.NoError(t, err)

		assert.Equal(t, first.ID(), second.ID(), "user keys keep their serial on displacement")

		payload, err := first.Read()
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), payload)
	})

	t.Run("distinct descriptions coexist", func(t *testing.T) {
		mock := newTestGateway(t)

		ring, err := DefaultSession()
		require.NoError(t, err)

		one, err := ring.AddKey("alpha", []byte("a"))
		require.NoError(t, err)
		two, err := ring.AddKey("beta", []byte("b"))
		require.NoError(t, err)

		assert.NotEqual(t, one.ID(), two.ID())
		links := mock.LinksOf(ring.ID())
		assert.Contains(t, links, one.ID())
		assert.Contains(t, links, two.ID())
	})

	t.Run("invalid input fails before the kernel", func(t *testing.T) {
		tests := []struct {
			name        string
			description string
			payload     []byte
			wantErr     error
		}{
			{"empty description", "", []byte("p"), types.ErrInvalidArguments},
			{"description with NUL", "a\x00b", []byte("p"), types.ErrInvalidDescription},
			{"description too long", strings.Repeat("d", types.MaxDescriptionSize+1), []byte("p"), types.ErrInvalidDescription},
			{"empty payload", "empty", nil, types.ErrInvalidArguments},
			{"payload too large", "big", make([]byte, types.MaxUserPayloadSize+1), types.ErrInvalidArguments},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				mock := newTestGateway(t)

				ring, err := DefaultSession()
				require.NoError(t, err)

				mock.AddKeyCalls = nil
				_, err = ring.AddKey(tt.description, tt.payload)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, mock.AddKeyCalls, "no kernel call for invalid input")
			})
		}
	})

	t.Run("limits are inclusive", func(t *testing.T) {
		newTestGateway(t)

		ring, err := DefaultSession()
		require.NoError(t, err)

		_, err = ring.AddKey(strings.Repeat("d", types.MaxDescriptionSize), make([]byte, types.MaxUserPayloadSize))
		assert.NoError(t, err)
	})

	t.Run("quota exhaustion", func(t *testing.T) {
		mock := newTestGateway(t)
		mock.Quota = 2

		ring, err := DefaultSession()
		require.NoError(t, err)

		_, err = ring.AddKey("first", []byte("p"))
		require.NoError(t, err)
		_, err = ring.AddKey("second", []byte("p"))
		assert.ErrorIs(t, err, types.ErrQuotaExceeded)
	})
}

func TestCreateKeyring(t *testing.T) {
	t.Run("creates a nested keyring", func(t *testing.T) {
		mock := newTestGateway(t)

		parent, err := DefaultSession()
		require.NoError(t, err)

		child, err := parent.CreateKeyring("sub")
		require.NoError(t, err)
		assert.Contains(t, mock.LinksOf(parent.ID()), child.ID())

		meta, err := child.Metadata()
		require.NoError(t, err)
		assert.Equal(t, types.KeyTypeKeyring, meta.Type)
		assert.Equal(t, "sub", meta.Description)
	})

	t.Run("same description displaces with a fresh serial", func(t *testing.T) {
		mock := newTestGateway(t)

		parent, err := DefaultSession()
		require.NoError(t, err)

		old, err := parent.CreateKeyring("sub")
		require.NoError(t, err)
		replacement, err := parent.CreateKeyring("sub")
		require.NoError(t, err)

		assert.NotEqual(t, old.ID(), replacement.ID(), "keyrings cannot be updated in place")
		links := mock.LinksOf(parent.ID())
		assert.Contains(t, links, replacement.ID())
		assert.NotContains(t, links, old.ID())
	})

	t.Run("empty description", func(t *testing.T) {
		newTestGateway(t)

		parent, err := DefaultSession()
		require.NoError(t, err)

		_, err = parent.CreateKeyring("")
		assert.ErrorIs(t, err, types.ErrInvalidArguments)
	})
}

func TestRequestKey(t *testing.T) {
	t.Run("finds a key in the session and links it", func(t *testing.T) {
		mock := newTestGateway(t)

		session, err := DefaultSession()
		require.NoError(t, err)
		original, err := session.AddKey("db-password", []byte("hunter2"))
		require.NoError(t, err)

		dest, err := FromSpecial(types.KeyringUser, true)
		require.NoError(t, err)

		found, err := dest.RequestKey("db-password")
		require.NoError(t, err)
		assert.Equal(t, original.ID(), found.ID())
		assert.Contains(t, mock.LinksOf(dest.ID()), found.ID())
	})

	t.Run("absent key without callout", func(t *testing.T) {
		newTestGateway(t)

		dest, err := DefaultSession()
		require.NoError(t, err)

		_, err = dest.RequestKey("no-such-key")
		assert.ErrorIs(t, err, types.ErrKeyNotFound)
	})

	t.Run("absent key with callout and no handler", func(t *testing.T) {
		newTestGateway(t)

		dest, err := DefaultSession()
		require.NoError(t, err)

		_, err = dest.RequestKeyWithCallout("no-such-key", "fetch it")
		assert.ErrorIs(t, err, types.ErrKeyNotFound)
	})

	t.Run("invalid description and callout", func(t *testing.T) {
		mock := newTestGateway(t)

		dest, err := DefaultSession()
		require.NoError(t, err)

		_, err = dest.RequestKey("bad\x00desc")
		assert.ErrorIs(t, err, types.ErrInvalidDescription)

		_, err = dest.RequestKeyWithCallout("fine", "bad\x00info")
		assert.ErrorIs(t, err, types.ErrInvalidDescription)

		assert.Empty(t, mock.RequestKeyCalls)
	})
}

func TestSearch(t *testing.T) {
	t.Run("descends nested keyrings without linking", func(t *testing.T) {
		mock := newTestGateway(t)

		parent, err := DefaultSession()
		require.NoError(t, err)
		child, err := parent.CreateKeyring("inner")
		require.NoError(t, err)
		key, err := child.AddKey("needle", []byte("x"))
		require.NoError(t, err)

		found, err := parent.Search("needle")
		require.NoError(t, err)
		assert.Equal(t, key.ID(), found.ID())

		// dest is zero: the found key is not linked into the parent.
		assert.Equal(t, []types.ID{child.ID()}, mock.LinksOf(parent.ID()))
	})

	t.Run("finds keys linked at the root", func(t *testing.T) {
		newTestGateway(t)

		ring, err := DefaultSession()
		require.NoError(t, err)
		key, err := ring.AddKey("direct", []byte("x"))
		require.NoError(t, err)

		found, err := ring.Search("direct")
		require.NoError(t, err)
		assert.Equal(t, key.ID(), found.ID())
	})

	t.Run("searches keyrings by type", func(t *testing.T) {
		newTestGateway(t)

		parent, err := DefaultSession()
		require.NoError(t, err)
		child, err := parent.CreateKeyring("inner")
		require.NoError(t, err)

		found, err := parent.SearchKeyring("inner")
		require.NoError(t, err)
		assert.Equal(t, child.ID(), found.ID())

		_, err = parent.Search("inner")
		assert.ErrorIs(t, err, types.ErrKeyNotFound, "user-key search must not match a keyring")
	})

	t.Run("absent key", func(t *testing.T) {
		newTestGateway(t)

		ring, err := DefaultSession()
		require.NoError(t, err)

		_, err = ring.Search("absent")
		assert.ErrorIs(t, err, types.ErrKeyNotFound)
	})

	t.Run("revoked match reports revocation", func(t *testing.T) {
		newTestGateway(t)

		ring, err := DefaultSession()
		require.NoError(t, err)
		key, err := ring.AddKey("stale", []byte("x"))
		require.NoError(t, err)
		require.NoError(t, key.Revoke())

		_, err = ring.Search("stale")
		assert.ErrorIs(t, err, types.ErrKeyRevoked)
	})

	t.Run("expired match reports expiry", func(t *testing.T) {
		mock := newTestGateway(t)

		ring, err := DefaultSession()
		require.NoError(t, err)
		key, err := ring.AddKey("stale", []byte("x"))
		require.NoError(t, err)
		mock.SetExpired(key.ID())

		_, err = ring.Search("stale")
		assert.ErrorIs(t, err, types.ErrKeyExpired)
	})

	t.Run("unsearchable match reports permission", func(t *testing.T) {
		newTestGateway(t)

		ring, err := DefaultSession()
		require.NoError(t, err)
		key, err := ring.AddKey("hidden", []byte("x"))
		require.NoError(t, err)

		perm := types.NewPermissionsBuilder().
			Possessor(types.RightView | types.RightRead).
			User(types.RightView).
			Build()
		require.NoError(t, key.SetPermissions(perm))

		_, err = ring.Search("hidden")
		assert.ErrorIs(t, err, types.ErrPermissionDenied)
	})

	t.Run("does not descend revoked keyrings", func(t *testing.T) {
		newTestGateway(t)

		parent, err := DefaultSession()
		require.NoError(t, err)
		child, err := parent.CreateKeyring("inner")
		require.NoError(t, err)
		_, err = child.AddKey("needle", []byte("x"))
		require.NoError(t, err)
		require.NoError(t, child.Revoke())

		_, err = parent.Search("needle")
		assert.ErrorIs(t, err, types.ErrKeyNotFound)
	})

	t.Run("stops at the nesting limit", func(t *testing.T) {
		newTestGateway(t)

		root, err := DefaultSession()
		require.NoError(t, err)

		// Chain of keyrings below the root: the root counts as depth
		// one, so a key six levels down is the deepest still found.
		ring := root
		for i := 2; i <= 6; i++ {
			ring, err = ring.CreateKeyring(fmt.Sprintf("level-%d", i))
			require.NoError(t, err)
		}
		_, err = ring.AddKey("reachable", []byte("x"))
		require.NoError(t, err)

		found, err := root.Search("reachable")
		require.NoError(t, err)
		assert.Greater(t, int32(found.ID()), int32(0))

		beyond, err := ring.CreateKeyring("level-7")
		require.NoError(t, err)
		_, err = beyond.AddKey("unreachable", []byte("x"))
		require.NoError(t, err)

		_, err = root.Search("unreachable")
		assert.ErrorIs(t, err, types.ErrKeyNotFound)
	})

	t.Run("invalid description", func(t *testing.T) {
		mock := newTestGateway(t)

		ring, err := DefaultSession()
		require.NoError(t, err)

		_, err = ring.Search("bad\x00desc")
		assert.ErrorIs(t, err, types.ErrInvalidDescription)
		assert.Empty(t, mock.SearchCalls)
	})
}

func TestLinkUnlink(t *testing.T) {
	t.Run("link and unlink are inverse", func(t *testing.T) {
		mock := newTestGateway(t)

		source, err := DefaultSession()
		require.NoError(t, err)
		key, err := source.AddKey("shared", []byte("x"))
		require.NoError(t, err)

		target, err := FromSpecial(types.KeyringUser, true)
		require.NoError(t, err)

		require.NoError(t, target.LinkKey(key))
		assert.Contains(t, mock.LinksOf(target.ID()), key.ID())

		require.NoError(t, target.UnlinkKey(key))
		assert.NotContains(t, mock.LinksOf(target.ID()), key.ID())

		err = target.UnlinkKey(key)
		assert.ErrorIs(t, err, types.ErrKeyNotFound, "second unlink has nothing to remove")
	})

	t.Run("links nested keyrings", func(t *testing.T) {
		mock := newTestGateway(t)

		a, err := DefaultSession()
		require.NoError(t, err)
		b, err := a.CreateKeyring("b")
		require.NoError(t, err)
		c, err := a.CreateKeyring("c")
		require.NoError(t, err)

		require.NoError(t, b.LinkKeyring(c))
		assert.Contains(t, mock.LinksOf(b.ID()), c.ID())

		require.NoError(t, b.UnlinkKeyring(c))
		assert.NotContains(t, mock.LinksOf(b.ID()), c.ID())
	})

	t.Run("self link is a cycle", func(t *testing.T) {
		newTestGateway(t)

		ring, err := DefaultSession()
		require.NoError(t, err)

		err = ring.LinkKeyring(ring)
		assert.ErrorIs(t, err, types.ErrKeyringCycle)
	})

	t.Run("mutual links are a cycle", func(t *testing.T) {
		newTestGateway(t)

		session, err := DefaultSession()
		require.NoError(t, err)
		a, err := session.CreateKeyring("a")
		require.NoError(t, err)
		b, err := session.CreateKeyring("b")
		require.NoError(t, err)

		require.NoError(t, a.LinkKeyring(b))
		err = b.LinkKeyring(a)
		assert.ErrorIs(t, err, types.ErrKeyringCycle)
	})

	t.Run("deep chains exceed the nesting limit", func(t *testing.T) {
		newTestGateway(t)

		session, err := DefaultSession()
		require.NoError(t, err)

		// A chain six keyrings tall cannot be linked below another
		// keyring; five is the most that still fits.
		buildChain := func(prefix string, height int) Keyring {
			top, err := session.CreateKeyring(prefix)
			require.NoError(t, err)
			ring := top
			for i := 2; i <= height; i++ {
				ring, err = ring.CreateKeyring(fmt.Sprintf("%s-%d", prefix, i))
				require.NoError(t, err)
			}
			return top
		}

		target, err := session.CreateKeyring("target")
		require.NoError(t, err)

		tall := buildChain("tall", 6)
		err = target.LinkKeyring(tall)
		assert.ErrorIs(t, err, types.ErrNestingTooDeep)

		fits, err := session.CreateKeyring("fits-target")
		require.NoError(t, err)
		short := buildChain("short", 5)
		assert.NoError(t, fits.LinkKeyring(short))
	})

	t.Run("link by special id creates the keyring", func(t *testing.T) {
		mock := newTestGateway(t)

		target, err := DefaultSession()
		require.NoError(t, err)

		_, ok := mock.InstantiatedSpecial(types.KeyringThread)
		require.False(t, ok)

		require.NoError(t, target.LinkKeyringID(types.KeyringThread))

		thread, ok := mock.InstantiatedSpecial(types.KeyringThread)
		require.True(t, ok, "thread keyring instantiated by the link")
		assert.Contains(t, mock.LinksOf(target.ID()), thread)
	})

	t.Run("unlink by special id never creates", func(t *testing.T) {
		mock := newTestGateway(t)

		target, err := DefaultSession()
		require.NoError(t, err)

		err = target.UnlinkKeyringID(types.KeyringThread)
		assert.ErrorIs(t, err, types.ErrKeyNotFound)
		_, ok := mock.InstantiatedSpecial(types.KeyringThread)
		assert.False(t, ok, "failed unlink must not instantiate")

		require.NoError(t, target.LinkKeyringID(types.KeyringThread))
		assert.NoError(t, target.UnlinkKeyringID(types.KeyringThread))
		assert.Empty(t, mock.LinksOf(target.ID()))
	})

	t.Run("invalid special id", func(t *testing.T) {
		newTestGateway(t)

		target, err := DefaultSession()
		require.NoError(t, err)

		assert.ErrorIs(t, target.LinkKeyringID(types.SpecialID(3)), types.ErrInvalidIdentifier)
		assert.ErrorIs(t, target.UnlinkKeyringID(types.SpecialID(3)), types.ErrInvalidIdentifier)
	})
}

func TestClear(t *testing.T) {
	t.Run("removes every link", func(t *testing.T) {
		mock := newTestGateway(t)

		ring, err := DefaultSession()
		require.NoError(t, err)
		_, err = ring.AddKey("one", []byte("1"))
		require.NoError(t, err)
		_, err = ring.AddKey("two", []byte("2"))
		require.NoError(t, err)
		_, err = ring.CreateKeyring("three")
		require.NoError(t, err)

		require.Len(t, mock.LinksOf(ring.ID()), 3)
		require.NoError(t, ring.Clear())
		assert.Empty(t, mock.LinksOf(ring.ID()))
	})

	t.Run("clearing keeps the linked keys alive", func(t *testing.T) {
		newTestGateway(t)

		ring, err := DefaultSession()
		require.NoError(t, err)
		key, err := ring.AddKey("survivor", []byte("x"))
		require.NoError(t, err)

		require.NoError(t, ring.Clear())

		payload, err := key.Read()
		require.NoError(t, err)
		assert.Equal(t, []byte("x"), payload)
	})
}

func TestKeyringAttributes(t *testing.T) {
	t.Run("metadata reflects the kernel record", func(t *testing.T) {
		newTestGateway(t)

		ring, err := DefaultSession()
		require.NoError(t, err)

		meta, err := ring.Metadata()
		require.NoError(t, err)
		assert.Equal(t, types.KeyTypeKeyring, meta.Type)
		assert.Equal(t, 1000, meta.UID)
		assert.Equal(t, 1000, meta.GID)
		assert.Equal(t, "_ses", meta.Description)
		assert.Equal(t, types.Permissions(0x3f130000), meta.Permissions)
	})

	t.Run("set permissions", func(t *testing.T) {
		newTestGateway(t)

		ring, err := DefaultSession()
		require.NoError(t, err)

		perm := types.NewPermissionsBuilder().
			Possessor(types.RightAll).
			User(types.RightView | types.RightRead).
			Build()
		require.NoError(t, ring.SetPermissions(perm))

		meta, err := ring.Metadata()
		require.NoError(t, err)
		assert.Equal(t, perm, meta.Permissions)
	})

	t.Run("chown keeps values given minus one", func(t *testing.T) {
		newTestGateway(t)

		ring, err := DefaultSession()
		require.NoError(t, err)

		require.NoError(t, ring.Chown(-1, 2000))
		meta, err := ring.Metadata()
		require.NoError(t, err)
		assert.Equal(t, 1000, meta.UID)
		assert.Equal(t, 2000, meta.GID)
	})

	t.Run("timeout conversion", func(t *testing.T) {
		mock := newTestGateway(t)

		ring, err := DefaultSession()
		require.NoError(t, err)

		var got []uint
		mock.SetTimeoutFunc = func(_ types.ID, seconds uint) error {
			got = append(got, seconds)
			return nil
		}

		require.NoError(t, ring.SetTimeout(0))
		require.NoError(t, ring.SetTimeout(500*time.Millisecond))
		require.NoError(t, ring.SetTimeout(time.Second))
		require.NoError(t, ring.SetTimeout(1500*time.Millisecond))
		assert.Equal(t, []uint{0, 1, 1, 2}, got, "durations round up to whole seconds")

		mock.SetTimeoutCalls = nil
		err = ring.SetTimeout(-time.Second)
		assert.ErrorIs(t, err, types.ErrInvalidArguments)
		assert.Empty(t, mock.SetTimeoutCalls)
	})

	t.Run("revoked keyring rejects mutation", func(t *testing.T) {
		newTestGateway(t)

		ring, err := DefaultSession()
		require.NoError(t, err)
		require.NoError(t, ring.Revoke())

		_, err = ring.AddKey("late", []byte("x"))
		assert.ErrorIs(t, err, types.ErrKeyRevoked)
	})

	t.Run("invalidated keyring disappears", func(t *testing.T) {
		newTestGateway(t)

		ring, err := DefaultSession()
		require.NoError(t, err)
		require.NoError(t, ring.Invalidate())

		_, err = ring.AddKey("late", []byte("x"))
		assert.ErrorIs(t, err, types.ErrKeyNotFound)
	})
}
