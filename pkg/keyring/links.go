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
	"encoding/binary"
	"fmt"

	"github.com/jeremyhahn/go-keyutils/pkg/types"
)

// linkEntrySize is the wire size of one entry in a keyring's payload:
// a native-endian 32-bit serial number.
const linkEntrySize = 4

// LinkKind discriminates the two kinds of object a keyring can link.
type LinkKind string

const (
	// LinkKindKey is a linked individual key.
	LinkKindKey LinkKind = "key"

	// LinkKindKeyring is a linked nested keyring.
	LinkKindKeyring LinkKind = "keyring"
)

// LinkNode is one entry in a keyring's link list, classified as either
// a key or a nested keyring, together with the metadata captured at
// listing time.
type LinkNode struct {
	kind LinkKind
	id   types.ID
	meta types.Metadata
}

// Kind reports whether the node is a key or a nested keyring.
func (n LinkNode) Kind() LinkKind {
	return n.kind
}

// ID returns the linked object's serial number.
func (n LinkNode) ID() types.ID {
	return n.id
}

// Metadata returns the linked object's metadata as captured when the
// link list was read.
func (n LinkNode) Metadata() types.Metadata {
	return n.meta
}

// AsKey returns the node as a Key handle when it is one.
func (n LinkNode) AsKey() (Key, bool) {
	if n.kind != LinkKindKey {
		return Key{}, false
	}
	return Key{id: n.id}, true
}

// AsKeyring returns the node as a Keyring handle when it is one.
func (n LinkNode) AsKeyring() (Keyring, bool) {
	if n.kind != LinkKindKeyring {
		return Keyring{}, false
	}
	return Keyring{id: n.id}, true
}

// Links is the decoded link list of a keyring, in the order the kernel
// returned it.
type Links struct {
	nodes []LinkNode
}

// Len returns the number of decoded entries.
func (l Links) Len() int {
	return len(l.nodes)
}

// Nodes returns the decoded entries in kernel order.
func (l Links) Nodes() []LinkNode {
	nodes := make([]LinkNode, len(l.nodes))
	copy(nodes, l.nodes)
	return nodes
}

// Keys returns handles for the entries that are individual keys.
func (l Links) Keys() []Key {
	var keys []Key
	for _, n := range l.nodes {
		if k, ok := n.AsKey(); ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// Keyrings returns handles for the entries that are nested keyrings.
func (l Links) Keyrings() []Keyring {
	var rings []Keyring
	for _, n := range l.nodes {
		if r, ok := n.AsKeyring(); ok {
			rings = append(rings, r)
		}
	}
	return rings
}

// ContainsID reports whether an entry with the given serial was
// decoded.
func (l Links) ContainsID(id types.ID) bool {
	_, ok := l.Get(id)
	return ok
}

// Get returns the decoded entry with the given serial.
func (l Links) Get(id types.ID) (LinkNode, bool) {
	for _, n := range l.nodes {
		if n.id == id {
			return n, true
		}
	}
	return LinkNode{}, false
}

// Links reads and decodes up to maxEntries entries of the keyring's
// link list. Reading a keyring's payload yields its linked serial
// numbers as native-endian 32-bit values; each decoded serial is then
// classified as a key or nested keyring through its metadata.
//
// A maxEntries of zero returns an empty list without touching the
// kernel; negative values are rejected with types.ErrInvalidArguments.
// When the keyring holds more entries than maxEntries, the kernel fills
// the buffer with as many whole entries as fit and the rest are left
// out. Entries that disappear or deny viewing between the read and the
// classification are dropped.
func (r Keyring) Links(maxEntries int) (Links, error) {
	if maxEntries < 0 {
		return Links{}, fmt.Errorf("%w: negative link list limit %d", types.ErrInvalidArguments, maxEntries)
	}
	if maxEntries == 0 {
		return Links{}, nil
	}

	buf := make([]byte, maxEntries*linkEntrySize)
	n, err := gateway.ReadInto(r.id, buf)
	if err != nil {
		return Links{}, err
	}
	// The kernel reports the total payload size, which can exceed the
	// buffer. Only whole entries that actually fit were copied.
	if n > len(buf) {
		n = len(buf)
	}

	nodes := make([]LinkNode, 0, n/linkEntrySize)
	for off := 0; off+linkEntrySize <= n; off += linkEntrySize {
		serial := types.ID(binary.NativeEndian.Uint32(buf[off : off+linkEntrySize]))
		meta, err := describe(serial)
		if err != nil {
			// Unlinked in the meantime, or viewing is not permitted.
			continue
		}
		node := LinkNode{kind: LinkKindKey, id: serial, meta: meta}
		if meta.Type == types.KeyTypeKeyring {
			node.kind = LinkKindKeyring
		}
		nodes = append(nodes, node)
	}
	return Links{nodes: nodes}, nil
}
