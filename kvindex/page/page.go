// Package page defines the on-disk byte layout of the tree header page
// and B+ tree node pages, and the fixed-offset encode/decode routines
// that translate between that layout and an in-memory Node.
//
// The node is stored as a direct byte image of its structure at fixed
// offsets (native endianness is not assumed on-disk; we pick
// little-endian explicitly so the format is at least reproducible across
// hosts, even though cross-host portability otherwise remains a
// non-goal). Every page is zeroed before a new node is initialized into
// it so that unused slots (children, items) don't leak stale bytes from
// a previously freed page.
package page

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Size is the fixed page size in bytes. Every page, including the header
// page, occupies exactly this many bytes on disk.
const Size = 16384

// headerRootOff / headerHasRootOff locate the two fields of the tree
// header stored on page 0. The remainder of page 0 is unused.
const (
	headerRootOff    = 0
	headerHasRootOff = 4
)

// HeaderPageID is the reserved page id for the tree header; it is never
// a tree node.
const HeaderPageID = 0

// Header is the content of page 0: the id of the root node page, and
// whether the tree currently has one.
type Header struct {
	RootPageID int32
	HasRoot    bool
}

// EncodeHeader writes h into a zeroed page-sized buffer.
func EncodeHeader(buf []byte, h Header) {
	for i := range buf {
		buf[i] = 0
	}
	binary.LittleEndian.PutUint32(buf[headerRootOff:], uint32(h.RootPageID))
	if h.HasRoot {
		buf[headerHasRootOff] = 1
	}
}

// DecodeHeader reads a Header back out of a page-sized buffer.
func DecodeHeader(buf []byte) Header {
	return Header{
		RootPageID: int32(binary.LittleEndian.Uint32(buf[headerRootOff:])),
		HasRoot:    buf[headerHasRootOff] != 0,
	}
}

// Layout fixes the node page geometry for one tree: the order t, derived
// MaxKeys/MaxChildren, and the fixed payload width. A Layout is
// constructed once and never changes for the lifetime of a given backing
// file.
type Layout struct {
	Order       int // t: minimum keys in a non-root node
	MaxKeys     int // 2t
	MaxChildren int // 2t + 1
	ItemSize    int // width in bytes of one leaf payload
}

// Fixed header fields shared by leaf and internal node pages:
//
//	offset  size  field
//	0       1     isLeaf
//	4       4     size
//	8       4     nextLeaf (meaningful only for leaves)
//	12      32    bloom    (meaningful only for leaves)
//	44      ...   keys[MaxKeys] (int32 each)
//	...     ...   children[MaxChildren] (int32 each, meaningful only for internals)
//	...     ...   items[MaxKeys] (ItemSize bytes each, meaningful only for leaves)
const (
	nodeIsLeafOff = 0
	nodeSizeOff   = 4
	nodeNextOff   = 8
	nodeBloomOff  = 12
	nodeBloomLen  = 32
	nodeKeysOff   = nodeBloomOff + nodeBloomLen // 44
)

func (l Layout) childrenOff() int { return nodeKeysOff + 4*l.MaxKeys }
func (l Layout) itemsOff() int    { return l.childrenOff() + 4*l.MaxChildren }

// ByteSize returns the number of bytes a node page under this layout
// occupies.
func (l Layout) ByteSize() int {
	return l.itemsOff() + l.ItemSize*l.MaxKeys
}

// NewLayout derives MaxKeys/MaxChildren from order and validates that a
// node under this layout fits in one page — the build-time check spec.md
// asks for, performed here at tree-construction time since Go layouts
// are parameterized by runtime order/item size rather than by a
// compile-time constant.
func NewLayout(order, itemSize int) (Layout, error) {
	if order < 1 {
		return Layout{}, errors.Errorf("kvindex/page: order must be >= 1, got %d", order)
	}
	if itemSize < 1 {
		return Layout{}, errors.Errorf("kvindex/page: item size must be >= 1, got %d", itemSize)
	}
	l := Layout{
		Order:       order,
		MaxKeys:     2 * order,
		MaxChildren: 2*order + 1,
		ItemSize:    itemSize,
	}
	if l.ByteSize() > Size {
		return Layout{}, errors.Errorf(
			"kvindex/page: node page for order=%d itemSize=%d needs %d bytes, exceeds page size %d",
			order, itemSize, l.ByteSize(), Size)
	}
	return l, nil
}

// Node is the in-memory view of a decoded node page.
type Node struct {
	IsLeaf   bool
	Size     int32
	Keys     []int32  // len MaxKeys; only [0, Size) meaningful
	Items    [][]byte // len MaxKeys, each ItemSize bytes; meaningful only when IsLeaf
	NextLeaf int32    // meaningful only when IsLeaf; -1 if none
	Children []int32  // len MaxChildren; meaningful only when !IsLeaf; unused slots are -1
	Bloom    [nodeBloomLen]byte
}

// NewNode allocates a zero-valued node of the given kind under l, with
// all slots initialized to their empty sentinel (-1 for children/next,
// zeroed keys/items/bloom).
func NewNode(l Layout, isLeaf bool) *Node {
	n := &Node{
		IsLeaf:   isLeaf,
		Keys:     make([]int32, l.MaxKeys),
		NextLeaf: -1,
	}
	if isLeaf {
		n.Items = make([][]byte, l.MaxKeys)
		for i := range n.Items {
			n.Items[i] = make([]byte, l.ItemSize)
		}
	} else {
		n.Children = make([]int32, l.MaxChildren)
		for i := range n.Children {
			n.Children[i] = -1
		}
	}
	return n
}

// Encode serializes n into buf (which must be Size bytes) under layout l.
func Encode(buf []byte, l Layout, n *Node) {
	for i := range buf {
		buf[i] = 0
	}
	if n.IsLeaf {
		buf[nodeIsLeafOff] = 1
	}
	binary.LittleEndian.PutUint32(buf[nodeSizeOff:], uint32(n.Size))
	binary.LittleEndian.PutUint32(buf[nodeNextOff:], uint32(n.NextLeaf))
	copy(buf[nodeBloomOff:nodeBloomOff+nodeBloomLen], n.Bloom[:])

	for i := 0; i < l.MaxKeys; i++ {
		binary.LittleEndian.PutUint32(buf[nodeKeysOff+4*i:], uint32(n.Keys[i]))
	}

	childOff := l.childrenOff()
	if n.IsLeaf {
		for i := 0; i < l.MaxChildren; i++ {
			binary.LittleEndian.PutUint32(buf[childOff+4*i:], ^uint32(0))
		}
	} else {
		for i := 0; i < l.MaxChildren; i++ {
			binary.LittleEndian.PutUint32(buf[childOff+4*i:], uint32(n.Children[i]))
		}
	}

	itemOff := l.itemsOff()
	if n.IsLeaf {
		for i := 0; i < l.MaxKeys; i++ {
			copy(buf[itemOff+l.ItemSize*i:itemOff+l.ItemSize*(i+1)], n.Items[i])
		}
	}
}

// Decode deserializes a node page under layout l from buf.
func Decode(buf []byte, l Layout) *Node {
	n := &Node{
		IsLeaf:   buf[nodeIsLeafOff] != 0,
		Size:     int32(binary.LittleEndian.Uint32(buf[nodeSizeOff:])),
		NextLeaf: int32(binary.LittleEndian.Uint32(buf[nodeNextOff:])),
		Keys:     make([]int32, l.MaxKeys),
	}
	copy(n.Bloom[:], buf[nodeBloomOff:nodeBloomOff+nodeBloomLen])

	for i := 0; i < l.MaxKeys; i++ {
		n.Keys[i] = int32(binary.LittleEndian.Uint32(buf[nodeKeysOff+4*i:]))
	}

	childOff := l.childrenOff()
	if !n.IsLeaf {
		n.Children = make([]int32, l.MaxChildren)
		for i := 0; i < l.MaxChildren; i++ {
			n.Children[i] = int32(binary.LittleEndian.Uint32(buf[childOff+4*i:]))
		}
	}

	itemOff := l.itemsOff()
	if n.IsLeaf {
		n.Items = make([][]byte, l.MaxKeys)
		for i := 0; i < l.MaxKeys; i++ {
			item := make([]byte, l.ItemSize)
			copy(item, buf[itemOff+l.ItemSize*i:itemOff+l.ItemSize*(i+1)])
			n.Items[i] = item
		}
	}
	return n
}
