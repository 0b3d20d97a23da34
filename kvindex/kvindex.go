// Package kvindex is the public facade over the disk-resident B+ tree
// index: a fixed-width key/value store keyed by name, meant to be
// embedded in a single-process, single-writer program.
//
// A kvindex.Index owns a paged file, a bounded buffer pool over it, and a
// B+ tree engine; none of those internals are meant to be reached into
// directly by callers outside this module.
package kvindex

import (
	"io"
	"log"

	"github.com/ngina/kvidx/kvindex/buffer"
	"github.com/ngina/kvidx/kvindex/disk"
	"github.com/ngina/kvidx/kvindex/keyenc"
	"github.com/ngina/kvidx/kvindex/page"
	"github.com/ngina/kvidx/kvindex/tree"
)

// RecordNameLen is the fixed width, in bytes, of a record's name field.
const RecordNameLen = 100

// RecordSize is the total on-disk width of one Record: a 100-byte name
// field plus two int32 fields and one float64 field.
const RecordSize = RecordNameLen + 4 + 4 + 8

// Record is the fixed-width payload the index stores one of per key. It
// mirrors the small nutrition-style schema the reference CSV loader
// populated: a name plus two integer attributes and one real-valued
// attribute, padded/truncated to a constant width so every leaf slot is
// the same size.
type Record struct {
	Name  string
	A, B  int32
	Value float64
}

// Options configures a newly opened Index.
type Options struct {
	// Order is the B+ tree's minimum fanout parameter t (MaxKeys = 2t).
	Order int
	// PoolFrames is the number of frames the buffer pool holds resident.
	PoolFrames int
	// Logger receives diagnostic output from the buffer pool and tree.
	// Defaults to log.Default() when nil.
	Logger *log.Logger
}

// DefaultOptions returns reasonable defaults: order 64 (128-key nodes),
// a 256-frame pool, and the standard library's default logger.
func DefaultOptions() Options {
	return Options{
		Order:      64,
		PoolFrames: 256,
		Logger:     log.Default(),
	}
}

// Index is an open handle on a disk-resident name-keyed record store.
type Index struct {
	disk *disk.Manager
	pool *buffer.Pool
	tr   *tree.Tree
}

// Open opens (creating if necessary) the index file at path under opts.
func Open(path string, opts Options) (*Index, error) {
	if opts.Order <= 0 {
		opts = DefaultOptions()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	dm, err := disk.Open(path)
	if err != nil {
		return nil, err
	}
	layout, err := page.NewLayout(opts.Order, RecordSize)
	if err != nil {
		dm.Close()
		return nil, err
	}
	pool := buffer.New(dm, opts.PoolFrames, logger)
	tr, err := tree.Open(pool, layout, logger)
	if err != nil {
		dm.Close()
		return nil, err
	}
	return &Index{disk: dm, pool: pool, tr: tr}, nil
}

// Close flushes all resident dirty pages and closes the backing file.
func (idx *Index) Close() error {
	if err := idx.tr.Close(); err != nil {
		return err
	}
	return idx.disk.Close()
}

// Stats exposes the underlying buffer pool's fetch/hit/miss/eviction
// counters, for benchmarking and diagnostics.
func (idx *Index) Stats() buffer.Stats { return idx.tr.Stats() }

func encodeRecord(r Record) []byte {
	buf := make([]byte, RecordSize)
	nb := []byte(r.Name)
	if len(nb) > RecordNameLen {
		nb = nb[:RecordNameLen]
	}
	copy(buf[0:RecordNameLen], nb)
	putInt32(buf[RecordNameLen:], r.A)
	putInt32(buf[RecordNameLen+4:], r.B)
	putFloat64(buf[RecordNameLen+8:], r.Value)
	return buf
}

func decodeRecord(buf []byte) Record {
	end := RecordNameLen
	for end > 0 && buf[end-1] == 0 {
		end--
	}
	return Record{
		Name:  string(buf[0:end]),
		A:     getInt32(buf[RecordNameLen:]),
		B:     getInt32(buf[RecordNameLen+4:]),
		Value: getFloat64(buf[RecordNameLen+8:]),
	}
}

// Insert upserts r under its name's derived key. An existing entry with
// the same key is silently overwritten, per the tree's upsert semantics;
// this includes the case where two different names collide under the
// key encoding.
func (idx *Index) Insert(r Record) error {
	key := keyenc.Encode(r.Name)
	return idx.tr.Insert(key, encodeRecord(r))
}

// Search looks up a record by exact name.
func (idx *Index) Search(name string) (Record, bool, error) {
	key := keyenc.Encode(name)
	buf, found, err := idx.tr.Search(key)
	if err != nil || !found {
		return Record{}, found, err
	}
	return decodeRecord(buf), true, nil
}

// SearchWithoutBloom performs the same lookup as Search but bypasses the
// per-leaf Bloom filter, for A/B comparison.
func (idx *Index) SearchWithoutBloom(name string) (Record, bool, error) {
	key := keyenc.Encode(name)
	buf, found, err := idx.tr.SearchWithoutBloom(key)
	if err != nil || !found {
		return Record{}, found, err
	}
	return decodeRecord(buf), true, nil
}

// Remove deletes the record keyed by name, if present.
func (idx *Index) Remove(name string) (bool, error) {
	key := keyenc.Encode(name)
	return idx.tr.Remove(key)
}

// RangeSearchByChar returns every record whose name begins with a
// character in the inclusive, case-insensitive range [c1, c2].
func (idx *Index) RangeSearchByChar(c1, c2 byte) ([]Record, error) {
	lo, hi := keyenc.CharRange(c1, c2)
	raw, err := idx.tr.RangeSearch(lo, hi)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(raw))
	for _, buf := range raw {
		out = append(out, decodeRecord(buf))
	}
	return out, nil
}

// PrefixSearch returns every record whose name starts with prefix,
// case-insensitively. An empty prefix returns every record. Otherwise the
// tree is scanned only over the integer bucket matching prefix's first
// two characters; names that share that bucket but don't actually match
// the full prefix are filtered out afterward.
func (idx *Index) PrefixSearch(prefix string) ([]Record, error) {
	if prefix == "" {
		return idx.AllRecords()
	}
	lo, hi := keyenc.PrefixBucket(prefix)
	raw, err := idx.tr.RangeSearch(lo, hi)
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(raw))
	for _, buf := range raw {
		rec := decodeRecord(buf)
		if keyenc.HasCaseInsensitivePrefix(rec.Name, prefix) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// AllRecords returns every record in the index, in key order.
func (idx *Index) AllRecords() ([]Record, error) {
	_, items, err := idx.tr.AllInOrder()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(items))
	for _, buf := range items {
		out = append(out, decodeRecord(buf))
	}
	return out, nil
}

// ComputeTreeDepth returns the number of levels in the tree, 0 if empty.
func (idx *Index) ComputeTreeDepth() (int, error) {
	return idx.tr.ComputeDepth()
}

// PrintTree writes a diagnostic dump of the tree's structure to w.
func (idx *Index) PrintTree(w io.Writer) error {
	return idx.tr.PrintTree(w)
}
