package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

const (
	recordPrefix = "record:"
	addrPrefix   = "addr:"
	seqKey       = "seq:record"

	seqBandwidth = 128
)

var _ Store = (*BadgerStore)(nil)

// BadgerStore keeps each record under record:<seq> plus an
// addr:<address>:<seq> index entry used for prefix search.
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence
}

// NewBadgerStore opens (or creates) a badger database directory at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	opts.Compression = options.Snappy
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger %s: %w", path, err)
	}
	seq, err := db.GetSequence([]byte(seqKey), seqBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BadgerStore{db: db, seq: seq}, nil
}

func (s *BadgerStore) Append(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := s.seq.Next()
		if err != nil {
			return err
		}
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if err := wb.Set(recordKey(n), data); err != nil {
			return err
		}
		if err := wb.Set(indexKey(r.Address, n), data); err != nil {
			return err
		}
	}
	return wb.Flush()
}

func (s *BadgerStore) Search(ctx context.Context, prefix string) ([]Record, error) {
	type hit struct {
		seq uint64
		rec Record
	}
	var hits []hit

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(addrPrefix + prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := item.Key()
			if len(key) < 8 {
				continue
			}
			var rec Record
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return err
			}
			// the key prefix also matches into the separator and sequence bytes
			if !rec.HasPrefix(prefix) {
				continue
			}
			hits = append(hits, hit{seq: binary.BigEndian.Uint64(key[len(key)-8:]), rec: rec})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].seq < hits[j].seq })
	out := make([]Record, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.rec)
	}
	return out, nil
}

func (s *BadgerStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(recordPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

func (s *BadgerStore) Close() error {
	if err := s.seq.Release(); err != nil {
		_ = s.db.Close()
		return err
	}
	return s.db.Close()
}

func recordKey(n uint64) []byte {
	return binary.BigEndian.AppendUint64([]byte(recordPrefix), n)
}

// indexKey ends with the 8 byte big-endian sequence so search results can be
// returned in insertion order.
func indexKey(address string, n uint64) []byte {
	k := make([]byte, 0, len(addrPrefix)+len(address)+1+8)
	k = append(k, addrPrefix...)
	k = append(k, address...)
	k = append(k, ':')
	return binary.BigEndian.AppendUint64(k, n)
}
