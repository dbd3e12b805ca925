package bolt

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/haukened/focusgate/internal/focus/domain"
	"github.com/haukened/focusgate/internal/focus/repos/lists"
)

var (
	bucketLists = []byte("lists")
	bucketMeta  = []byte("meta")

	keyVersion = []byte("version")
	keyUpdated = []byte("updated")
)

// boltStore implements lists.Store using bbolt.
type boltStore struct {
	db  *bbolt.DB
	now func() time.Time
}

type bucketCreator interface {
	CreateBucketIfNotExists(name []byte) (*bbolt.Bucket, error)
}

// ensureBuckets creates the lists and meta buckets when missing.
func ensureBuckets(tx bucketCreator) error {
	for _, name := range [][]byte{bucketLists, bucketMeta} {
		if _, err := tx.CreateBucketIfNotExists(name); err != nil {
			return fmt.Errorf("create bucket %s: %w", name, err)
		}
	}
	return nil
}

// seams for tests
var (
	ensureBucketsFn = func(tx bucketCreator) error { return ensureBuckets(tx) }
	writeMetaFn     = writeMeta
)

// New opens (or creates) a Bolt database at path and ensures buckets exist.
func New(path string) (lists.Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		return ensureBucketsFn(tx)
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &boltStore{db: db, now: time.Now}, nil
}

func (s *boltStore) Close() error { return s.db.Close() }

// Load reads both lists in one read transaction.
func (s *boltStore) Load() (domain.Lists, error) {
	var out domain.Lists
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketLists)
		if b == nil {
			return nil
		}
		var err error
		if out.Block, err = decodeList(b.Get([]byte(lists.KeyBlocked))); err != nil {
			return fmt.Errorf("decode %s: %w", lists.KeyBlocked, err)
		}
		if out.Allow, err = decodeList(b.Get([]byte(lists.KeyAllowed))); err != nil {
			return fmt.Errorf("decode %s: %w", lists.KeyAllowed, err)
		}
		return nil
	})
	if err != nil {
		return domain.Lists{}, err
	}
	return out, nil
}

func (s *boltStore) SaveBlockList(entries []string) error {
	return s.save(lists.KeyBlocked, entries)
}

func (s *boltStore) SaveAllowList(entries []string) error {
	return s.save(lists.KeyAllowed, entries)
}

// save writes one list and bumps the meta version in the same transaction.
func (s *boltStore) save(key string, entries []string) error {
	if entries == nil {
		entries = []string{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := ensureBucketsFn(tx); err != nil {
			return err
		}
		if err := tx.Bucket(bucketLists).Put([]byte(key), raw); err != nil {
			return err
		}
		version := readUint64(tx.Bucket(bucketMeta), keyVersion) + 1
		return writeMetaFn(tx, version, s.now().Unix())
	})
}

func (s *boltStore) Stats() lists.StoreStats {
	st := lists.StoreStats{}
	_ = s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(bucketLists); b != nil {
			if l, err := decodeList(b.Get([]byte(lists.KeyBlocked))); err == nil {
				st.BlockCount = len(l)
			}
			if l, err := decodeList(b.Get([]byte(lists.KeyAllowed))); err == nil {
				st.AllowCount = len(l)
			}
		}
		if b := tx.Bucket(bucketMeta); b != nil {
			st.Version = readUint64(b, keyVersion)
			st.UpdatedUnix = int64(readUint64(b, keyUpdated))
		}
		return nil
	})
	return st
}

func writeMeta(tx *bbolt.Tx, version uint64, updatedUnix int64) error {
	b := tx.Bucket(bucketMeta)
	if b == nil {
		return errors.New("meta bucket missing")
	}
	vbuf := make([]byte, 8)
	ubuf := make([]byte, 8)
	binary.BigEndian.PutUint64(vbuf, version)
	binary.BigEndian.PutUint64(ubuf, uint64(updatedUnix))
	if err := b.Put(keyVersion, vbuf); err != nil {
		return err
	}
	return b.Put(keyUpdated, ubuf)
}

func readUint64(b *bbolt.Bucket, key []byte) uint64 {
	if b == nil {
		return 0
	}
	if v := b.Get(key); len(v) == 8 {
		return binary.BigEndian.Uint64(v)
	}
	return 0
}

func decodeList(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return []string{}, nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}
