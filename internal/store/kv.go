package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"go.etcd.io/bbolt"

	"github.com/javanhut/helio-vcs/internal/cas"
	"github.com/javanhut/helio-vcs/internal/pack"
	"github.com/javanhut/helio-vcs/internal/serial"
)

// Buckets
var (
	BucketRevisions = []byte("revisions") // revision id -> blake3 || packed payload
	BucketTree      = []byte("tree")      // sequence -> id "\x00" parent id, pre-order
	BucketMeta      = []byte("meta")      // root, head, format
	BucketDocs      = []byte("docs")      // stashes, remote cache
)

// Meta keys.
const (
	MetaRoot   = "root"
	MetaHead   = "head"
	MetaFormat = "format"

	DocStashes = "stashes"
	DocRemote  = "remote"
)

// FormatVersion is written to the meta bucket on every save.
const FormatVersion = "1"

var (
	ErrNotFound = errors.New("store: key not found")
	ErrCorrupt  = errors.New("store: corrupt record")
)

type DB struct{ *bbolt.DB }

func Open(path string) (*DB, error) {
	db, err := bbolt.Open(path, 0666, nil)
	if err != nil {
		return nil, err
	}
	// Ensure buckets exist
	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{BucketRevisions, BucketTree, BucketMeta, BucketDocs} {
			if _, e := tx.CreateBucketIfNotExists(b); e != nil {
				return e
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &DB{db}, nil
}

func (db *DB) Close() error { return db.DB.Close() }

// encodeRecord packs a payload and prefixes it with its blake3 checksum.
func encodeRecord(n *serial.Node) ([]byte, error) {
	data, err := pack.Encode(n)
	if err != nil {
		return nil, err
	}
	sum := cas.SumB3(data)
	return append(sum[:], data...), nil
}

func decodeRecord(v []byte) (*serial.Node, error) {
	if len(v) < len(cas.Hash{}) {
		return nil, fmt.Errorf("%w: short record", ErrCorrupt)
	}
	var want cas.Hash
	copy(want[:], v)
	data := v[len(want):]
	if cas.SumB3(data) != want {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}
	n, err := pack.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return n, nil
}

// putDoc stores a node under key in bucket.
func putDoc(tx *bbolt.Tx, bucket []byte, key string, n *serial.Node) error {
	rec, err := encodeRecord(n)
	if err != nil {
		return err
	}
	return tx.Bucket(bucket).Put([]byte(key), rec)
}

// getDoc loads a node stored by putDoc. A missing key yields ErrNotFound.
func getDoc(tx *bbolt.Tx, bucket []byte, key string) (*serial.Node, error) {
	v := tx.Bucket(bucket).Get([]byte(key))
	if v == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return decodeRecord(v)
}

// HasRevision reports whether a revision record exists.
func (db *DB) HasRevision(id string) (bool, error) {
	var ok bool
	err := db.View(func(tx *bbolt.Tx) error {
		ok = tx.Bucket(BucketRevisions).Get([]byte(id)) != nil
		return nil
	})
	return ok, err
}

// RevisionPayload returns the stored payload of one revision.
func (db *DB) RevisionPayload(id string) (*serial.Node, error) {
	var n *serial.Node
	err := db.View(func(tx *bbolt.Tx) error {
		var err error
		n, err = getDoc(tx, BucketRevisions, id)
		return err
	})
	return n, err
}

// PutMeta stores a meta value.
func (db *DB) PutMeta(key, value string) error {
	return db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(BucketMeta).Put([]byte(key), []byte(value))
	})
}

// GetMeta retrieves a meta value by key.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(BucketMeta).Get([]byte(key))
		if v == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		value = string(v)
		return nil
	})
	return value, err
}

type treeEntry struct {
	id, parent string
}

func seqKey(i uint64) []byte {
	var k [8]byte
	binary.BigEndian.PutUint64(k[:], i)
	return k[:]
}

func encodeTreeEntry(e treeEntry) []byte {
	return []byte(e.id + "\x00" + e.parent)
}

func decodeTreeEntry(v []byte) (treeEntry, error) {
	id, parent, ok := strings.Cut(string(v), "\x00")
	if !ok || id == "" {
		return treeEntry{}, fmt.Errorf("%w: tree entry %q", ErrCorrupt, v)
	}
	return treeEntry{id: id, parent: parent}, nil
}

// readTree returns the tree entries in stored order.
func readTree(tx *bbolt.Tx) ([]treeEntry, error) {
	var out []treeEntry
	err := tx.Bucket(BucketTree).ForEach(func(_, v []byte) error {
		e, err := decodeTreeEntry(v)
		if err != nil {
			return err
		}
		out = append(out, e)
		return nil
	})
	return out, err
}

// writeTree replaces the tree bucket with entries.
func writeTree(tx *bbolt.Tx, entries []treeEntry) error {
	if err := tx.DeleteBucket(BucketTree); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
		return err
	}
	b, err := tx.CreateBucket(BucketTree)
	if err != nil {
		return err
	}
	for i, e := range entries {
		if err := b.Put(seqKey(uint64(i)), encodeTreeEntry(e)); err != nil {
			return err
		}
	}
	return nil
}
