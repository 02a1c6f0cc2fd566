// Package boltstore is a bbolt-backed keeper of encrypted User snapshots,
// for a caller that wants a participant's channel state to survive process
// restarts without standing up an external database.
package boltstore

import (
	"time"

	"go.etcd.io/bbolt"

	"github.com/iotaledger/streams-go/pkg/streamserr"
)

var usersBucket = []byte("streams_users")

// Store wraps a *bbolt.DB, storing one opaque snapshot blob per label in a
// single bucket. It does not know, and does not need to know, that the
// blobs it holds are pkg/user Snapshot output: it is a label-keyed byte
// store, same as transport.Transport is an address-keyed one.
type Store struct {
	db *bbolt.DB
}

// Open opens (creating if absent) a bbolt database at path and returns a
// Store backed by it, with its bucket already created.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 10 * time.Second})
	if err != nil {
		return nil, streamserr.Wrap(streamserr.TransportFailure, "opening bolt database at "+path, err)
	}
	return NewStore(db)
}

// NewStore wraps an already-open *bbolt.DB, creating the bucket this Store
// uses if it does not yet exist. The caller retains ownership of db and
// must Close it (or call Store.Close, which does the same thing).
func NewStore(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(usersBucket)
		return err
	})
	if err != nil {
		return nil, streamserr.Wrap(streamserr.InternalError, "creating users bucket", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores snapshot under label, overwriting any prior blob there.
func (s *Store) Save(label string, snapshot []byte) error {
	cp := append([]byte(nil), snapshot...)
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(usersBucket).Put([]byte(label), cp)
	})
	if err != nil {
		return streamserr.Wrap(streamserr.InternalError, "saving snapshot for "+label, err)
	}
	return nil
}

// Load returns the snapshot blob stored under label, or a streamserr
// Unexpected error if no such label has been saved.
func (s *Store) Load(label string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(usersBucket).Get([]byte(label))
		if v == nil {
			return streamserr.New(streamserr.Unexpected, "no snapshot stored for "+label)
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes the snapshot blob stored under label, if any. Deleting an
// absent label is not an error.
func (s *Store) Delete(label string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(usersBucket).Delete([]byte(label))
	})
	if err != nil {
		return streamserr.Wrap(streamserr.InternalError, "deleting snapshot for "+label, err)
	}
	return nil
}

// Labels returns every label currently saved, in bbolt's own (sorted-key)
// iteration order.
func (s *Store) Labels() ([]string, error) {
	var out []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(usersBucket).ForEach(func(k, _ []byte) error {
			out = append(out, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, streamserr.Wrap(streamserr.InternalError, "listing saved snapshot labels", err)
	}
	return out, nil
}
