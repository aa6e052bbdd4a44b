// Package v1 creates the buckets the store operates on: blobs for sync
// state and notifications for sent-digest records.
package v1

import (
	"fmt"

	"go.etcd.io/bbolt"
)

type Migration struct{}

func New() *Migration {
	return &Migration{}
}

func (m *Migration) Version() int {
	return 1
}

func (m *Migration) Description() string {
	return "create blobs and notifications buckets"
}

func (m *Migration) Up(db *bbolt.DB) error {
	return db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{"blobs", "notifications"} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}
