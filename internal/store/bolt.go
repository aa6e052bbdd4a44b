package store

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

type (
	// NotificationState records the last digest sent to a chat, used to
	// avoid resending an unchanged digest.
	NotificationState struct {
		ChatID int64     `json:"chat_id"`
		SentAt time.Time `json:"sent_at"`
		Digest string    `json:"digest"`
	}

	BoltDB struct {
		db *bbolt.DB
	}
)

const blobsBucket = "blobs"
const notificationsBucket = "notifications"

func NewBoltDB(path string) (*BoltDB, error) {
	db, err := bbolt.Open(path, 0600, nil) //nolint:gomnd
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	mustBucket(db, blobsBucket)
	mustBucket(db, notificationsBucket)

	return &BoltDB{db: db}, nil
}

// DB exposes the underlying handle for migrations.
func (s *BoltDB) DB() *bbolt.DB {
	return s.db
}

// Blob returns a Store persisting to the given key in the blobs bucket.
func (s *BoltDB) Blob(key string) Store {
	return &boltBlobStore{db: s.db, key: key}
}

func (s *BoltDB) GetNotificationState(chatID int64) (NotificationState, bool, error) {
	var res NotificationState
	found := false

	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(notificationsBucket)).Get(i64tob(chatID))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &res)
	})

	return res, found, err
}

func (s *BoltDB) PutNotificationState(state NotificationState) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		data, err := json.Marshal(&state)
		if err != nil {
			return fmt.Errorf("marshal notification state for chatID=%d: %w", state.ChatID, err)
		}
		return tx.Bucket([]byte(notificationsBucket)).Put(i64tob(state.ChatID), data)
	})
}

func (s *BoltDB) Close() error {
	return s.db.Close()
}

type boltBlobStore struct {
	db  *bbolt.DB
	key string
}

func (s *boltBlobStore) Load() ([]byte, error) {
	var res []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(blobsBucket)).Get([]byte(s.key))
		if data == nil {
			return nil
		}
		res = make([]byte, len(data))
		copy(res, data)
		return nil
	})
	return res, err
}

func (s *boltBlobStore) Save(data []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(blobsBucket)).Put([]byte(s.key), data)
	})
}

func i64tob(id int64) []byte {
	return []byte(fmt.Sprintf("%d", id))
}

func mustBucket(db *bbolt.DB, name string) {
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(name))
		return err
	}); err != nil {
		panic(fmt.Errorf("create bucket: %w", err))
	}
}
