package store

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.etcd.io/bbolt"

	"github.com/rmoroz/gcalcache/internal/store/migrations"
)

type BoltDBTestSuite struct {
	suite.Suite
	store *BoltDB
}

// SetupSuite runs ONCE before all tests in the suite
func (s *BoltDBTestSuite) SetupSuite() {
	dbPath := filepath.Join(s.T().TempDir(), "test.db")

	store, err := NewBoltDB(dbPath)
	s.Require().NoError(err)

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError, // Quiet during tests
	}))
	s.Require().NoError(migrations.RunMigrations(store.DB(), log))

	s.store = store
}

// TearDownSuite runs ONCE after all tests
func (s *BoltDBTestSuite) TearDownSuite() {
	if s.store != nil {
		s.store.Close()
	}
}

// TearDownTest runs after EACH test (cleanup data, not DB)
func (s *BoltDBTestSuite) TearDownTest() {
	err := s.store.DB().Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{blobsBucket, notificationsBucket} {
			b := tx.Bucket([]byte(name))
			if b == nil {
				continue
			}
			c := b.Cursor()
			for k, _ := c.First(); k != nil; k, _ = c.Next() {
				if err := b.Delete(k); err != nil {
					return err
				}
			}
		}
		return nil
	})
	s.Require().NoError(err)
}

func (s *BoltDBTestSuite) TestBlobRoundTrip() {
	blob := s.store.Blob("event_sync")

	data, err := blob.Load()
	s.Require().NoError(err)
	s.Nil(data)

	s.Require().NoError(blob.Save([]byte(`{"token":"T1"}`)))

	data, err = blob.Load()
	s.Require().NoError(err)
	s.Equal(`{"token":"T1"}`, string(data))
}

func (s *BoltDBTestSuite) TestBlobKeysIndependent() {
	s.Require().NoError(s.store.Blob("a").Save([]byte("one")))
	s.Require().NoError(s.store.Blob("b").Save([]byte("two")))

	data, err := s.store.Blob("a").Load()
	s.Require().NoError(err)
	s.Equal("one", string(data))

	data, err = s.store.Blob("b").Load()
	s.Require().NoError(err)
	s.Equal("two", string(data))
}

func (s *BoltDBTestSuite) TestNotificationState() {
	_, found, err := s.store.GetNotificationState(42)
	s.Require().NoError(err)
	s.False(found)

	want := NotificationState{
		ChatID: 42,
		SentAt: time.Date(2022, 8, 1, 9, 0, 0, 0, time.UTC),
		Digest: "abc123",
	}
	s.Require().NoError(s.store.PutNotificationState(want))

	got, found, err := s.store.GetNotificationState(42)
	s.Require().NoError(err)
	s.True(found)
	s.Equal(want, got)
}

func TestBoltDBTestSuite(t *testing.T) {
	suite.Run(t, new(BoltDBTestSuite))
}
