package migrations

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"go.etcd.io/bbolt"
)

func TestRunMigrations_EmptyDatabase(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	defer db.Close()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	err = RunMigrations(db, log)
	if err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}

	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte("migrations"))
		if b == nil {
			t.Fatal("migrations bucket not created")
		}

		for _, m := range registry {
			record := b.Get([]byte(fmt.Sprintf("v%d", m.Version())))
			if record == nil {
				t.Fatalf("migration %d not found in database", m.Version())
			}
		}

		for _, name := range []string{"blobs", "notifications"} {
			if tx.Bucket([]byte(name)) == nil {
				t.Fatalf("bucket %s not created", name)
			}
		}

		return nil
	})
	if err != nil {
		t.Fatalf("verify migrations: %v", err)
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	defer db.Close()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))

	if err := RunMigrations(db, log); err != nil {
		t.Fatalf("first RunMigrations failed: %v", err)
	}

	var firstApplied map[int]string
	err = db.View(func(tx *bbolt.Tx) error {
		firstApplied = make(map[int]string)
		b := tx.Bucket([]byte("migrations"))
		return b.ForEach(func(k, v []byte) error {
			var version int
			if _, err := fmt.Sscanf(string(k), "v%d", &version); err != nil {
				return err
			}
			firstApplied[version] = string(v)
			return nil
		})
	})
	if err != nil {
		t.Fatalf("read applied migrations: %v", err)
	}

	if err := RunMigrations(db, log); err != nil {
		t.Fatalf("second RunMigrations failed: %v", err)
	}

	err = db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte("migrations"))
		return b.ForEach(func(k, v []byte) error {
			var version int
			if _, err := fmt.Sscanf(string(k), "v%d", &version); err != nil {
				return err
			}
			if firstApplied[version] != string(v) {
				t.Fatalf("migration v%d re-applied: %s != %s", version, firstApplied[version], v)
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("verify applied migrations: %v", err)
	}
}
