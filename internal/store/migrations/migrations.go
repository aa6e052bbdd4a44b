// Package migrations brings a bolt database up to the bucket layout the
// store expects. Applied versions are recorded in their own bucket with the
// time they ran, so each migration runs once per database.
package migrations

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"github.com/rmoroz/gcalcache/internal/store/migrations/v1"
)

// Migration is one versioned schema step.
type Migration interface {
	Version() int
	Description() string
	Up(db *bbolt.DB) error
}

const migrationsBucket = "migrations"

// registry holds every known migration; RunMigrations applies them in
// version order. New versions are added here.
var registry = []Migration{
	v1.New(),
}

// RunMigrations applies every migration not yet recorded in db.
func RunMigrations(db *bbolt.DB, log *slog.Logger) error {
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(migrationsBucket))
		return err
	}); err != nil {
		return fmt.Errorf("create migrations bucket: %w", err)
	}

	applied, err := appliedVersions(db)
	if err != nil {
		return err
	}

	pending := make([]Migration, len(registry))
	copy(pending, registry)
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].Version() < pending[j].Version()
	})

	ran := 0
	for _, m := range pending {
		if at, ok := applied[m.Version()]; ok {
			log.Debug("Migration already applied",
				"version", m.Version(),
				"applied_at", at.Format(time.RFC3339))
			continue
		}

		log.Info("Applying migration",
			"version", m.Version(),
			"description", m.Description())
		if err := m.Up(db); err != nil {
			return fmt.Errorf("apply migration v%d: %w", m.Version(), err)
		}
		if err := record(db, m.Version()); err != nil {
			return fmt.Errorf("record migration v%d: %w", m.Version(), err)
		}
		ran++
	}

	log.Info("Migrations up to date", "applied", ran)
	return nil
}

func appliedVersions(db *bbolt.DB) (map[int]time.Time, error) {
	applied := make(map[int]time.Time)
	err := db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(migrationsBucket)).ForEach(func(k, v []byte) error {
			var version int
			if _, err := fmt.Sscanf(string(k), "v%d", &version); err != nil {
				return fmt.Errorf("bad migration key %q: %w", k, err)
			}
			at, err := time.Parse(time.RFC3339, string(v))
			if err != nil {
				return fmt.Errorf("bad migration record for v%d: %w", version, err)
			}
			applied[version] = at
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("read applied migrations: %w", err)
	}
	return applied, nil
}

func record(db *bbolt.DB, version int) error {
	return db.Update(func(tx *bbolt.Tx) error {
		key := fmt.Sprintf("v%d", version)
		at := time.Now().Format(time.RFC3339)
		return tx.Bucket([]byte(migrationsBucket)).Put([]byte(key), []byte(at))
	})
}
