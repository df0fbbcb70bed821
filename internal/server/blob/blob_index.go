package blob

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS saves (
	key TEXT PRIMARY KEY,
	size INTEGER NOT NULL,
	last_modified TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_saves_last_modified ON saves(last_modified);
`

// SaveIndex is the sqlite listing of stored save objects. Listings are
// served from here, never from the backend.
type SaveIndex struct {
	db *sqlx.DB
}

func newSaveIndex(db *sqlx.DB) (*SaveIndex, error) {
	if _, err := db.Exec(schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to initialize index: %w", err)
	}
	return &SaveIndex{db: db}, nil
}

func (si *SaveIndex) Close() error {
	return si.db.Close()
}

func (si *SaveIndex) Get(key string) (*ObjectInfo, bool) {
	var obj ObjectInfo
	err := si.db.Get(&obj, "SELECT key, size, last_modified FROM saves WHERE key = ?", key)
	if err != nil {
		return nil, false
	}
	return &obj, true
}

// Set adds or updates an object in the index
func (si *SaveIndex) Set(obj *ObjectInfo) error {
	_, err := si.db.Exec(
		`INSERT OR REPLACE INTO saves (key, size, last_modified) VALUES (?, ?, ?)`,
		obj.Key, obj.Size, obj.LastModified,
	)
	return err
}

func (si *SaveIndex) Remove(key string) error {
	_, err := si.db.Exec("DELETE FROM saves WHERE key = ?", key)
	return err
}

// FilterByPrefix returns objects whose key starts with prefix. The match is
// literal; game and folder names may contain glob characters.
func (si *SaveIndex) FilterByPrefix(prefix string) ([]*ObjectInfo, error) {
	var objs []*ObjectInfo
	err := si.db.Select(&objs,
		"SELECT key, size, last_modified FROM saves WHERE substr(key, 1, ?) = ? ORDER BY key",
		len(prefix), prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to filter saves by prefix: %w", err)
	}
	return objs, nil
}

func (si *SaveIndex) Count() int {
	var count int
	if err := si.db.Get(&count, "SELECT COUNT(*) FROM saves"); err != nil {
		return 0
	}
	return count
}

type bulkUpdateResult struct {
	Added   int
	Updated int
	Deleted int
}

// bulkUpdate replaces the index with objs, adding new rows, updating changed
// ones and removing rows whose object no longer exists.
func (si *SaveIndex) bulkUpdate(objs []*ObjectInfo) (result *bulkUpdateResult, err error) {
	tx, err := si.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.Exec(`
		CREATE TEMPORARY TABLE temp_saves (
			key TEXT PRIMARY KEY,
			size INTEGER NOT NULL,
			last_modified TEXT NOT NULL
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary table: %w", err)
	}

	insertStmt, err := tx.Preparex(
		`INSERT OR REPLACE INTO temp_saves (key, size, last_modified) VALUES (?, ?, ?)`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer insertStmt.Close()

	for _, obj := range objs {
		if _, err = insertStmt.Exec(obj.Key, obj.Size, obj.LastModified); err != nil {
			return nil, fmt.Errorf("failed to insert %s into temp table: %w", obj.Key, err)
		}
	}

	result = &bulkUpdateResult{}

	err = tx.Get(&result.Deleted, `
		SELECT COUNT(*) FROM saves s
		LEFT JOIN temp_saves t ON s.key = t.key
		WHERE t.key IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count deleted saves: %w", err)
	}

	_, err = tx.Exec(`DELETE FROM saves WHERE key NOT IN (SELECT key FROM temp_saves)`)
	if err != nil {
		return nil, fmt.Errorf("failed to remove deleted saves: %w", err)
	}

	err = tx.Get(&result.Added, `
		SELECT COUNT(*) FROM temp_saves t
		LEFT JOIN saves s ON t.key = s.key
		WHERE s.key IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count new saves: %w", err)
	}

	err = tx.Get(&result.Updated, `
		SELECT COUNT(*) FROM temp_saves t
		JOIN saves s ON t.key = s.key
		WHERE t.last_modified != s.last_modified OR t.size != s.size
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count updated saves: %w", err)
	}

	_, err = tx.Exec(`
		INSERT OR REPLACE INTO saves (key, size, last_modified)
		SELECT t.key, t.size, t.last_modified
		FROM temp_saves t
		LEFT JOIN saves s ON t.key = s.key
		WHERE s.key IS NULL OR t.last_modified != s.last_modified OR t.size != s.size
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to update or insert saves: %w", err)
	}

	if _, err = tx.Exec(`DROP TABLE temp_saves`); err != nil {
		return nil, fmt.Errorf("failed to drop temporary table: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return result, nil
}
