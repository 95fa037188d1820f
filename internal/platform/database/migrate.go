package database

import (
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
)

// Migrate executes every .sql file in fsys in lexical order. Statements are
// written with IF NOT EXISTS so reruns are harmless.
func Migrate(db *sql.DB, fsys fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && path.Ext(entry.Name()) == ".sql" {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read migration file %s: %w", name, err)
		}
		if _, err := db.Exec(string(content)); err != nil {
			return nil, fmt.Errorf("failed to execute migration %s: %w", name, err)
		}
	}
	return names, nil
}
