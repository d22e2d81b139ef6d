package store

import (
	"fmt"
	"path/filepath"
	"sync"
)

// DBFileName is the database file inside a project's history directory.
const DBFileName = "history.db"

// manager holds one open database and the number of handles on it.
type manager struct {
	db   *DB
	refs int
}

var (
	managers  = map[string]*manager{}
	managerMu sync.Mutex
)

// OpenShared returns a shared database handle for the given history
// directory. bbolt takes an exclusive file lock, so every caller in the
// process must go through the same connection. The connection is reference
// counted and closed when the last handle is released.
func OpenShared(dir string) (*SharedDB, error) {
	managerMu.Lock()
	defer managerMu.Unlock()

	dbPath := filepath.Join(dir, DBFileName)
	m, ok := managers[dbPath]
	if !ok {
		db, err := Open(dbPath)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		m = &manager{db: db}
		managers[dbPath] = m
	}
	m.refs++
	return &SharedDB{DB: m.db, path: dbPath}, nil
}

// SharedDB wraps a database connection with reference counting.
type SharedDB struct {
	*DB
	path string
	once sync.Once
}

// Close releases this handle and closes the underlying database when no
// more handles exist. Closing a handle twice releases it once.
func (s *SharedDB) Close() error {
	var err error
	s.once.Do(func() {
		managerMu.Lock()
		defer managerMu.Unlock()
		m, ok := managers[s.path]
		if !ok {
			return
		}
		m.refs--
		if m.refs <= 0 {
			delete(managers, s.path)
			err = m.db.Close()
		}
	})
	return err
}
