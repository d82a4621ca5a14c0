package builtin

import (
	"database/sql"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/emberlang/ember/heap"
	"github.com/emberlang/ember/values"
)

// store is the builtin package's only piece of native, cross-call state:
// a lazily-opened embedded SQL database backing store-get/store-put. It
// demonstrates the arity-checked builtin contract (spec §4.5/§6) can carry
// a native function whose implementation owns real state across calls,
// not just a pure function of its arguments.
type store struct {
	mu sync.Mutex
	db *sql.DB
}

func (s *store) open(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS ember_store (key TEXT PRIMARY KEY, value TEXT)`); err != nil {
		db.Close()
		return err
	}
	s.db = db
	return nil
}

func (s *store) get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return "", false, &hostError{msg: "store-get: store is not open; call store-open first"}
	}
	var value string
	err := s.db.QueryRow(`SELECT value FROM ember_store WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *store) put(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return &hostError{msg: "store-put: store is not open; call store-open first"}
	}
	_, err := s.db.Exec(`INSERT INTO ember_store (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *store) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// storeOpenBuiltin takes a file path and opens (or reuses) the shared
// sqlite-backed store, returning true on success.
func storeOpenBuiltin(h *heap.Heap, s *store) *values.BuiltinFunc {
	return &values.BuiltinFunc{
		Name:  "store-open",
		Arity: 1,
		Impl: func(args []values.Value) (values.Value, error) {
			path, err := stringArg(h, args[0], "store-open")
			if err != nil {
				return values.Value{}, err
			}
			if err := s.open(path); err != nil {
				return values.Value{}, err
			}
			return values.NewBoolean(true), nil
		},
	}
}

// storeGetBuiltin looks up key, returning its String value or Nothing if
// absent.
func storeGetBuiltin(h *heap.Heap, s *store) *values.BuiltinFunc {
	return &values.BuiltinFunc{
		Name:  "store-get",
		Arity: 1,
		Impl: func(args []values.Value) (values.Value, error) {
			key, err := stringArg(h, args[0], "store-get")
			if err != nil {
				return values.Value{}, err
			}
			value, ok, err := s.get(key)
			if err != nil {
				return values.Value{}, err
			}
			if !ok {
				return values.NewNothing(), nil
			}
			return newStringValue(h, value), nil
		},
	}
}

// storePutBuiltin writes key -> value, returning Nothing.
func storePutBuiltin(h *heap.Heap, s *store) *values.BuiltinFunc {
	return &values.BuiltinFunc{
		Name:  "store-put",
		Arity: 2,
		Impl: func(args []values.Value) (values.Value, error) {
			key, err := stringArg(h, args[0], "store-put")
			if err != nil {
				return values.Value{}, err
			}
			value, err := stringArg(h, args[1], "store-put")
			if err != nil {
				return values.Value{}, err
			}
			if err := s.put(key, value); err != nil {
				return values.Value{}, err
			}
			return values.NewNothing(), nil
		},
	}
}
