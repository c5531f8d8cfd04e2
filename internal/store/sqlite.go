package store

import (
	"context"
	"database/sql"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // driver: sqlite3
	"github.com/oklog/ulid/v2"
)

// Sqlite хранит все коллекции в одной базе.
//
// Таблица:
//
//	documents(namespace, id, data)  PRIMARY KEY (namespace, id)
//
// data — JSON документа. Фильтрация и проекция — в Go, тем же матчером,
// что и у memory-бэкенда: диалект запросов не переводится в SQL.
type Sqlite struct {
	mu sync.RWMutex
	db *sql.DB

	idMu    sync.Mutex
	entropy io.Reader
}

func NewSqlite(dbPath string) (*Sqlite, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		namespace TEXT NOT NULL,
		id TEXT NOT NULL,
		data TEXT NOT NULL,
		PRIMARY KEY (namespace, id)
	)`); err != nil {
		db.Close()
		return nil, err
	}

	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Sqlite{db: db, entropy: ulid.Monotonic(src, 0)}, nil
}

func (b *Sqlite) Namespace(name string) Store {
	return &sqliteNamespace{backend: b, name: name}
}

func (b *Sqlite) Close() error { return b.db.Close() }

func (b *Sqlite) newID() string {
	b.idMu.Lock()
	defer b.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), b.entropy).String()
}

type sqliteNamespace struct {
	backend *Sqlite

	nameMu sync.RWMutex
	name   string
}

func (s *sqliteNamespace) namespace() string {
	s.nameMu.RLock()
	defer s.nameMu.RUnlock()
	return s.name
}

func (s *sqliteNamespace) CreateUniqueIdentifier() string {
	return s.backend.newID()
}

// load вычитывает все документы коллекции в порядке вставки (rowid)
func (s *sqliteNamespace) load(ctx context.Context) ([]Document, error) {
	rows, err := s.backend.db.QueryContext(ctx,
		"SELECT data FROM documents WHERE namespace = ? ORDER BY rowid", s.namespace())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		doc := decodeDocument([]byte(raw))
		if doc == nil {
			// битая строка — пропускаем, не валим запрос
			continue
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *sqliteNamespace) Find(ctx context.Context, q Query) ([]Document, error) {
	filter, opts := splitQuery(q)

	s.backend.mu.RLock()
	all, err := s.load(ctx)
	s.backend.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	var found []Document
	for _, doc := range all {
		if matches(doc, filter) {
			found = append(found, doc)
		}
	}
	return applyOpts(found, opts), nil
}

func (s *sqliteNamespace) First(ctx context.Context, q Query) (Document, error) {
	docs, err := s.Find(ctx, q)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

func (s *sqliteNamespace) Count(ctx context.Context, q Query) (int, error) {
	filter, _ := splitQuery(q)

	s.backend.mu.RLock()
	all, err := s.load(ctx)
	s.backend.mu.RUnlock()
	if err != nil {
		return 0, err
	}
	n := 0
	for _, doc := range all {
		if matches(doc, filter) {
			n++
		}
	}
	return n, nil
}

func (s *sqliteNamespace) Insert(ctx context.Context, doc Document) (Document, error) {
	doc = deepCopy(doc)
	id, _ := doc["id"].(string)
	if id == "" {
		id = s.backend.newID()
		doc["id"] = id
	}
	raw, err := encodeDocument(doc)
	if err != nil {
		return nil, err
	}

	s.backend.mu.Lock()
	_, err = s.backend.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO documents (namespace, id, data) VALUES (?, ?, ?)",
		s.namespace(), id, string(raw))
	s.backend.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *sqliteNamespace) Update(ctx context.Context, match Query, partial Document) error {
	filter, _ := splitQuery(match)

	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()

	all, err := s.load(ctx)
	if err != nil {
		return err
	}
	for _, doc := range all {
		if !matches(doc, filter) {
			continue
		}
		for k, v := range partial {
			if k == "id" {
				continue
			}
			doc[k] = v
		}
		raw, err := encodeDocument(doc)
		if err != nil {
			return err
		}
		id, _ := doc["id"].(string)
		if _, err := s.backend.db.ExecContext(ctx,
			"UPDATE documents SET data = ? WHERE namespace = ? AND id = ?",
			string(raw), s.namespace(), id); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteNamespace) Remove(ctx context.Context, q Query) error {
	filter, _ := splitQuery(q)

	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()

	if len(filter) == 0 {
		_, err := s.backend.db.ExecContext(ctx,
			"DELETE FROM documents WHERE namespace = ?", s.namespace())
		return err
	}

	all, err := s.load(ctx)
	if err != nil {
		return err
	}
	for _, doc := range all {
		if !matches(doc, filter) {
			continue
		}
		id, _ := doc["id"].(string)
		if _, err := s.backend.db.ExecContext(ctx,
			"DELETE FROM documents WHERE namespace = ? AND id = ?", s.namespace(), id); err != nil {
			return err
		}
	}
	return nil
}

func (s *sqliteNamespace) Rename(ctx context.Context, newNamespace string) error {
	s.backend.mu.Lock()
	_, err := s.backend.db.ExecContext(ctx,
		"UPDATE documents SET namespace = ? WHERE namespace = ?", newNamespace, s.namespace())
	s.backend.mu.Unlock()
	if err != nil {
		return err
	}

	s.nameMu.Lock()
	s.name = newNamespace
	s.nameMu.Unlock()
	return nil
}
