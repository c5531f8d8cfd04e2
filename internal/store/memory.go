package store

import (
	"context"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Memory держит все коллекции в памяти. Данные живут до рестарта.
type Memory struct {
	mu   sync.RWMutex
	data map[string]*namespaceData

	idMu    sync.Mutex
	entropy io.Reader
}

// namespaceData — документы одной коллекции плюс порядок вставки,
// чтобы Find возвращал детерминированную последовательность
type namespaceData struct {
	docs  map[string]Document
	order []string
}

func NewMemory() *Memory {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Memory{
		data:    make(map[string]*namespaceData),
		entropy: ulid.Monotonic(src, 0),
	}
}

func (m *Memory) Namespace(name string) Store {
	return &memoryNamespace{backend: m, name: name}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) newID() string {
	m.idMu.Lock()
	defer m.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), m.entropy).String()
}

func (m *Memory) ns(name string) *namespaceData {
	d := m.data[name]
	if d == nil {
		d = &namespaceData{docs: make(map[string]Document)}
		m.data[name] = d
	}
	return d
}

type memoryNamespace struct {
	backend *Memory

	nameMu sync.RWMutex
	name   string
}

func (s *memoryNamespace) namespace() string {
	s.nameMu.RLock()
	defer s.nameMu.RUnlock()
	return s.name
}

func (s *memoryNamespace) CreateUniqueIdentifier() string {
	return s.backend.newID()
}

func (s *memoryNamespace) Find(_ context.Context, q Query) ([]Document, error) {
	filter, opts := splitQuery(q)

	s.backend.mu.RLock()
	d := s.backend.data[s.namespace()]
	var found []Document
	if d != nil {
		for _, id := range d.order {
			doc := d.docs[id]
			if doc == nil || !matches(doc, filter) {
				continue
			}
			found = append(found, deepCopy(doc))
		}
	}
	s.backend.mu.RUnlock()

	return applyOpts(found, opts), nil
}

func (s *memoryNamespace) First(ctx context.Context, q Query) (Document, error) {
	docs, err := s.Find(ctx, q)
	if err != nil || len(docs) == 0 {
		return nil, err
	}
	return docs[0], nil
}

func (s *memoryNamespace) Count(_ context.Context, q Query) (int, error) {
	filter, _ := splitQuery(q)

	s.backend.mu.RLock()
	defer s.backend.mu.RUnlock()
	d := s.backend.data[s.namespace()]
	if d == nil {
		return 0, nil
	}
	n := 0
	for _, doc := range d.docs {
		if matches(doc, filter) {
			n++
		}
	}
	return n, nil
}

func (s *memoryNamespace) Insert(_ context.Context, doc Document) (Document, error) {
	doc = deepCopy(doc)
	id, _ := doc["id"].(string)
	if id == "" {
		id = s.backend.newID()
		doc["id"] = id
	}

	s.backend.mu.Lock()
	d := s.backend.ns(s.namespace())
	if _, exists := d.docs[id]; !exists {
		d.order = append(d.order, id)
	}
	d.docs[id] = doc
	s.backend.mu.Unlock()

	return deepCopy(doc), nil
}

func (s *memoryNamespace) Update(_ context.Context, match Query, partial Document) error {
	filter, _ := splitQuery(match)
	partial = deepCopy(partial)

	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	d := s.backend.data[s.namespace()]
	if d == nil {
		return nil
	}
	for _, id := range d.order {
		doc := d.docs[id]
		if doc == nil || !matches(doc, filter) {
			continue
		}
		for k, v := range partial {
			if k == "id" {
				continue
			}
			doc[k] = v
		}
	}
	return nil
}

func (s *memoryNamespace) Remove(_ context.Context, q Query) error {
	filter, _ := splitQuery(q)

	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	d := s.backend.data[s.namespace()]
	if d == nil {
		return nil
	}
	keep := d.order[:0]
	for _, id := range d.order {
		doc := d.docs[id]
		if doc != nil && matches(doc, filter) {
			delete(d.docs, id)
			continue
		}
		keep = append(keep, id)
	}
	d.order = keep
	return nil
}

func (s *memoryNamespace) Rename(_ context.Context, newNamespace string) error {
	s.backend.mu.Lock()
	old := s.namespace()
	if d, ok := s.backend.data[old]; ok {
		delete(s.backend.data, old)
		s.backend.data[newNamespace] = d
	}
	s.backend.mu.Unlock()

	s.nameMu.Lock()
	s.name = newNamespace
	s.nameMu.Unlock()
	return nil
}
