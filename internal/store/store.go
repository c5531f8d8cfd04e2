// Package store определяет контракт хранилища документов и его реализации.
package store

import "context"

// Document — один сохранённый документ (id лежит внутри под ключом "id").
type Document = map[string]any

// Query — запрос-отображение: обычные ключи сравниваются по равенству,
// ключи с префиксом "$" интерпретирует само хранилище ($fields, $sort,
// $limit, $skip). Незнакомые $-ключи игнорируются.
type Query = map[string]any

// Store — хранилище одной коллекции (namespace закреплён при создании,
// Rename его переносит).
type Store interface {
	Find(ctx context.Context, q Query) ([]Document, error)
	// First возвращает первый подходящий документ либо nil, nil.
	First(ctx context.Context, q Query) (Document, error)
	Count(ctx context.Context, q Query) (int, error)
	// Insert сохраняет документ. Если id пустой — выдаёт новый.
	Insert(ctx context.Context, doc Document) (Document, error)
	// Update вливает partial во все документы, подходящие под match.
	Update(ctx context.Context, match Query, partial Document) error
	Remove(ctx context.Context, q Query) error
	// Rename переносит все документы коллекции в новый namespace.
	Rename(ctx context.Context, newNamespace string) error
	// CreateUniqueIdentifier выдаёт новый id (синхронно, без коллизий).
	CreateUniqueIdentifier() string
}

// Backend — общее подключение, раздающее Store по имени коллекции.
type Backend interface {
	Namespace(name string) Store
	Close() error
}
