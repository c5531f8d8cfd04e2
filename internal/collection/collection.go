package collection

import (
	"context"
	"net/http"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/atodared/deployd/internal/dsl"
	"github.com/atodared/deployd/internal/store"
)

// Имена стандартных событий жизненного цикла. Любое другое имя в
// конфигурации монтирует кастомный скрипт на /<collection>/<имя>.
const (
	EventGet      = "get"
	EventValidate = "validate"
	EventPost     = "post"
	EventPut      = "put"
	EventDelete   = "delete"
	EventQuery    = "query"
)

var standardEvents = map[string]bool{
	EventGet:      true,
	EventValidate: true,
	EventPost:     true,
	EventPut:      true,
	EventDelete:   true,
	EventQuery:    true,
}

// Config — конфигурация коллекции: имя (оно же namespace хранилища),
// объявленные свойства и скомпилированные скрипты по событиям.
type Config struct {
	Name       string
	Properties []dsl.Property
	Events     map[string]Script
}

// Collection — обработчик запросов одной коллекции. Схема и скрипты
// неизменяемы после создания, читать можно конкурентно.
type Collection struct {
	name       string
	properties map[string]dsl.Property
	events     map[string]Script
	store      store.Store
}

func New(cfg Config, st store.Store) *Collection {
	props := make(map[string]dsl.Property, len(cfg.Properties))
	for _, p := range cfg.Properties {
		props[p.Name] = p
	}
	events := make(map[string]Script, len(cfg.Events))
	for name, s := range cfg.Events {
		if s != nil {
			events[name] = s
		}
	}
	return &Collection{
		name:       cfg.Name,
		properties: props,
		events:     events,
		store:      st,
	}
}

func (c *Collection) Name() string { return c.name }

// Handle прогоняет запрос через конвейер коллекции и возвращает
// результат для транспорта.
func (c *Collection) Handle(ctx *Context) (any, error) {
	if ctx.Query == nil {
		ctx.Query = store.Query{}
	}
	parts := ctx.urlParts()

	// id: query.id ∨ второй сегмент URL ∨ body.id
	if idString(ctx.Query["id"]) == "" {
		if len(parts) > 0 && parts[0] != "" {
			ctx.Query["id"] = parts[0]
		} else if body := ctx.bodyMap(); body != nil {
			if id := idString(body["id"]); id != "" {
				ctx.Query["id"] = id
			}
		}
	}
	id := idString(ctx.Query["id"])

	// виртуальные GET-маршруты
	if ctx.Method == http.MethodGet {
		switch id {
		case "count":
			return c.count(ctx)
		case "index-of":
			return c.indexOf(ctx, parts)
		}
	}

	// кастомный скрипт, смонтированный вложенным путём, перехватывает
	// стандартный конвейер
	if id != "" && !standardEvents[id] && c.events[id] != nil {
		if c.shouldRun(ctx, id) {
			return c.runCustom(ctx, c.events[id])
		}
	}

	switch ctx.Method {
	case http.MethodGet:
		return c.find(ctx)
	case http.MethodPost, http.MethodPut:
		return c.save(ctx)
	case http.MethodDelete:
		return c.remove(ctx)
	}
	return nil, &StatusError{Message: "method not allowed", StatusCode: 405}
}

// --- виртуальные маршруты ---

func (c *Collection) count(ctx *Context) (any, error) {
	if !ctx.session().IsRoot {
		return nil, forbidden("Must be root to count")
	}
	q := copyQueryWithoutID(ctx.Query)
	n, err := c.store.Count(ctx.context(), c.SanitizeQuery(q))
	if err != nil {
		return nil, err
	}
	return map[string]any{"count": n}, nil
}

func (c *Collection) indexOf(ctx *Context, parts []string) (any, error) {
	if !ctx.session().IsRoot {
		return nil, forbidden("Must be root to get index-of")
	}
	if len(parts) < 2 || parts[1] == "" {
		return nil, badRequest("index-of requires an id")
	}
	target := parts[1]

	sq := c.SanitizeQuery(copyQueryWithoutID(ctx.Query))
	sq["$fields"] = map[string]any{"id": 1}
	docs, err := c.store.Find(ctx.context(), sq)
	if err != nil {
		return nil, err
	}
	index := -1
	for i, doc := range docs {
		if idString(doc["id"]) == target {
			index = i
			break
		}
	}
	return map[string]any{"index": index}, nil
}

// --- GET ---

func (c *Collection) find(ctx *Context) (any, error) {
	required := RequiredPermissions(ctx)
	sq := c.SanitizeQuery(ctx.Query)
	listQuery := idString(ctx.Query["id"]) == ""

	// Query — хук формирования запроса: только для списков, до проверки прав
	if listQuery && c.shouldRun(ctx, EventQuery) {
		d := newDomain(ctx, sq, nil)
		if err := c.events[EventQuery].Run(ctx, d); err != nil {
			return nil, err
		}
		if d.HasErrors() {
			return nil, &DomainError{Fields: d.errors}
		}
	}
	if err := ctx.verify(required); err != nil {
		return nil, err
	}

	docs, err := c.store.Find(ctx.context(), sq)
	if err != nil {
		return nil, err
	}

	// буквальный строковый id — одиночный результат
	if id, ok := sq["id"].(string); ok && id != "" {
		if len(docs) == 0 {
			return nil, notFound()
		}
		doc := docs[0]
		if c.shouldRun(ctx, EventGet) {
			d := newDomain(ctx, doc, nil)
			if err := c.events[EventGet].Run(ctx, d); err != nil {
				return nil, err
			}
			if d.HasErrors() {
				return nil, &DomainError{Fields: d.errors}
			}
			doc = d.Data
		}
		return doc, nil
	}

	if c.shouldRun(ctx, EventGet) {
		docs, err = c.fanOutGet(ctx, docs)
		if err != nil {
			return nil, err
		}
	}
	if docs == nil {
		docs = []store.Document{}
	}
	return docs, nil
}

// fanOutGet запускает get-скрипт на каждый документ конкурентно.
// Ошибка движка валит весь запрос; ошибки-значения локальны и просто
// выфильтровывают документ из списка.
func (c *Collection) fanOutGet(ctx *Context, docs []store.Document) ([]store.Document, error) {
	script := c.events[EventGet]
	failed := make([]bool, len(docs))

	g, _ := errgroup.WithContext(ctx.context())
	for i := range docs {
		g.Go(func() error {
			d := newDomain(ctx, docs[i], nil)
			if err := script.Run(ctx, d); err != nil {
				return err
			}
			if d.HasErrors() {
				failed[i] = true
				return nil
			}
			docs[i] = d.Data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]store.Document, 0, len(docs))
	for i, doc := range docs {
		if !failed[i] {
			out = append(out, doc)
		}
	}
	return out, nil
}

// --- POST / PUT ---

func (c *Collection) save(ctx *Context) (any, error) {
	// массив в теле POST — множественное создание
	if items := ctx.bodySlice(); items != nil && ctx.Method == http.MethodPost {
		return c.postAll(ctx, items)
	}

	body := ctx.bodyMap()
	if body == nil {
		return nil, badRequest("request body required")
	}

	// команды снимаем с сырого тела, до санации
	commands := BuildCommands(body)
	item := c.Sanitize(body)

	if ctx.Method == http.MethodPut && idString(ctx.Query["id"]) == "" {
		return c.saveAll(ctx, item, commands)
	}
	if idString(ctx.Query["id"]) != "" {
		return c.put(ctx, item, commands)
	}
	return c.post(ctx, item)
}

func (c *Collection) post(ctx *Context, item store.Document) (store.Document, error) {
	if errs := c.Validate(item, true); errs != nil {
		return nil, &SchemaError{Fields: errs}
	}
	item["id"] = c.store.CreateUniqueIdentifier()

	if err := c.runEvent(ctx, EventValidate, item, nil); err != nil {
		return nil, err
	}
	if err := c.runEvent(ctx, EventPost, item, nil); err != nil {
		return nil, err
	}
	if err := ctx.verify(RequiredPermissions(ctx)); err != nil {
		return nil, err
	}

	doc, err := c.store.Insert(ctx.context(), item)
	if err != nil {
		return nil, err
	}
	c.notifyChanged(ctx)
	return doc, nil
}

func (c *Collection) postAll(ctx *Context, items []any) (any, error) {
	out := make([]store.Document, 0, len(items))
	for _, raw := range items {
		body, ok := raw.(map[string]any)
		if !ok {
			return nil, badRequest("bulk create expects an array of objects")
		}
		doc, err := c.post(ctx, c.Sanitize(body))
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

func (c *Collection) put(ctx *Context, item store.Document, commands map[string]any) (any, error) {
	sq := c.SanitizeQuery(ctx.Query)

	found, err := c.store.First(ctx.context(), sq)
	if err != nil {
		return nil, err
	}
	if found == nil {
		if len(sq) == 1 {
			return nil, &StatusError{Message: "No object exists with that id", StatusCode: 404}
		}
		return nil, &StatusError{Message: "No object exists that matches that query", StatusCode: 404}
	}

	merged, err := c.mergeAndValidate(ctx, found, item, commands)
	if err != nil {
		return nil, err
	}
	if err := ctx.verify(RequiredPermissions(ctx)); err != nil {
		return nil, err
	}
	if err := c.commit(ctx, merged); err != nil {
		return nil, err
	}
	c.notifyChanged(ctx)
	return merged, nil
}

// mergeAndValidate — общий шаг put и saveAll: слияние поверх найденного
// документа, применение команд, схемная валидация и события Validate/Put.
func (c *Collection) mergeAndValidate(ctx *Context, found, item store.Document, commands map[string]any) (store.Document, error) {
	previous := deepCopyDoc(found)
	merged := found
	for k, v := range item {
		merged[k] = v
	}

	ExecCommands("update", merged, commands)

	if errs := c.Validate(merged, false); errs != nil {
		return nil, &SchemaError{Fields: errs}
	}
	if err := c.runEvent(ctx, EventValidate, merged, previous); err != nil {
		return nil, err
	}
	if err := c.runEvent(ctx, EventPut, merged, previous); err != nil {
		return nil, err
	}
	return merged, nil
}

// commit пишет документ в хранилище: id в match, всё остальное — в partial
func (c *Collection) commit(ctx *Context, merged store.Document) error {
	id := idString(merged["id"])
	partial := store.Document{}
	for k, v := range merged {
		if k != "id" {
			partial[k] = v
		}
	}
	if err := c.store.Update(ctx.context(), store.Query{"id": id}, partial); err != nil {
		return err
	}
	merged["id"] = id
	return nil
}

func (c *Collection) saveAll(ctx *Context, item store.Document, commands map[string]any) (any, error) {
	required := RequiredPermissions(ctx)
	sq := c.SanitizeQuery(ctx.Query)

	docs, err := c.store.Find(ctx.context(), sq)
	if err != nil {
		return nil, err
	}

	// готовим всю пачку; первый сбой обрывает её целиком
	batch := make([]store.Document, 0, len(docs))
	for _, found := range docs {
		merged, err := c.mergeAndValidate(ctx, found, item, commands)
		if err != nil {
			return nil, err
		}
		if err := ctx.verify(required); err != nil {
			return nil, err
		}
		batch = append(batch, merged)
	}

	// фиксация: дожидаемся всех записей и только потом отвечаем
	ids := make([]string, len(batch))
	g, gctx := errgroup.WithContext(ctx.context())
	for i, obj := range batch {
		g.Go(func() error {
			id := idString(obj["id"])
			partial := store.Document{}
			for k, v := range obj {
				if k != "id" {
					partial[k] = v
				}
			}
			if err := c.store.Update(gctx, store.Query{"id": id}, partial); err != nil {
				return err
			}
			ids[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	c.notifyChanged(ctx)
	return ids, nil
}

// --- DELETE ---

func (c *Collection) remove(ctx *Context) (any, error) {
	sq := c.SanitizeQuery(ctx.Query)

	docs, err := c.store.Find(ctx.context(), sq)
	if err != nil {
		return nil, err
	}
	if c.shouldRun(ctx, EventDelete) {
		for _, doc := range docs {
			if err := c.runEvent(ctx, EventDelete, doc, nil); err != nil {
				return nil, err
			}
		}
	}
	if err := ctx.verify(RequiredPermissions(ctx)); err != nil {
		return nil, err
	}
	if err := c.store.Remove(ctx.context(), sq); err != nil {
		return nil, err
	}
	c.notifyChanged(ctx)
	return nil, nil
}

// --- события ---

// shouldRun: событие настроено и не пропущено. Пропуск через
// $skipEvents (в теле или запросе) доступен только root-сессии.
func (c *Collection) shouldRun(ctx *Context, event string) bool {
	if c.events[event] == nil {
		return false
	}
	skip := truthy(ctx.Query["$skipEvents"])
	if body := ctx.bodyMap(); body != nil && truthy(body["$skipEvents"]) {
		skip = true
	}
	if skip && ctx.session().IsRoot {
		return false
	}
	return true
}

func (c *Collection) runEvent(ctx *Context, event string, data, previous store.Document) error {
	if !c.shouldRun(ctx, event) {
		return nil
	}
	d := newDomain(ctx, data, previous)
	if err := c.events[event].Run(ctx, d); err != nil {
		glog.V(2).Infof("collection %s: %s script failed: %v", c.name, event, err)
		return err
	}
	if d.HasErrors() {
		return &DomainError{Fields: d.errors}
	}
	return nil
}

func (c *Collection) runCustom(ctx *Context, script Script) (any, error) {
	data := ctx.bodyMap()
	d := newDomain(ctx, data, nil)
	if err := script.Run(ctx, d); err != nil {
		return nil, err
	}
	if ctx.prevented {
		return nil, forbidden("Forbidden")
	}
	if d.HasErrors() {
		return nil, &DomainError{Fields: d.errors}
	}
	return d.Data, nil
}

// --- уведомления и конфигурация ---

func (c *Collection) notifyChanged(ctx *Context) {
	s := ctx.session()
	if s.EmitToAll != nil {
		s.EmitToAll(c.name + ":changed")
	}
}

// ChangeConfig реагирует на смену конфигурации на уровне хранилища:
// новое имя — переносим namespace, иначе ничего не делаем. Новый
// экземпляр коллекции собирает вызывающий.
func (c *Collection) ChangeConfig(ctx context.Context, cfg Config) error {
	if cfg.Name != "" && cfg.Name != c.name {
		glog.Infof("collection %s: renaming to %s", c.name, cfg.Name)
		return c.store.Rename(ctx, cfg.Name)
	}
	return nil
}

// Destroy сносит все документы коллекции (конфигурация удалена)
func (c *Collection) Destroy(ctx context.Context) error {
	glog.Infof("collection %s: dropping", c.name)
	return c.store.Remove(ctx, store.Query{})
}

// Seed кладёт документы напрямую: санация и id без событий и прав
func (c *Collection) Seed(ctx context.Context, docs []store.Document) error {
	for _, body := range docs {
		item := c.Sanitize(body)
		item["id"] = c.store.CreateUniqueIdentifier()
		if _, err := c.store.Insert(ctx, item); err != nil {
			return err
		}
	}
	return nil
}
