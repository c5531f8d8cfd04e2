package collection

import (
	"context"
	"strings"

	"github.com/atodared/deployd/internal/store"
)

// Session — срез сессии, который потребляет ядро: признак root
// и канал оповещений. Остальное (логин, роли) живёт снаружи.
type Session struct {
	IsRoot    bool
	EmitToAll func(event string)
}

// Context — объект запроса, с которым работает оркестратор.
// Транспорт собирает его из HTTP-запроса; тесты — руками.
type Context struct {
	Ctx    context.Context
	Method string
	// URL — путь после базового пути коллекции ("/", "/<id>", "/<id>/<sub>")
	URL     string
	Query   store.Query
	Body    any // map[string]any, []any или nil
	Session *Session
	// Dpd — клиентский хэндл, прокидывается в скрипты как есть
	Dpd any
	// VerifyPermissions — внешний верификатор прав; nil означает "всё можно"
	VerifyPermissions func(required []Permission) error

	prevented bool
	allowed   bool
}

func (c *Context) context() context.Context {
	if c.Ctx == nil {
		return context.Background()
	}
	return c.Ctx
}

var emptySession = &Session{}

func (c *Context) session() *Session {
	if c.Session == nil {
		return emptySession
	}
	return c.Session
}

func (c *Context) bodyMap() store.Document {
	m, _ := c.Body.(map[string]any)
	return m
}

func (c *Context) bodySlice() []any {
	s, _ := c.Body.([]any)
	return s
}

func (c *Context) urlParts() []string {
	trimmed := strings.Trim(c.URL, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func (c *Context) verify(required []Permission) error {
	if c.VerifyPermissions == nil {
		return nil
	}
	return c.VerifyPermissions(required)
}
