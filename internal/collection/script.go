package collection

import (
	"fmt"
	"sync"
)

// Script — скомпилированный событийный скрипт. Сам рантайм песочницы
// внешний; ядру важен только контракт вызова: ненулевая ошибка —
// отказ движка, прерывающий запрос. Ошибки-значения скрипт кладёт
// в Domain через error().
type Script interface {
	Run(ctx *Context, d *Domain) error
}

// ScriptFunc адаптирует обычную функцию под Script
type ScriptFunc func(ctx *Context, d *Domain) error

func (f ScriptFunc) Run(ctx *Context, d *Domain) error { return f(ctx, d) }

// Registry — именованные скрипты, на которые ссылаются объявления
// коллекций (on <event>: <имя>).
type Registry struct {
	mu     sync.RWMutex
	byName map[string]Script
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Script)}
}

func (r *Registry) Register(name string, s Script) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[name] = s
}

// Get возвращает скрипт по имени; ошибка — если такого не регистрировали
func (r *Registry) Get(name string) (Script, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("script %q is not registered", name)
	}
	return s, nil
}
