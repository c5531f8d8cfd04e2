package collection

import (
	"reflect"

	"github.com/atodared/deployd/internal/store"
)

// Domain — песочница одного вызова скрипта: текущий документ, снимок
// до изменения и набор способностей (error/protect/hide/changed/allow/
// prevent). Создаётся на каждый документ на каждое событие и после
// возврата скрипта выбрасывается.
type Domain struct {
	// Data — текущий документ; то, что останется здесь после скрипта,
	// оркестратор сохранит или отдаст наружу
	Data store.Document
	// Previous — документ до слияния изменений; пустой при создании
	Previous store.Document
	// Dpd — клиентский хэндл из контекста, как есть
	Dpd any

	ctx       *Context
	errors    map[string]string
	hasErrors bool
}

func newDomain(ctx *Context, data, previous store.Document) *Domain {
	if data == nil {
		data = store.Document{}
	}
	if previous == nil {
		previous = store.Document{}
	}
	return &Domain{
		Data:     data,
		Previous: previous,
		Dpd:      ctx.Dpd,
		ctx:      ctx,
		errors:   map[string]string{},
	}
}

// Error записывает ошибку-значение; запрос завершится как при
// схемной валидации
func (d *Domain) Error(key, msg string) {
	d.errors[key] = msg
	d.hasErrors = true
}

func (d *Domain) ErrorIf(cond bool, key, msg string) {
	if cond {
		d.Error(key, msg)
	}
}

func (d *Domain) ErrorUnless(cond bool, key, msg string) {
	d.ErrorIf(!cond, key, msg)
}

func (d *Domain) HasErrors() bool { return d.hasErrors }

// Errors — собранные ошибки (живая карта, разделяется с вызывающим)
func (d *Domain) Errors() map[string]string { return d.errors }

// Protect убирает свойство из исходящего документа
func (d *Domain) Protect(prop string) {
	delete(d.Data, prop)
}

// Hide — то же, что Protect: свойство не уйдёт наружу
func (d *Domain) Hide(prop string) {
	delete(d.Data, prop)
}

// Changed — отличается ли свойство от снимка до изменения.
// При создании (пустой Previous) — true, если свойство есть.
func (d *Domain) Changed(prop string) bool {
	cur, curOK := d.Data[prop]
	prev, prevOK := d.Previous[prop]
	if len(d.Previous) == 0 {
		return curOK
	}
	if curOK != prevOK {
		return true
	}
	if fa, ok := numberValue(cur); ok {
		if fb, ok2 := numberValue(prev); ok2 {
			return fa != fb
		}
		return true
	}
	return !reflect.DeepEqual(cur, prev)
}

// Allow / Prevent — пропуск в контекст запроса (для кастомных скриптов)
func (d *Domain) Allow()   { d.ctx.allowed = true }
func (d *Domain) Prevent() { d.ctx.prevented = true }
