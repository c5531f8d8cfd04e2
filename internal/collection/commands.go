package collection

import (
	"reflect"
	"strings"

	"github.com/golang/glog"

	"github.com/atodared/deployd/internal/store"
)

// BuildCommands извлекает $-команды из сырого тела — до Sanitize,
// который такие поля выбросит (их форма не совпадает с объявленным
// типом). Само тело не трогаем.
func BuildCommands(item store.Document) map[string]any {
	commands := map[string]any{}
	for key, val := range item {
		m, ok := val.(map[string]any)
		if !ok {
			continue
		}
		for sub := range m {
			if strings.HasPrefix(sub, "$") {
				commands[key] = m
				break
			}
		}
	}
	return commands
}

// ExecCommands применяет операторы мутации к объекту. Любой сбой при
// применении глотается (debug-лог); частично изменённый объект остаётся.
func ExecCommands(verb string, obj store.Document, commands map[string]any) {
	if verb != "update" || len(commands) == 0 {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			glog.V(2).Infof("exec commands: %v", r)
		}
	}()

	for key, raw := range commands {
		cmd, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		for op, val := range cmd {
			switch op {
			case "$inc":
				inc, ok := numberValue(val)
				if !ok {
					continue
				}
				cur, _ := numberValue(obj[key])
				obj[key] = cur + inc
			case "$push":
				if arr, ok := obj[key].([]any); ok {
					obj[key] = append(arr, val)
				} else {
					obj[key] = []any{val}
				}
			case "$pushAll":
				arr, isArr := obj[key].([]any)
				if !isArr {
					obj[key] = val
					continue
				}
				vals, ok := val.([]any)
				if !ok {
					continue
				}
				obj[key] = append(arr, vals...)
			case "$pull":
				arr, ok := obj[key].([]any)
				if !ok {
					continue
				}
				obj[key] = pull(arr, []any{val})
			case "$pullAll":
				arr, ok := obj[key].([]any)
				if !ok {
					continue
				}
				vals, ok := val.([]any)
				if !ok {
					continue
				}
				obj[key] = pull(arr, vals)
			}
		}
	}
}

// pull убирает из arr все элементы, равные любому из unwanted
func pull(arr []any, unwanted []any) []any {
	out := make([]any, 0, len(arr))
	for _, el := range arr {
		drop := false
		for _, u := range unwanted {
			if commandValuesEqual(el, u) {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, el)
		}
	}
	return out
}

func commandValuesEqual(a, b any) bool {
	if fa, ok := numberValue(a); ok {
		if fb, ok2 := numberValue(b); ok2 {
			return fa == fb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}
