package collection

import (
	"encoding/json"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/atodared/deployd/internal/store"
)

var (
	dateRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`) // YYYY-MM-DD
	numericRe  = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
	reservedRe = regexp.MustCompile(`^\$`)
)

// Validate проверяет тело против объявленных свойств. Возвращает
// отображение свойство -> причина, либо nil, если ошибок нет.
//
// Побочные эффекты (как задумано): числовые строки приводятся к числу
// на месте; отсутствующий boolean получает false.
func (c *Collection) Validate(body store.Document, create bool) map[string]string {
	errs := map[string]string{}

	for name, prop := range c.properties {
		val, present := body[name]
		if present && prop.Type == "number" {
			// попытка численного приведения до проверки типа
			if s, ok := val.(string); ok && numericRe.MatchString(strings.TrimSpace(s)) {
				if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
					val = f
					body[name] = f
				}
			}
		}

		if exists(val) {
			if !typeMatches(prop.Type, val) {
				errs[name] = "must be a " + prop.Type
			}
			continue
		}

		if prop.Required && create {
			errs[name] = "is required"
			continue
		}
		if prop.Type == "boolean" {
			// отсутствующий boolean дефолтится в false, прямо в теле
			body[name] = false
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// Sanitize собирает новое тело только из объявленных свойств.
// Значение остаётся, если его тип совпал с объявленным; для array и
// number есть узкие приведения, всё остальное молча отбрасывается.
func (c *Collection) Sanitize(body store.Document) store.Document {
	clean := store.Document{}
	for name, prop := range c.properties {
		val, ok := body[name]
		if !ok {
			continue
		}
		if v, kept := sanitizeValue(prop.Type, val); kept {
			clean[name] = v
		}
	}
	return clean
}

// SanitizeQuery — как Sanitize, но для запроса: $-ключи проходят как есть
// (кроме $limitRecursion и $skipEvents), id проходит как есть, boolean
// принимает строку "true".
func (c *Collection) SanitizeQuery(query store.Query) store.Query {
	clean := store.Query{}
	for key, val := range query {
		if val == nil {
			continue
		}
		if key == "$limitRecursion" || key == "$skipEvents" {
			continue
		}
		if reservedRe.MatchString(key) || key == "id" {
			clean[key] = val
			continue
		}
		prop, declared := c.properties[key]
		if !declared {
			continue
		}
		if prop.Type == "boolean" {
			if s, ok := val.(string); ok {
				clean[key] = s == "true"
				continue
			}
		}
		if v, kept := sanitizeValue(prop.Type, val); kept {
			clean[key] = v
		}
	}
	return clean
}

func sanitizeValue(declared string, val any) (any, bool) {
	if typeMatches(declared, val) {
		return val, true
	}
	switch declared {
	case "array":
		// любая упорядоченная последовательность становится []any
		rv := reflect.ValueOf(val)
		if rv.Kind() == reflect.Slice {
			out := make([]any, rv.Len())
			for i := 0; i < rv.Len(); i++ {
				out[i] = rv.Index(i).Interface()
			}
			return out, true
		}
	case "number":
		if s, ok := val.(string); ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f, true
			}
		}
	}
	return nil, false
}

// exists: null/отсутствие/пустая строка считаются "нет значения"
func exists(val any) bool {
	if val == nil {
		return false
	}
	if s, ok := val.(string); ok && s == "" {
		return false
	}
	return true
}

func typeMatches(declared string, val any) bool {
	switch declared {
	case "string":
		_, ok := val.(string)
		return ok
	case "number":
		_, ok := numberValue(val)
		return ok
	case "boolean":
		_, ok := val.(bool)
		return ok
	case "array":
		_, ok := val.([]any)
		return ok
	case "object":
		_, ok := val.(map[string]any)
		return ok
	case "date":
		switch t := val.(type) {
		case time.Time:
			return true
		case string:
			if dateRe.MatchString(t) {
				return true
			}
			_, err := time.Parse(time.RFC3339, t)
			return err == nil
		}
	}
	return false
}

func numberValue(val any) (float64, bool) {
	switch t := val.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case jsoniter.Number:
		f, err := t.Float64()
		return f, err == nil
	}
	return 0, false
}
