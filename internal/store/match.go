package store

import (
	"reflect"
	"sort"
	"strings"
)

// queryOpts — разобранные $-опции запроса
type queryOpts struct {
	fields map[string]bool // имя -> включить/исключить
	keep   bool            // true: fields перечисляет что оставить
	sort   []sortKey
	limit  int
	skip   int
	hasLim bool
}

type sortKey struct {
	field string
	desc  bool
}

// splitQuery делит запрос на фильтр (равенства) и $-опции.
// Незнакомые $-ключи просто отбрасываются — диалект толерантный.
func splitQuery(q Query) (Query, queryOpts) {
	filter := make(Query, len(q))
	opts := queryOpts{}
	for k, v := range q {
		if !strings.HasPrefix(k, "$") {
			filter[k] = v
			continue
		}
		switch k {
		case "$fields":
			m, ok := v.(map[string]any)
			if !ok {
				continue
			}
			opts.fields = make(map[string]bool, len(m))
			for name, flag := range m {
				on := false
				if f, okf := toFloat(flag); okf && f != 0 {
					on = true
				}
				opts.fields[name] = on
				if on {
					opts.keep = true
				}
			}
		case "$sort":
			m, ok := v.(map[string]any)
			if !ok {
				continue
			}
			// стабильный порядок ключей сортировки
			names := make([]string, 0, len(m))
			for name := range m {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				f, _ := toFloat(m[name])
				opts.sort = append(opts.sort, sortKey{field: name, desc: f < 0})
			}
		case "$limit":
			if f, ok := toFloat(v); ok && f >= 0 {
				opts.limit = int(f)
				opts.hasLim = true
			}
		case "$skip":
			if f, ok := toFloat(v); ok && f > 0 {
				opts.skip = int(f)
			}
		}
	}
	return filter, opts
}

// matches проверяет документ на равенство по всем ключам фильтра
func matches(doc Document, filter Query) bool {
	for k, want := range filter {
		got, ok := doc[k]
		if !ok {
			return false
		}
		if !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual — глубокое равенство; числа сравниваем как float64,
// чтобы не зависеть от того, кто декодировал JSON
func valuesEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok2 := toFloat(b); ok2 {
			return fa == fb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
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
	default:
		return 0, false
	}
}

// project применяет $fields: либо оставляет перечисленное, либо убирает.
// id не выкидываем при включающей проекции.
func project(doc Document, opts queryOpts) Document {
	if opts.fields == nil {
		return doc
	}
	out := make(Document, len(doc))
	if opts.keep {
		for name, on := range opts.fields {
			if !on {
				continue
			}
			if v, ok := doc[name]; ok {
				out[name] = v
			}
		}
		if v, ok := doc["id"]; ok {
			out["id"] = v
		}
		return out
	}
	for k, v := range doc {
		if excluded, ok := opts.fields[k]; ok && !excluded {
			continue
		}
		out[k] = v
	}
	return out
}

// applyOpts — сортировка, skip/limit и проекция поверх отфильтрованного набора
func applyOpts(docs []Document, opts queryOpts) []Document {
	if len(opts.sort) > 0 {
		sort.SliceStable(docs, func(i, j int) bool {
			for _, k := range opts.sort {
				c := compareValues(docs[i][k.field], docs[j][k.field])
				if c == 0 {
					continue
				}
				if k.desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}
	if opts.skip > 0 {
		if opts.skip >= len(docs) {
			docs = nil
		} else {
			docs = docs[opts.skip:]
		}
	}
	if opts.hasLim && opts.limit < len(docs) {
		docs = docs[:opts.limit]
	}
	if opts.fields != nil {
		out := make([]Document, 0, len(docs))
		for _, d := range docs {
			out = append(out, project(d, opts))
		}
		return out
	}
	return docs
}

func compareValues(a, b any) int {
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	if aok && bok {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	sa, aok := a.(string)
	sb, bok := b.(string)
	if aok && bok {
		return strings.Compare(sa, sb)
	}
	return 0
}
