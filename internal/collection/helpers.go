package collection

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/atodared/deployd/internal/store"
)

func idString(v any) string {
	s, _ := v.(string)
	return s
}

// truthy — для флагов вроде $skipEvents, приходящих и как bool,
// и как строка из query
func truthy(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true" || t == "1"
	default:
		if f, ok := numberValue(v); ok {
			return f != 0
		}
	}
	return false
}

// deepCopyDoc — снимок документа через JSON; previous не должен
// разделять вложенные значения с изменяемым документом
func deepCopyDoc(doc store.Document) store.Document {
	if doc == nil {
		return nil
	}
	b, err := jsoniter.Marshal(doc)
	if err != nil {
		return nil
	}
	var out store.Document
	if err := jsoniter.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}

func copyQueryWithoutID(q store.Query) store.Query {
	out := make(store.Query, len(q))
	for k, v := range q {
		if k == "id" {
			continue
		}
		out[k] = v
	}
	return out
}
