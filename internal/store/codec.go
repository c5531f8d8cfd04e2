package store

import (
	"bytes"
	"encoding/json"

	jsoniter "github.com/json-iterator/go"
)

// decodeDocument разбирает JSON документа. Все числа приводим к float64,
// чтобы значения из sqlite и из HTTP-слоя сравнивались одинаково.
func decodeDocument(raw []byte) Document {
	var doc Document
	dec := jsoniter.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil
	}
	normalizeNumbers(doc)
	return doc
}

func encodeDocument(doc Document) ([]byte, error) {
	return jsoniter.Marshal(doc)
}

func normalizeNumbers(doc map[string]any) {
	for k, v := range doc {
		doc[k] = normalizeValue(v)
	}
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case jsoniter.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]any:
		normalizeNumbers(t)
		return t
	case []any:
		for i, e := range t {
			t[i] = normalizeValue(e)
		}
		return t
	default:
		return v
	}
}

// deepCopy — копия документа через JSON, чтобы наружу не утекали
// ссылки на внутреннее состояние хранилища
func deepCopy(doc Document) Document {
	if doc == nil {
		return nil
	}
	b, err := encodeDocument(doc)
	if err != nil {
		return nil
	}
	return decodeDocument(b)
}
