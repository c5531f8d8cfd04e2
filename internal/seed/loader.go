// Package seed загружает стартовые документы коллекций из YAML-файлов.
package seed

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Seed — содержимое одного файла: коллекция и её документы
type Seed struct {
	Collection string           `yaml:"collection"`
	Documents  []map[string]any `yaml:"documents"`
}

// LoadDir читает все сид-файлы из каталога. Отсутствующий каталог —
// не ошибка: сидов просто нет.
func LoadDir(dir string) ([]Seed, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var seeds []Seed
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		var s Seed
		if err := yaml.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		if s.Collection == "" {
			// имя коллекции — из имени файла, если в файле не указано
			s.Collection = strings.TrimSuffix(name, filepath.Ext(name))
		}
		for _, doc := range s.Documents {
			normalize(doc)
		}
		seeds = append(seeds, s)
	}
	return seeds, nil
}

// normalize приводит значения YAML к формам JSON-слоя:
// целые числа — к float64, вложенные карты — рекурсивно
func normalize(doc map[string]any) {
	for k, v := range doc {
		doc[k] = normalizeValue(v)
	}
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case map[string]any:
		normalize(t)
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
