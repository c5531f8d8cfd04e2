package dsl

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	collectionRe = regexp.MustCompile(`^collection\s+([a-zA-Z][\w-]*)\s*:\s*$`)
	propRe       = regexp.MustCompile(`^\s*([\w_]+):\s*([a-z]+)(.*)$`)
	eventRe      = regexp.MustCompile(`^\s*on\s+([\w-]+)\s*:\s*([\w-]+)\s*$`)
)

// допустимые типы свойств
var knownTypes = map[string]bool{
	"string":  true,
	"number":  true,
	"boolean": true,
	"array":   true,
	"object":  true,
	"date":    true,
}

// LoadCollections читает один .dsl файл и возвращает список коллекций
func LoadCollections(path string) ([]*Collection, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var collections []*Collection
	var current *Collection

	scanner := bufio.NewScanner(file)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Text()
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// collection <name>:
		if m := collectionRe.FindStringSubmatch(line); m != nil {
			// закрыть предыдущую коллекцию
			if current != nil {
				collections = append(collections, current)
			}
			current = &Collection{Name: m[1], Events: map[string]string{}}
			continue
		}
		if current == nil {
			// игнорируем всё вне коллекции
			continue
		}

		// on <event>: <script>
		if m := eventRe.FindStringSubmatch(line); m != nil {
			event := strings.ToLower(m[1])
			if _, dup := current.Events[event]; dup {
				return nil, fmt.Errorf("line %d: duplicate event %q in collection %q", lineNo, event, current.Name)
			}
			current.Events[event] = m[2]
			continue
		}

		// <prop>: <type> [required]
		if m := propRe.FindStringSubmatch(line); m != nil {
			name := m[1]
			rawType := m[2]
			tail := strings.TrimSpace(m[3])

			// срезать комментарий после типа
			if i := strings.IndexByte(tail, '#'); i >= 0 {
				tail = strings.TrimSpace(tail[:i])
			}

			if !knownTypes[rawType] {
				return nil, fmt.Errorf("line %d: unknown type %q for property %q", lineNo, rawType, name)
			}
			if name == "id" {
				// id выдаёт хранилище, в схеме его объявлять нельзя
				return nil, fmt.Errorf("line %d: property \"id\" is reserved", lineNo)
			}
			for _, p := range current.Properties {
				if p.Name == name {
					return nil, fmt.Errorf("line %d: duplicate property %q in collection %q", lineNo, name, current.Name)
				}
			}

			p := Property{Name: name, Type: rawType}
			for _, tok := range strings.Fields(tail) {
				switch strings.ToLower(tok) {
				case "required":
					p.Required = true
				default:
					return nil, fmt.Errorf("line %d: unknown option %q for property %q", lineNo, tok, name)
				}
			}

			current.Properties = append(current.Properties, p)
			continue
		}

		return nil, fmt.Errorf("line %d: cannot parse %q", lineNo, line)
	}

	if current != nil {
		collections = append(collections, current)
	}
	return collections, scanner.Err()
}

// LoadAll обходит каталог и собирает коллекции из всех .dsl файлов
func LoadAll(root string) (map[string]*Collection, error) {
	result := make(map[string]*Collection)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".dsl") {
			return nil
		}

		cols, err := LoadCollections(path)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		for _, c := range cols {
			if c == nil || c.Name == "" {
				return fmt.Errorf("empty collection name in %s", path)
			}
			if _, exists := result[c.Name]; exists {
				return fmt.Errorf("duplicate collection %q (file: %s)", c.Name, path)
			}
			result[c.Name] = c
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
