package store

import "fmt"

// Open создаёт Backend по имени драйвера.
//
// Поддерживаются:
//
//	"memory" - in-memory (по умолчанию, данные до рестарта)
//	"sqlite" - база в файле path
func Open(driver, path string) (Backend, error) {
	switch driver {
	case "memory", "":
		return NewMemory(), nil
	case "sqlite":
		return NewSqlite(path)
	default:
		return nil, fmt.Errorf("unknown store driver: %q (supported: memory, sqlite)", driver)
	}
}
