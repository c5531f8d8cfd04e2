package config

import (
	"encoding/json"
	"flag"
	"os"
	"strings"
)

type Config struct {
	Port         string `json:"port"`
	ResourcesDir string `json:"resourcesDir"` // каталог с .dsl объявлениями коллекций
	SeedDir      string `json:"seedDir"`      // каталог с YAML-сидами (опционально)

	StoreDriver string `json:"storeDriver"` // "memory" (default) | "sqlite"
	StorePath   string `json:"storePath"`   // для sqlite: путь к файлу базы

	// RootKey — значение заголовка dpd-ssh-key, дающее root-сессию.
	// Пустой ключ root не выдаёт никому.
	RootKey string `json:"rootKey"`
}

func def() Config {
	return Config{
		Port:         "8080",
		ResourcesDir: "resources",
		SeedDir:      "seeds",
		StoreDriver:  "memory",
		StorePath:    "data/deployd.db",
		RootKey:      "",
	}
}

func loadJSON(path string) (Config, error) {
	c := def()
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return c, err
	}
	return c, nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return v
	}
	return fallback
}

// LoadWithPath читает JSON по указанному пути, потом применяет ENV и флаги.
func LoadWithPath(jsonPath string) Config {
	cfg := def()

	// JSON (если файл существует)
	if st, err := os.Stat(jsonPath); err == nil && !st.IsDir() {
		if c2, err := loadJSON(jsonPath); err == nil {
			cfg = c2
		}
	}

	// ENV overrides
	cfg.Port = getenv("DPD_PORT", cfg.Port)
	cfg.ResourcesDir = getenv("DPD_RESOURCES_DIR", cfg.ResourcesDir)
	cfg.SeedDir = getenv("DPD_SEED_DIR", cfg.SeedDir)
	cfg.StoreDriver = getenv("DPD_STORE_DRIVER", cfg.StoreDriver)
	cfg.StorePath = getenv("DPD_STORE_PATH", cfg.StorePath)
	cfg.RootKey = getenv("DPD_ROOT_KEY", cfg.RootKey)

	// Flags overrides
	configPath := flag.String("config", jsonPath, "Path to config JSON")
	port := flag.String("port", cfg.Port, "HTTP port")
	resources := flag.String("resources", cfg.ResourcesDir, "Path to collection DSL directory")
	seeds := flag.String("seeds", cfg.SeedDir, "Path to seed directory")
	driver := flag.String("store", cfg.StoreDriver, "Store driver (memory/sqlite)")
	storePath := flag.String("store-path", cfg.StorePath, "Sqlite database path")
	rootKey := flag.String("root-key", cfg.RootKey, "Root session key (dpd-ssh-key)")

	flag.Parse()

	// Если через флаг передали другой конфиг — перечитаем JSON-основу:
	// явно не заданные флаги берут значения из него (поверх — ENV)
	if *configPath != jsonPath {
		if c2, err := loadJSON(*configPath); err == nil {
			set := map[string]bool{}
			flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
			fromFile := func(name string, p *string, env, v string) {
				if !set[name] {
					*p = getenv(env, v)
				}
			}
			fromFile("port", port, "DPD_PORT", c2.Port)
			fromFile("resources", resources, "DPD_RESOURCES_DIR", c2.ResourcesDir)
			fromFile("seeds", seeds, "DPD_SEED_DIR", c2.SeedDir)
			fromFile("store", driver, "DPD_STORE_DRIVER", c2.StoreDriver)
			fromFile("store-path", storePath, "DPD_STORE_PATH", c2.StorePath)
			fromFile("root-key", rootKey, "DPD_ROOT_KEY", c2.RootKey)
		}
	}

	cfg.Port = strings.TrimSpace(*port)
	cfg.ResourcesDir = strings.TrimSpace(*resources)
	cfg.SeedDir = strings.TrimSpace(*seeds)
	cfg.StoreDriver = strings.TrimSpace(*driver)
	cfg.StorePath = strings.TrimSpace(*storePath)
	cfg.RootKey = strings.TrimSpace(*rootKey)

	return cfg
}
