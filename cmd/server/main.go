package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/golang/glog"
	"github.com/joho/godotenv"

	"github.com/atodared/deployd/internal/api"
	"github.com/atodared/deployd/internal/collection"
	"github.com/atodared/deployd/internal/config"
	"github.com/atodared/deployd/internal/dsl"
	"github.com/atodared/deployd/internal/live"
	"github.com/atodared/deployd/internal/seed"
	"github.com/atodared/deployd/internal/store"
)

func main() {
	// .env (если есть), потом config.json + ENV + флаги
	_ = godotenv.Load()
	cfg := config.LoadWithPath("config.json")

	// 1. Загружаем объявления коллекций
	defs, err := dsl.LoadAll(cfg.ResourcesDir)
	if err != nil {
		log.Fatalf("Ошибка загрузки коллекций: %v", err)
	}
	fmt.Printf("Загружено коллекций: %d\n", len(defs))

	// 2. Открываем хранилище
	backend, err := store.Open(cfg.StoreDriver, cfg.StorePath)
	if err != nil {
		log.Fatalf("Ошибка открытия хранилища: %v", err)
	}

	// 3. Скрипты регистрирует встраивающее приложение; из коробки
	// реестр пуст, непривязанные события получают предупреждение
	registry := collection.NewRegistry()

	cols := make(map[string]*collection.Collection, len(defs))
	for name, def := range defs {
		events := make(map[string]collection.Script, len(def.Events))
		for event, scriptName := range def.Events {
			s, err := registry.Get(scriptName)
			if err != nil {
				glog.Warningf("collection %s: event %s: %v", name, event, err)
				continue
			}
			events[event] = s
		}
		cols[name] = collection.New(collection.Config{
			Name:       name,
			Properties: def.Properties,
			Events:     events,
		}, backend.Namespace(name))
	}

	// 4. Сиды
	seeds, err := seed.LoadDir(cfg.SeedDir)
	if err != nil {
		log.Fatalf("Ошибка загрузки сидов: %v", err)
	}
	for _, s := range seeds {
		col := cols[s.Collection]
		if col == nil {
			glog.Warningf("seed %s: no such collection", s.Collection)
			continue
		}
		if err := col.Seed(context.Background(), s.Documents); err != nil {
			log.Fatalf("Ошибка сидов %s: %v", s.Collection, err)
		}
	}

	// аккуратно закрываем хранилище по Ctrl-C
	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt)
		<-ch
		_ = backend.Close()
		os.Exit(0)
	}()

	app := &api.App{
		Collections: cols,
		Hub:         live.NewHub(),
		RootKey:     cfg.RootKey,
	}
	fmt.Printf("Стартуем сервер на :%s...\n", cfg.Port)
	api.RunServer(":"+cfg.Port, app)
}
