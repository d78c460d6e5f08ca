package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/joss/aiko/internal/config"
	"github.com/joss/aiko/internal/graph"
	"github.com/joss/aiko/internal/logging"
	"github.com/joss/aiko/internal/memory"
	"github.com/joss/aiko/internal/notify"
	"github.com/joss/aiko/internal/persona"
	"github.com/joss/aiko/internal/provider"
	"github.com/joss/aiko/internal/session"
	"github.com/joss/aiko/internal/storage"
	"github.com/joss/aiko/pkg/llm"
)

// app holds the wired application. Built once per command invocation.
type app struct {
	cfg      *config.Config
	pers     *persona.Persona
	store    *storage.Storage
	sessions *session.Manager
	memStore memory.Store
	embed    memory.Embedder
	coord    *memory.Coordinator
	gateway  llm.Gateway
	notifier notify.Notifier
	logger   *logging.Logger

	graphDB graph.Driver
}

func buildApp(offline bool) (*app, error) {
	workDir, _ := os.Getwd()
	cfg, err := config.Load(workDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	pers := persona.Default()
	if cfg.PersonaPath != "" {
		pers, err = persona.Load(cfg.PersonaPath)
		if err != nil {
			return nil, fmt.Errorf("load persona: %w", err)
		}
	}

	store, err := storage.New(config.DataDir())
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	a := &app{
		cfg:      cfg,
		pers:     pers,
		store:    store,
		sessions: session.NewManager(store),
		logger:   logging.New("aiko"),
	}

	if err := a.buildMemory(offline); err != nil {
		a.Close()
		return nil, err
	}
	a.buildGateway(offline)
	a.buildNotifier()
	return a, nil
}

func (a *app) buildMemory(offline bool) error {
	cfg := a.cfg

	// Full path: graph store when configured, local file store otherwise.
	var memStore memory.Store
	if cfg.GraphURI != "" {
		db, err := graph.NewBolt(graph.Config{
			URI:      cfg.GraphURI,
			Username: cfg.GraphUser,
			Password: cfg.GraphPassword,
		})
		if err != nil {
			return fmt.Errorf("connect graph store: %w", err)
		}
		a.graphDB = db
		memStore = memory.NewGraphStore(db)
	} else {
		local, err := memory.NewLocalStore(filepath.Join(config.DataDir(), "memory"))
		if err != nil {
			return fmt.Errorf("open memory store: %w", err)
		}
		memStore = local
	}
	a.memStore = memStore

	var embed memory.Embedder
	if offline || cfg.APIKey == "" {
		embed = memory.NewLocalEmbedder(0)
	} else {
		embed = memory.NewOpenAIEmbedder(cfg.APIKey, cfg.BaseURL, "")
	}
	a.embed = embed

	// Fast path: recent index in Redis, only when an address is set.
	var fast *memory.RecentIndex
	if cfg.Memory.FastPath && cfg.RedisAddr != "" {
		fast = memory.NewRecentIndex(redis.NewClient(&redis.Options{Addr: cfg.RedisAddr}))
	} else {
		cfg.Memory.FastPath = false
	}

	svc := memory.NewTieredService(fast, memStore, embed)
	a.coord = memory.NewCoordinator(svc, cfg.Memory, logging.New("memory"))
	return nil
}

func (a *app) buildGateway(offline bool) {
	if offline {
		a.gateway = provider.NewMock()
		return
	}
	a.gateway = provider.NewOpenAI(a.cfg.APIKey, a.cfg.BaseURL, a.cfg.Model, a.cfg.VisionModel)
}

func (a *app) buildNotifier() {
	var targets notify.Multi
	if a.cfg.Notify.Command != "" {
		targets = append(targets, notify.NewCommand(a.cfg.Notify.Command, a.logger))
	}
	if a.cfg.Notify.SlackWebhook != "" {
		targets = append(targets, notify.NewSlack(a.cfg.Notify.SlackWebhook))
	}
	if len(targets) > 0 {
		a.notifier = targets
	}
}

func (a *app) Close() {
	if a.memStore != nil {
		a.memStore.Close()
	}
	if a.graphDB != nil {
		a.graphDB.Close(context.Background())
	}
	if a.store != nil {
		a.store.Close()
	}
}

func fatalError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
