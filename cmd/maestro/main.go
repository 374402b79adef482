package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"maestro/internal/adapter/gateway"
	"maestro/internal/adapter/mcptools"
	"maestro/internal/adapter/structuredgen"
	"maestro/internal/infra/config"
	"maestro/internal/infra/logger"
	"maestro/internal/infra/tracer"
	"maestro/internal/usecase/orchestrator"
)

const version = "0.1.0"

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "--help", "-h", "help":
			showUsage()
			return
		case "mcp":
			if err := runMCP(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "mcp: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func showUsage() {
	fmt.Println(`maestro - agent selection and orchestration service

USAGE:
    maestro [COMMAND] [FLAGS]

COMMANDS:
    mcp         Serve the orchestrator as MCP tools over stdio

    (no command) - Serve the HTTP/WebSocket gateway

FLAGS:
    -h, --help         Show this help message
    --config PATH      Config file path (default: ./config.yaml)

CONFIGURATION:
    Config file: ./config.yaml
    Environment: MAESTRO_* variables override config

EXAMPLES:
    maestro                              # Serve with config.yaml
    maestro --config /etc/maestro.yaml   # Serve with custom config
    maestro mcp                          # Expose tools to an MCP host`)
}

// components is everything main wires together before serving.
type components struct {
	cfg      *config.Config
	log      *slog.Logger
	ring     *logger.Ring
	orch     *orchestrator.Orchestrator
	engine   *orchestrator.Engine
	catalog  *CatalogComponents
	shutdown []func()
}

func (c *components) close() {
	for i := len(c.shutdown) - 1; i >= 0; i-- {
		c.shutdown[i]()
	}
}

// initComponents loads config and builds the full pipeline: providers,
// structured generation, catalog, engine, facade.
func initComponents(ctx context.Context, configPath string) (*components, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, ring, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	c := &components{cfg: cfg, log: log, ring: ring}
	c.shutdown = append(c.shutdown, func() { closeLog() })

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		c.close()
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	c.shutdown = append(c.shutdown, func() { shutdownTracer(context.Background()) })

	llmc, err := initLLM(cfg, log)
	if err != nil {
		c.close()
		return nil, err
	}

	cat, err := initCatalog(cfg, log)
	if err != nil {
		c.close()
		return nil, err
	}
	c.catalog = cat
	c.shutdown = append(c.shutdown, cat.Close)

	gen := structuredgen.NewClient(llmc.DefaultLLM, log)
	c.engine = orchestrator.NewEngine(gen, orchestrator.EngineConfig{
		Model:      cfg.Orchestrator.Model,
		MaxTokens:  cfg.Orchestrator.MaxTokens,
		MaxRetries: cfg.Orchestrator.MaxRetries,
	}, log)
	c.orch = orchestrator.New(c.engine, cat.Provider, cat.Resolver, log)

	log.Info("maestro initialized",
		"version", version,
		"default_provider", cfg.LLM.DefaultProvider,
		"catalog_source", cfg.Catalog.Source,
	)
	return c, nil
}

func run(args []string) error {
	fs := flag.NewFlagSet("maestro", flag.ExitOnError)
	configPath := fs.String("config", "./config.yaml", "config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := initComponents(ctx, *configPath)
	if err != nil {
		return err
	}
	defer c.close()

	if c.catalog.Syncer != nil {
		if err := c.catalog.Syncer.Start(ctx); err != nil {
			return fmt.Errorf("start catalog sync: %w", err)
		}
		defer c.catalog.Syncer.Stop()
	}

	srv := gateway.NewServer(c.orch, c.engine, c.catalog.Provider, c.ring, c.cfg.Gateway, c.log)
	return srv.Start(ctx)
}

func runMCP(args []string) error {
	fs := flag.NewFlagSet("maestro mcp", flag.ExitOnError)
	configPath := fs.String("config", "./config.yaml", "config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := initComponents(ctx, *configPath)
	if err != nil {
		return err
	}
	defer c.close()

	srv := mcptools.NewServer(c.orch, c.engine, c.catalog.Provider, version, c.log)
	return srv.ServeStdio()
}
