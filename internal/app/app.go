package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/vk/tickflowgo/internal/blobstore"
	"github.com/vk/tickflowgo/internal/config"
	"github.com/vk/tickflowgo/internal/ctxlog"
	"github.com/vk/tickflowgo/internal/engine"
	"github.com/vk/tickflowgo/internal/gateway"
	"github.com/vk/tickflowgo/internal/registry"
)

// schemaVersion is the current settings record schema. Bump together with a
// matching entry in migrations.
const schemaVersion = 1

// migrations upgrade older persisted settings records to schemaVersion.
var migrations []blobstore.Migration

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW      io.Writer
	logger    *slog.Logger
	registry  *registry.Registry
	config    *config.Model
	converter config.Converter
	gw        gateway.Gateway
	store     blobstore.Store
	appConfig *Config

	engine *engine.Engine
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
func NewApp(outW io.Writer, appConfig *Config, loader config.Loader, gw gateway.Gateway, store blobstore.Store, modules ...registry.Module) *App {
	logger := newLogger(appConfig.LogLevel, appConfig.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	// Merge all configuration paths into a single collection for the loader.
	var configPaths []string
	if appConfig.ProfilePath != "" {
		configPaths = append(configPaths, appConfig.ProfilePath)
	}
	if appConfig.ModulesPath != "" {
		configPaths = append(configPaths, appConfig.ModulesPath)
	}

	// Load all configuration into the format-agnostic model first.
	cfgModel, converter, err := loader.Load(ctx, configPaths...)
	if err != nil {
		// A failure to load config is a fatal startup error.
		panic(fmt.Errorf("failed to load configuration: %w", err))
	}
	logger.Debug("Configuration loaded and translated into unified model.")

	// Create and populate the registry with Go plans.
	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All Go modules registered.", "count", len(modules))

	// Populate the registry's definitions from the loaded config model.
	reg.PopulateDefinitionsFromModel(cfgModel)
	logger.Debug("Registry definitions populated from config model.")

	// Validate the integrity of the registry.
	if err := reg.ValidateRegistry(ctx); err != nil {
		// This is a programmer error (mismatch between code and config), so we panic.
		panic(err)
	}
	logger.Debug("Registry validation passed.")

	if store == nil {
		store = blobstore.NewFileStore(appConfig.DataDir, schemaVersion, migrations...)
	}

	return &App{
		outW:      outW,
		logger:    logger,
		registry:  reg,
		config:    cfgModel,
		converter: converter,
		gw:        gw,
		store:     store,
		appConfig: appConfig,
	}
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}
