// Command firecontrol_ext is the Arma 3 extension. Build it with
// -buildmode=c-shared; Arma loads it and talks to it through callExtension.
package main

/*
#include <stdlib.h>
#include <stdio.h>
#include <string.h>
*/
import "C" // This is required to import the C code

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/OCAP2/firecontrol/internal/cache"
	"github.com/OCAP2/firecontrol/internal/config"
	"github.com/OCAP2/firecontrol/internal/dispatcher"
	"github.com/OCAP2/firecontrol/internal/firecontrol"
	"github.com/OCAP2/firecontrol/internal/handlers"
	"github.com/OCAP2/firecontrol/internal/logging"
	"github.com/OCAP2/firecontrol/internal/mission"
	intOtel "github.com/OCAP2/firecontrol/internal/otel"
	"github.com/OCAP2/firecontrol/internal/storage"
	"github.com/OCAP2/firecontrol/pkg/a3interface"

	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentExtensionVersion string = "0.0.1"
	BuildDate               string = "unknown"

	ExtensionName string = "firecontrol"
)

// file paths
var (
	// ModulePath is the absolute path to this library file.
	ModulePath string

	// ModuleFolder is the parent folder of ModulePath; the config file lives here.
	ModuleFolder string

	LogFilePath string
)

// global variables
var (
	SlogManager  *logging.SlogManager
	Logger       *slog.Logger
	OTelProvider *intOtel.Provider

	SessionStartTime time.Time = time.Now()

	handlerService  *handlers.Service
	eventDispatcher *dispatcher.Dispatcher
)

// init is run automatically when the module is loaded
func init() {
	ModulePath = a3interface.GetModulePath()
	ModuleFolder = filepath.Dir(ModulePath)

	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(initLogFile(), "info", nil)
	Logger = SlogManager.Logger()

	if err := config.Load(ModuleFolder); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}

	logsDir := resolvePath(config.GetString("logsDir"))
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		Logger.Error("Failed to create logs directory", "error", err, "path", logsDir)
	}
	logFile := logging.RotatingFile(logsDir, ExtensionName, SessionStartTime)
	LogFilePath = logFile.Filename

	otelCfg := config.GetOTelConfig()
	var err error
	OTelProvider, err = intOtel.New(intOtel.Config{
		Enabled:        otelCfg.Enabled,
		ServiceName:    otelCfg.ServiceName,
		ServiceVersion: CurrentExtensionVersion,
		BatchTimeout:   otelCfg.BatchTimeout,
		LogWriter:      logFile,
		Endpoint:       otelCfg.Endpoint,
		Insecure:       otelCfg.Insecure,
	})
	if err != nil {
		Logger.Error("Failed to initialize OTel provider", "error", err)
		OTelProvider, _ = intOtel.New(intOtel.Config{})
	}

	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider.Enabled() {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	SlogManager.Setup(logFile, config.GetString("logLevel"), otelLogProvider)
	Logger = SlogManager.WithContext(func() []slog.Attr {
		if handlerService == nil {
			return nil
		}
		mc := handlerService.GetMissionContext()
		return []slog.Attr{
			slog.String("worldName", mc.GetWorld().WorldName),
			slog.String("weapon", mc.State().Weapon.Name),
		}
	})
	Logger.Info("Logging to file", "path", LogFilePath)

	Logger.Info("Setting up a3interface...")
	if err := setupA3Interface(); err != nil {
		Logger.Error("Failed to set up a3interfaces!", "error", err)
		panic(err)
	}
	Logger.Info("Set up a3interfaces")
}

// initLogFile opens init.log next to the module so config errors are visible
// before the session log exists.
func initLogFile() io.Writer {
	f, err := os.Create(filepath.Join(ModuleFolder, "init.log"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create init log file: %v\n", err)
		return nil
	}
	return f
}

// resolvePath makes relative config paths relative to the module folder.
func resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(ModuleFolder, p)
}

func setupA3Interface() error {
	a3interface.SetVersion(CurrentExtensionVersion)

	fcCfg := config.GetFireControlConfig()

	weaponCfgs, err := config.GetWeaponsConfig()
	if err != nil {
		return err
	}
	catalog, err := firecontrol.CatalogFromConfig(weaponCfgs)
	if err != nil {
		return fmt.Errorf("invalid weapons config: %w", err)
	}
	initial, err := firecontrol.StateFromConfig(fcCfg, catalog)
	if err != nil {
		Logger.Warn("Invalid fire control defaults, using built-in ones", "error", err)
		initial = firecontrol.DefaultState()
	}

	solutions, err := cache.NewSolutionCache(fcCfg.CacheSize)
	if err != nil {
		return fmt.Errorf("failed to create solution cache: %w", err)
	}

	handlerService, err = handlers.NewService(handlers.Dependencies{
		LogManager:  SlogManager,
		Catalog:     catalog,
		Cache:       solutions,
		Meter:       OTelProvider.Meter("github.com/OCAP2/firecontrol/internal/handlers"),
		AlertOffset: fcCfg.AlertOffset,
		Callback: func(function string, data ...string) error {
			return a3interface.WriteArmaCallback(ExtensionName, function, data...)
		},
		ExtensionName:    ExtensionName,
		ExtensionVersion: CurrentExtensionVersion,
		BuildDate:        BuildDate,
	}, mission.NewContext(initial))
	if err != nil {
		return fmt.Errorf("failed to create handler service: %w", err)
	}

	eventDispatcher, err = dispatcher.NewWithMeter(logging.NewDispatcherLogger(Logger), OTelProvider.Meter("github.com/OCAP2/firecontrol/internal/dispatcher"))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	registerLifecycleHandlers(eventDispatcher)
	handlerService.Register(eventDispatcher)
	a3interface.SetDispatcher(eventDispatcher)

	Logger.Info("Dispatcher initialized", "commands", len(eventDispatcher.Commands()))
	return nil
}

// registerLifecycleHandlers registers system/lifecycle command handlers with the dispatcher
func registerLifecycleHandlers(d *dispatcher.Dispatcher) {
	d.Register(":INIT:", func(e dispatcher.Event) (any, error) {
		go initExtension()
		return "ok", nil
	})

	d.Register(":INIT:STORAGE:", func(e dispatcher.Event) (any, error) {
		go func() {
			if err := initStorage(); err != nil {
				Logger.Error("Storage initialization failed", "error", err)
			}
		}()
		return "ok", nil
	})

	d.Register(":GETDIR:MODULE:", func(e dispatcher.Event) (any, error) {
		return ModulePath, nil
	})

	d.Register(":GETDIR:LOG:", func(e dispatcher.Event) (any, error) {
		return LogFilePath, nil
	})

	d.Register(":COMMANDS:", func(e dispatcher.Event) (any, error) {
		return d.Commands(), nil
	})

	d.Register(":SAVE:", func(e dispatcher.Event) (any, error) {
		Logger.Info("Received :SAVE: command, closing storage")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		path, err := handlerService.CloseStorage(ctx, d)
		if err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
			return nil, err
		}
		if path != "" {
			Logger.Info("Fire mission log exported", "path", path)
		}
		if err := OTelProvider.Flush(ctx); err != nil {
			Logger.Warn("Failed to flush OTel data", "error", err)
		}
		return "ok", nil
	}, dispatcher.Logged())
}

func initExtension() {
	// send ready callback to Arma
	if err := a3interface.WriteArmaCallback(ExtensionName, ":EXT:READY:"); err != nil {
		Logger.Warn("Failed to send EXT:READY callback", "error", err)
	}
	a3interface.WriteArmaCallback(ExtensionName, ":VERSION:", CurrentExtensionVersion)
}

func initStorage() error {
	Logger.Debug("Received :INIT:STORAGE: call")

	storageCfg := config.GetStorageConfig()
	storageCfg.Memory.OutputDir = resolvePath(storageCfg.Memory.OutputDir)
	storageCfg.SQLite.Path = resolvePath(storageCfg.SQLite.Path)
	storageCfg.SQLite.DumpPath = resolvePath(storageCfg.SQLite.DumpPath)
	storageCfg.Influx.BackupPath = resolvePath(storageCfg.Influx.BackupPath)

	backend, err := storage.NewBackend(storageCfg, Logger)
	if err != nil {
		a3interface.WriteArmaCallback(ExtensionName, ":STORAGE:ERROR:", err.Error())
		return err
	}
	if err := backend.Init(); err != nil {
		a3interface.WriteArmaCallback(ExtensionName, ":STORAGE:ERROR:", err.Error())
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}

	if previous := handlerService.SetBackend(backend); previous != nil {
		if err := previous.Close(); err != nil {
			Logger.Warn("Failed to close previous storage backend", "error", err)
		}
	}
	Logger.Info("Storage backend initialized", "type", storageCfg.Type)

	if err := a3interface.WriteArmaCallback(ExtensionName, ":STORAGE:OK:", storageCfg.Type); err != nil {
		Logger.Warn("Failed to send STORAGE:OK callback", "error", err)
	}
	return nil
}

func main() {}
