package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/matt0x6f/cascade-core/internal/config"
	"github.com/matt0x6f/cascade-core/internal/logger"
	"github.com/peterh/liner"
)

// version is stamped at build time with -ldflags "-X main.version=v1.2.3"
var version = ""

func main() {
	configPath := flag.String("config", "", "path to config.toml (default <config dir>/cascade/config.toml)")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *configPath == "" {
		*configPath = filepath.Join(config.Default().DataDir, "config.toml")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error loading config:", err)
		os.Exit(1)
	}
	if version != "" {
		cfg.AppVersion = version
	}
	if *showVersion {
		fmt.Println(cfg.AppVersion)
		return
	}

	if err := logger.Configure(cfg.LogLevel); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		fmt.Fprintln(os.Stderr, "Error creating data directory:", err)
		os.Exit(1)
	}
	// The console owns stdout and stderr; logs go to a file
	logFile, err := os.OpenFile(filepath.Join(cfg.DataDir, "cascade.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err == nil {
		logger.SetOutput(logFile)
		defer logFile.Close()
	}

	app, err := NewApp(cfg, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error initializing app:", err)
		os.Exit(1)
	}

	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	historyPath := filepath.Join(cfg.DataDir, "history")
	if f, err := os.Open(historyPath); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Log.Info().Str("signal", sig.String()).Msg("Received signal, initiating shutdown")
		line.Close()
		app.shutdown()
		os.Exit(0)
	}()

	app.startup()
	fmt.Println("Cascade Chat " + cfg.AppVersion + ". Type /help for commands, /connect to get started.")

	for {
		input, err := line.Prompt("> ")
		if err != nil {
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				logger.Log.Warn().Err(err).Msg("Failed to read input")
			}
			break
		}
		if strings.TrimSpace(input) == "" {
			continue
		}
		if app.KeepInHistory(input) {
			line.AppendHistory(input)
		}

		if err := app.HandleInput(input); err != nil {
			fmt.Println("!!", err)
		}
	}

	if f, err := os.OpenFile(historyPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
		line.WriteHistory(f)
		f.Close()
	}
	line.Close()
	app.shutdown()
}
