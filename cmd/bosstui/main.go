package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/bossmsg/internal/config"
	"github.com/matheus3301/bossmsg/internal/logging"
	"github.com/matheus3301/bossmsg/internal/session"
	"github.com/matheus3301/bossmsg/internal/tui"
	"github.com/matheus3301/bossmsg/internal/tui/client"
)

func main() {
	sessionFlag := flag.String("session", "", "session name (overrides config default)")
	flag.Parse()

	sessionName := session.Resolve(*sessionFlag)
	if err := session.ValidateName(sessionName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	cfg, cfgErr := config.LoadOrDefault(session.ConfigPath())
	if cfgErr != nil {
		cfg = config.Default()
	}
	logger, err := logging.New(session.LogPath(sessionName, "bosstui"), sessionName, cfg.LogLevel,
		logging.WithoutConsole(), logging.WithProcess("bosstui"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: no log file: %v\n", err)
		logger = zap.NewNop()
	}
	defer func() { _ = logger.Sync() }()
	if cfgErr != nil {
		logger.Warn("config unreadable, using defaults", zap.Error(cfgErr))
	}

	socketPath := session.SocketPath(sessionName)

	// Probe daemon health; auto-start if needed.
	if !client.Probe(socketPath) {
		fmt.Fprintf(os.Stderr, "daemon not running for session %q, starting...\n", sessionName)
		logger.Info("starting daemon", zap.String("socket", socketPath))
		if err := client.Ensure(sessionName, socketPath, 10*time.Second); err != nil {
			logger.Error("daemon did not come up", zap.Error(err))
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	c, err := client.New(socketPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to daemon: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = c.Close() }()

	app := tui.NewApp(c, sessionName, tui.OptionsFromConfig(cfg.Story), logger)
	if err := app.Run(); err != nil {
		logger.Error("tui exited", zap.Error(err))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
