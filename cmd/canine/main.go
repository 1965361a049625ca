package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/joeycumines/canine/internal/command"
	"github.com/joeycumines/canine/internal/config"
)

const version = "0.1.0"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, command.ErrUsage) {
			_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) (err error) {
	global := flag.NewFlagSet("canine", flag.ContinueOnError)
	global.SetOutput(stderr)
	logFile := global.String("log-file", "", "Write JSON logs to this file (rotated)")
	logLevel := global.String("log-level", "", "Log level: debug|info|warn|error")
	global.Usage = func() {
		_, _ = fmt.Fprintln(stderr, "Usage: canine [global options] <command> [options] [args...]")
		_, _ = fmt.Fprintln(stderr, "\nGlobal options:")
		global.PrintDefaults()
	}
	cmdArgs := []string{"help"}
	if err := global.Parse(args); err == nil {
		cmdArgs = global.Args()
	} else if !errors.Is(err, flag.ErrHelp) {
		return fmt.Errorf("%w: %w", command.ErrUsage, err)
	}

	configPath, err := config.GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	cfg, err := config.LoadFromPath(configPath)
	if err != nil {
		return err
	}
	for _, w := range cfg.Warnings {
		_, _ = fmt.Fprintf(stderr, "Warning: %s: %s\n", configPath, w)
	}

	closeLog, err := command.SetupLogging(*logFile, *logLevel, cfg, stderr)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, closeLog())
	}()

	registry := command.NewRegistry()
	registry.Register(command.NewHelpCommand(registry))
	registry.Register(command.NewVersionCommand(version))
	registry.Register(command.NewConfigCommand(cfg, configPath))
	registry.Register(command.NewInitCommand())
	registry.Register(command.NewQuickSaveCommand(cfg))
	registry.Register(command.NewSaveCommand(cfg))
	registry.Register(command.NewHistoryCommand(cfg))
	registry.Register(command.NewRenderCommand(cfg))

	return registry.Run(cmdArgs, stdout, stderr)
}
