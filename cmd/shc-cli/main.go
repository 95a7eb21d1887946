// Command shc-cli is an interactive shell for a Bosch Smart Home
// Controller: it pairs, lists rooms and devices, sends channel commands
// and prints updates as they arrive.
//
// Usage:
//
//	shc-cli [flags]
//
// Flags:
//
//	-ip string          Controller IP address
//	-password string    System password for first-time pairing
//	-data-dir string    Directory for credentials and pinned certificates
//	-log-level string   Log level: debug, info, warn, error
//	-discover           Locate the controller via mDNS when no IP is set
//
// Examples:
//
//	# Pair and explore
//	shc-cli -ip 192.168.1.2 -password "my-system-password"
//
//	# Subsequent sessions
//	shc-cli -ip 192.168.1.2
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/shc-gateway/shc-go/cmd/shc-cli/interactive"
	"github.com/shc-gateway/shc-go/pkg/bridge"
	"github.com/shc-gateway/shc-go/pkg/cert"
	"github.com/shc-gateway/shc-go/pkg/config"
	"github.com/shc-gateway/shc-go/pkg/discovery"
	"github.com/shc-gateway/shc-go/pkg/log"
	"github.com/shc-gateway/shc-go/pkg/services"
)

var flags struct {
	ip       string
	password string
	dataDir  string
	logLevel string
	discover bool
}

func init() {
	flag.StringVar(&flags.ip, "ip", "", "Controller IP address")
	flag.StringVar(&flags.password, "password", "", "System password for first-time pairing")
	flag.StringVar(&flags.dataDir, "data-dir", "", "Directory for credentials and pinned certificates")
	flag.StringVar(&flags.logLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	flag.BoolVar(&flags.discover, "discover", false, "Locate the controller via mDNS when no IP is set")
}

func main() {
	flag.Parse()

	cfg := config.FromEnv()
	if flags.ip != "" {
		cfg.Controller.IPAddress = flags.ip
	}
	if flags.password != "" {
		cfg.Controller.SystemPassword = flags.password
	}
	if flags.dataDir != "" {
		cfg.Storage.DataDir = flags.dataDir
	}
	if flags.discover {
		cfg.Discovery.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "shc-cli: %v\n", err)
		os.Exit(1)
	}

	console := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(parseLevel(flags.logLevel)).
		With().Timestamp().Logger()
	logger := log.NewZerologAdapter(console)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	host := cfg.Controller.IPAddress
	if host == "" {
		browser := discovery.NewBrowser(discovery.Config{Timeout: cfg.DiscoveryTimeout(), Logger: logger})
		controller, err := browser.FindFirst(ctx)
		if err != nil {
			console.Fatal().Err(err).Msg("controller discovery failed")
		}
		host = controller.IPAddress
		fmt.Printf("Controller discovered at %s\n", host)
	}

	// The sink's output writer is swapped to the readline stdout once the
	// shell exists.
	var shell *interactive.Shell
	b, err := bridge.New(bridge.Config{
		Host:           host,
		SystemPassword: cfg.Controller.SystemPassword,
		ControllerID:   cfg.Controller.ID,
		Store:          cert.NewFileStore(cfg.Storage.DataDir),
		Sink: func(deviceID string, update services.Update) {
			if shell == nil {
				return
			}
			if update.Unit != "" {
				fmt.Fprintf(shell.Stdout(), "[update] %s %s = %v %s\n",
					deviceID, update.Channel, update.Value, update.Unit)
				return
			}
			fmt.Fprintf(shell.Stdout(), "[update] %s %s = %v\n",
				deviceID, update.Channel, update.Value)
		},
		Logger: logger,
	})
	if err != nil {
		console.Fatal().Err(err).Msg("creating bridge")
	}

	shell, err = interactive.New(b)
	if err != nil {
		console.Fatal().Err(err).Msg("creating shell")
	}

	if err := b.Initialize(ctx); err != nil {
		console.Fatal().Err(err).Msg("starting bridge")
	}

	shell.Run(ctx, cancel)
	b.Dispose(context.Background())
}

func parseLevel(s string) zerolog.Level {
	switch s {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.WarnLevel
	}
}
