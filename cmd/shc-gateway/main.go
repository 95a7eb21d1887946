// Command shc-gateway bridges a Bosch Smart Home Controller to the local
// machine: it pairs with the controller, mirrors its rooms and devices and
// streams channel updates to the console and, optionally, to a binary
// capture file.
//
// Usage:
//
//	shc-gateway [flags]
//
// Flags:
//
//	-config string      Configuration file path (YAML)
//	-ip string          Controller IP address (overrides config)
//	-password string    System password for first-time pairing
//	-data-dir string    Directory for credentials and pinned certificates
//	-log-level string   Log level: debug, info, warn, error
//	-capture string     Binary event capture file path
//	-discover           Locate the controller via mDNS when no IP is set
//
// Examples:
//
//	# First run: pair with the controller
//	shc-gateway -ip 192.168.1.2 -password "my-system-password"
//
//	# Subsequent runs reuse the stored credential
//	shc-gateway -ip 192.168.1.2
//
//	# Let mDNS find the controller
//	shc-gateway -discover -password "my-system-password"
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/shc-gateway/shc-go/pkg/bridge"
	"github.com/shc-gateway/shc-go/pkg/cert"
	"github.com/shc-gateway/shc-go/pkg/config"
	"github.com/shc-gateway/shc-go/pkg/discovery"
	"github.com/shc-gateway/shc-go/pkg/log"
	"github.com/shc-gateway/shc-go/pkg/services"
)

var flags struct {
	configFile string
	ip         string
	password   string
	dataDir    string
	logLevel   string
	capture    string
	discover   bool
}

func init() {
	flag.StringVar(&flags.configFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&flags.ip, "ip", "", "Controller IP address (overrides config)")
	flag.StringVar(&flags.password, "password", "", "System password for first-time pairing")
	flag.StringVar(&flags.dataDir, "data-dir", "", "Directory for credentials and pinned certificates")
	flag.StringVar(&flags.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&flags.capture, "capture", "", "Binary event capture file path")
	flag.BoolVar(&flags.discover, "discover", false, "Locate the controller via mDNS when no IP is set")
}

func main() {
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "shc-gateway: %v\n", err)
		os.Exit(1)
	}

	console := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(parseLevel(cfg.Logging.Level)).
		With().Timestamp().Logger()

	logger, closeCapture, err := buildLogger(console, cfg.Logging.CaptureFile)
	if err != nil {
		console.Fatal().Err(err).Msg("opening capture file")
	}
	defer closeCapture()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	host := cfg.Controller.IPAddress
	if host == "" {
		host, err = discoverController(ctx, cfg, logger)
		if err != nil {
			console.Fatal().Err(err).Msg("controller discovery failed")
		}
		console.Info().Str("ip", host).Msg("controller discovered")
	}

	b, err := bridge.New(bridge.Config{
		Host:           host,
		SystemPassword: cfg.Controller.SystemPassword,
		ControllerID:   cfg.Controller.ID,
		Store:          cert.NewFileStore(cfg.Storage.DataDir),
		Sink: func(deviceID string, update services.Update) {
			entry := console.Info().
				Str("device", deviceID).
				Str("channel", update.Channel).
				Any("value", update.Value)
			if update.Unit != "" {
				entry = entry.Str("unit", string(update.Unit))
			}
			entry.Msg("update")
		},
		Logger:               logger,
		PollWaitSeconds:      cfg.Poll.TimeoutSeconds,
		PollRetryDelay:       cfg.RetryDelay(),
		PollResubscribeDelay: cfg.ResubscribeDelay(),
	})
	if err != nil {
		console.Fatal().Err(err).Msg("creating bridge")
	}

	if err := b.Initialize(ctx); err != nil {
		console.Fatal().Err(err).Msg("starting bridge")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	console.Info().Str("signal", sig.String()).Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	b.Dispose(shutdownCtx)
}

// loadConfig layers flag overrides on top of the file or environment
// configuration.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if flags.configFile != "" {
		loaded, err := config.Load(flags.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.FromEnv()
	}

	if flags.ip != "" {
		cfg.Controller.IPAddress = flags.ip
	}
	if flags.password != "" {
		cfg.Controller.SystemPassword = flags.password
	}
	if flags.dataDir != "" {
		cfg.Storage.DataDir = flags.dataDir
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.capture != "" {
		cfg.Logging.CaptureFile = flags.capture
	}
	if flags.discover {
		cfg.Discovery.Enabled = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildLogger combines the console adapter with an optional binary capture
// file.
func buildLogger(console zerolog.Logger, captureFile string) (log.Logger, func(), error) {
	adapter := log.NewZerologAdapter(console)
	if captureFile == "" {
		return adapter, func() {}, nil
	}

	capture, err := log.NewFileLogger(captureFile)
	if err != nil {
		return nil, nil, err
	}
	return log.NewMultiLogger(adapter, capture), func() { capture.Close() }, nil
}

func discoverController(ctx context.Context, cfg *config.Config, logger log.Logger) (string, error) {
	browser := discovery.NewBrowser(discovery.Config{
		Timeout: cfg.DiscoveryTimeout(),
		Logger:  logger,
	})
	controller, err := browser.FindFirst(ctx)
	if err != nil {
		return "", err
	}
	return controller.IPAddress, nil
}

func parseLevel(s string) zerolog.Level {
	switch s {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
