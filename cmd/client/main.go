package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"

	"github.com/bradmontgomery/zerochat/client"
	"github.com/bradmontgomery/zerochat/domain"
	"github.com/bradmontgomery/zerochat/logs"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "zerochat: %v\n", err)
	}
	os.Exit(code)
}

// run connects a session and drives it until Ctrl+C, end of input, or a
// transport failure. Logs go to a file only: stdout belongs to the
// chat.
func run() (int, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	flag.StringVar(&cfg.Username, "username", cfg.Username, "display name")
	flag.StringVar(&cfg.Channel, "channel", cfg.Channel, "channel to join")
	flag.StringVar(&cfg.Host, "host", cfg.Host, "server host")
	flag.IntVar(&cfg.PubPort, "pub-port", cfg.PubPort, "server's publish port")
	flag.IntVar(&cfg.SendPort, "send-port", cfg.SendPort, "server's receive port")
	flag.Parse()

	logFile, err := logs.OpenFile("client")
	if err != nil {
		return exitConfig, err
	}
	defer func() { _ = logFile.Close() }()
	log := logs.FromString(cfg.LogLevel, logFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, err := client.Connect(ctx, log, client.Config{
		Username: cfg.Username,
		Channel:  cfg.Channel,
		Host:     cfg.Host,
		PubPort:  cfg.PubPort,
		SendPort: cfg.SendPort,
	}, os.Stdin, os.Stdout)
	if err != nil {
		if errors.Is(err, domain.ErrInvalid) {
			return exitConfig, err
		}
		return exitRuntime, err
	}

	fmt.Printf("joined %s as %s (Ctrl+C to quit)\n", session.Channel(), session.Username())

	if err := session.Run(ctx); err != nil {
		return exitRuntime, err
	}
	return exitOK, nil
}
