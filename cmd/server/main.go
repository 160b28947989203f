package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	gometrics "github.com/rcrowley/go-metrics"

	"github.com/bradmontgomery/zerochat/logs"
	"github.com/bradmontgomery/zerochat/relay"
	"github.com/bradmontgomery/zerochat/transport"
)

// Exit codes to provide meaningful status to the operating system or a
// service manager.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "zerochat-server: %v\n", err)
	}
	os.Exit(code)
}

// run binds both transport ports and drives the relay loop until a
// termination signal or a transport failure. Keeping the logic out of
// main ensures the deferred cleanup always executes.
func run() (int, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	flag.StringVar(&cfg.Host, "host", cfg.Host, "address to listen on")
	flag.IntVar(&cfg.PubPort, "pub-port", cfg.PubPort, "port messages are published on")
	flag.IntVar(&cfg.RecvPort, "recv-port", cfg.RecvPort, "port messages are received on")
	verbose := flag.Bool("verbose", false, "echo logs to stderr")
	flag.Parse()

	logFile, err := logs.OpenFile("server")
	if err != nil {
		return exitConfig, err
	}
	defer func() { _ = logFile.Close() }()

	var logOut io.Writer = logFile
	if *verbose {
		logOut = io.MultiWriter(logFile, os.Stderr)
	}
	log := logs.FromString(cfg.LogLevel, logOut)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := transport.Listen(log, transport.ServerConfig{
		Host:     cfg.Host,
		PubPort:  cfg.PubPort,
		RecvPort: cfg.RecvPort,
	})
	if err != nil {
		return exitRuntime, err
	}
	defer func() {
		log.Info("closing transport...")
		_ = srv.Close()
	}()

	fmt.Printf("zerochat server running:\n - receiving on %s\n - publishing on %s\n",
		srv.RecvAddr(), srv.PubAddr())

	registry := gometrics.NewRegistry()
	runErr := relay.New(log, srv.Collector(), srv.Broadcaster(), registry).Run(ctx)

	// One JSON snapshot of the relay counters on the way out.
	gometrics.WriteJSONOnce(registry, logFile)

	if runErr != nil {
		return exitRuntime, runErr
	}
	return exitOK, nil
}
