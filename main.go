package main

import (
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/AdguardTeam/golibs/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// parsePort validates the CLI's single positional port argument, defaulting
// to 8080 when it is missing or out of the [1, 65535] range.
func parsePort(args []string) int {
	if len(args) != 2 {
		return defaultPort
	}
	port, err := strconv.Atoi(args[1])
	if err != nil || port <= 0 || port > 65535 {
		log.Info("invalid port argument %q, using default %d", args[1], defaultPort)
		return defaultPort
	}
	return port
}

func main() {
	log.Info("Starting caching forward proxy...")

	port := parsePort(os.Args)
	config := NewConfig(port)
	config.Print()

	cache := NewCache(config.EnableCacheLogging)
	server := NewConnectionServer(config, cache)

	go func() {
		log.Info("metrics listening on %s", config.MetricsAddr)
		if err := http.ListenAndServe(config.MetricsAddr, promhttp.Handler()); err != nil {
			log.Error("metrics listener stopped: %v", err)
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.ListenAndServe()
	}()

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		log.Fatal(err)
	case <-signalChannel:
		log.Info("shutting down")
	}
}
