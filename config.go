package main

import (
	"strconv"

	"github.com/AdguardTeam/golibs/log"
	"github.com/dustin/go-humanize"
)

// Config holds the resolved settings for one proxy process. Per the wire
// protocol contract, the only externally-supplied value is the listen port
// (the CLI's single positional argument); everything else is a fixed
// default, never environment-driven.
type Config struct {
	ListenAddr  string // raw proxy listener
	MetricsAddr string // side Prometheus listener

	UploadDir string
	FindDir   string
	FilesDir  string

	EnableCacheLogging bool
}

const (
	defaultPort        = 8080
	defaultMetricsAddr = ":9090"
)

// NewConfig builds a Config from the CLI port argument (already validated
// and defaulted by the caller).
func NewConfig(port int) Config {
	return Config{
		ListenAddr:         ":" + strconv.Itoa(port),
		MetricsAddr:        defaultMetricsAddr,
		UploadDir:          "./uploads",
		FindDir:            "./find",
		FilesDir:           "./files",
		EnableCacheLogging: true,
	}
}

// Print logs the resolved configuration once at startup, in the teacher's
// style of a human-readable settings dump.
func (c *Config) Print() {
	log.Info("Config:")
	log.Info("  ListenAddr: %s", c.ListenAddr)
	log.Info("  MetricsAddr: %s", c.MetricsAddr)
	log.Info("  UploadDir: %s", c.UploadDir)
	log.Info("  FindDir: %s", c.FindDir)
	log.Info("  FilesDir: %s", c.FilesDir)
	log.Info("  CacheEntryMaxSize: %s", humanize.IBytes(uint64(cacheEntryMaxSize)))
	log.Info("  CacheTotalMaxSize: %s", humanize.IBytes(uint64(cacheTotalMaxSize)))
	log.Info("  EnableCacheLogging: %t", c.EnableCacheLogging)
}
