package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mConnectionsAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cacheproxy_connections_accepted_total",
		Help: "Total number of client connections accepted by the listener.",
	})
	mConnectionsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cacheproxy_connections_rejected_total",
		Help: "Total number of client connections closed because acquiring an admission permit failed.",
	})

	mRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cacheproxy_requests_total",
		Help: "Total number of requests routed, by method.",
	}, []string{"method"})

	mCacheRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cacheproxy_cache_requests_total",
		Help: "Total number of GET requests that consulted the cache.",
	})
	mCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cacheproxy_cache_hits_total",
		Help: "Total number of cache hits.",
	})
	mCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cacheproxy_cache_misses_total",
		Help: "Total number of cache misses.",
	})
	mCacheEvictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cacheproxy_cache_evictions_total",
		Help: "Total number of LRU evictions performed.",
	})

	mBytesStreamedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cacheproxy_bytes_streamed_total",
		Help: "Total bytes streamed from origin servers to clients.",
	})
	mUploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cacheproxy_upload_bytes_total",
		Help: "Total bytes persisted via the upload/find endpoints.",
	})
	mDownloadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cacheproxy_download_bytes_total",
		Help: "Total bytes served via the download/find endpoints.",
	})
)
