package httpapi

import (
	"net/http"
	"strings"

	"github.com/denismitr/lemonrest"
	"github.com/denismitr/lemonrest/internal/metrics"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const DefaultResource = "items"
const DefaultMaxBodyBytes int64 = 1 << 20

type Options struct {
	// BasePath prefixes the resource routes, e.g. /api/v1.
	BasePath string
	// Resource is the collection segment of the routes, items by default.
	Resource     string
	MaxBodyBytes int64
	// RateLimit is requests per second per client address; zero disables it.
	RateLimit float64
	RateBurst int
	Logger    *zap.Logger
	// Metrics, when set, instruments every route and serves /metrics.
	Metrics *metrics.Collector
}

// NewRouter exposes the collection over http.
func NewRouter(c *lemonrest.Collection, opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	resource := strings.Trim(opts.Resource, "/")
	if resource == "" {
		resource = DefaultResource
	}

	h := &handler{c: c, log: opts.Logger, maxBodyBytes: opts.MaxBodyBytes}

	r := mux.NewRouter()
	if opts.Metrics != nil {
		r.Use(metricsMiddleware(opts.Metrics))
	}
	r.Use(recoverMiddleware(opts.Logger))
	if opts.RateLimit > 0 {
		r.Use(newRateLimiter(opts.RateLimit, opts.RateBurst, opts.Logger).middleware)
	}

	r.HandleFunc("/healthz", h.health).Methods(http.MethodGet)
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler()).Methods(http.MethodGet)
	}

	api := r
	if base := "/" + strings.Trim(opts.BasePath, "/"); base != "/" {
		api = r.PathPrefix(base).Subrouter()
	}

	collection := "/" + resource
	single := collection + "/{id}"

	api.HandleFunc(collection, h.list).Methods(http.MethodGet)
	api.HandleFunc(collection, h.create).Methods(http.MethodPost)
	api.HandleFunc(single, h.get).Methods(http.MethodGet)
	api.HandleFunc(single, h.merge).Methods(http.MethodPut, http.MethodPatch)
	api.HandleFunc(single, h.remove).Methods(http.MethodDelete)

	var notFound http.Handler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		h.fail(w, req, errors.Wrap(errRouteNotFound, req.URL.Path))
	})
	var notAllowed http.Handler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		h.fail(w, req, errors.Wrap(errMethodNotAllowed, req.Method))
	})
	if opts.Metrics != nil {
		notFound = metricsMiddleware(opts.Metrics)(notFound)
		notAllowed = metricsMiddleware(opts.Metrics)(notAllowed)
	}
	r.NotFoundHandler = notFound
	r.MethodNotAllowedHandler = notAllowed

	return loggingMiddleware(opts.Logger)(r)
}
