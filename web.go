/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/riddhimajain08/Codechef/rajamantri"
)

const (
	logDate string        = `2006-01-02T15:04:05.000-07:00`
	timeout time.Duration = 10 * time.Second
)

func securityHeaders(cfg *Config, w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
	w.Header().Set("Permissions-Policy", "geolocation=(), midi=(), sync-xhr=(), microphone=(), camera=(), magnetometer=(), gyroscope=(), fullscreen=(), payment=()")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

	if cfg.scheme() == "https" {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
	}
}

func realIP(r *http.Request) string {
	host, port, _ := net.SplitHostPort(r.RemoteAddr)
	if ip := r.Header.Get("CF-Connecting-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	} else if ip := r.Header.Get("X-Real-IP"); ip != "" {
		if net.ParseIP(ip) != nil {
			host = ip
		}
	}
	if net.ParseIP(host) != nil && strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return host + ":" + port
	}
	return host
}

// clientHost identifies a client for per-client limits. Forwarding headers
// are client-controlled, so they only count behind a trusted proxy.
func clientHost(cfg *Config, r *http.Request) string {
	addr := r.RemoteAddr
	if cfg.trustProxy {
		addr = realIP(r)
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return strings.Trim(host, "[]")
	}
	return strings.Trim(addr, "[]")
}

// newRouter wires every route onto a fresh router.
func newRouter(cfg *Config, engine *rajamantri.Engine, hub *Broadcaster, limiter *ipLimiter, errs chan<- error) *httprouter.Router {
	mux := httprouter.New()

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		cfg.logger.Error().Interface("panic", i).Str("path", r.URL.Path).Msg("handler panicked")

		writeJSON(cfg, w, http.StatusInternalServerError, errorResponse{
			Kind:  "internal",
			Error: "An error has occurred. Please try again.",
		})
	}

	mux.GlobalOPTIONS = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Access-Control-Request-Method") != "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", w.Header().Get("Allow"))
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.GET(cfg.prefix+"/healthz", serveHealthCheck(cfg, errs))

	mux.GET(cfg.prefix+"/robots.txt", serveRobots(cfg, errs))

	mux.GET(cfg.prefix+"/version", serveVersion(cfg, errs))

	if cfg.profile {
		registerProfileHandlers(cfg, mux)
	}

	registerRajaMantriGame(cfg, mux, engine, hub, limiter, errs)

	return mux
}

func ServePage(ctx context.Context, cfg *Config, args []string) error {
	var err error

	timeZone := os.Getenv("TZ")
	if timeZone != "" {
		time.Local, err = time.LoadLocation(timeZone)
		if err != nil {
			return err
		}
	}

	logf(cfg, "START: rajamantri v%s", releaseVersion)

	cfg.prefix = strings.TrimSuffix(cfg.prefix, "/")

	hub := newBroadcaster(cfg)
	engine := rajamantri.NewEngine(
		rajamantri.NewRegistry(cfg.rounds, cfg.logger),
		rajamantri.WithSeed(cfg.seed),
		rajamantri.WithNotifier(hub),
		rajamantri.WithLogger(cfg.logger),
	)
	limiter := newIPLimiter(cfg.rateLimit, cfg.rateBurst)

	errs := make(chan error, 64)

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler:           newRouter(cfg, engine, hub, limiter, errs),
		IdleTimeout:       10 * time.Minute,
		ReadTimeout:       timeout,
		ReadHeaderTimeout: timeout,
	}

	go drainErrors(ctx, cfg, errs)

	go reapLoop(ctx, cfg, engine.Registry(), hub, limiter)

	go func() {
		var err error
		logf(cfg, "SERVE: Listening on %s://%s%s/", cfg.scheme(), srv.Addr, cfg.prefix)
		if cfg.tlsKey != "" && cfg.tlsCert != "" {
			err = srv.ListenAndServeTLS(cfg.tlsCert, cfg.tlsKey)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			cfg.logger.Error().Err(err).Msg("server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	hub.closeAll()
	_ = srv.Shutdown(shutdownCtx)

	logf(cfg, "STOP: rajamantri v%s", releaseVersion)

	return nil
}

func drainErrors(ctx context.Context, cfg *Config, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errs:
			cfg.logger.Warn().Err(err).Msg("writing response")
		}
	}
}

// reapLoop periodically removes rooms that have been idle longer than the
// session timeout and disconnects their clients.
func reapLoop(ctx context.Context, cfg *Config, reg *rajamantri.Registry, hub *Broadcaster, limiter *ipLimiter) {
	interval := time.Minute
	if cfg.sessionTimeout > 0 && cfg.sessionTimeout/2 < interval {
		interval = cfg.sessionTimeout / 2
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if cfg.sessionTimeout > 0 {
				for _, id := range reg.Reap(now.Add(-cfg.sessionTimeout)) {
					hub.closeRoom(id)
					logf(cfg, "GAMES: Removed idle room %s", id)
				}
			}
			limiter.prune(now.Add(-10 * time.Minute))
		}
	}
}
