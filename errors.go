/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"

	"github.com/riddhimajain08/Codechef/rajamantri"
	"github.com/rs/zerolog"
)

func newLogger(cfg *Config, w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}

	level := zerolog.WarnLevel
	if cfg.verbose {
		level = zerolog.InfoLevel
	}

	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: logDate}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	cfg.logger.Info().Msgf(format, args...)
}

type errorResponse struct {
	Success bool   `json:"success"`
	Kind    string `json:"kind"`
	Error   string `json:"error"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, rajamantri.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, rajamantri.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, rajamantri.ErrCapacity), errors.Is(err, rajamantri.ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, rajamantri.ErrState):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError reports err to the client as {success, kind, error}. Anything
// the game did not produce is hidden behind a generic message.
func writeError(cfg *Config, w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)

	msg := err.Error()
	if status == http.StatusInternalServerError {
		cfg.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		msg = "An error has occurred. Please try again."
	} else {
		logf(cfg, "ERROR: %s %s from %s: %v", r.Method, r.URL.Path, realIP(r), err)
	}

	writeJSON(cfg, w, status, errorResponse{
		Success: false,
		Kind:    rajamantri.Kind(err),
		Error:   msg,
	})
}

func writeJSON(cfg *Config, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		cfg.logger.Warn().Err(err).Msg("writing response")
	}
}
