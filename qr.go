/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/riddhimajain08/Codechef/rajamantri"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

// roomURL is the link a phone lands on after scanning a room's code.
func roomURL(cfg *Config, r *http.Request, roomID string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if cfg.trustProxy {
		switch proto := strings.ToLower(r.Header.Get("X-Forwarded-Proto")); proto {
		case "http", "https":
			scheme = proto
		}
	}

	return scheme + "://" + r.Host + cfg.prefix + "/?room=" + url.QueryEscape(roomID)
}

// serveRoomQR renders a PNG QR code that shares a room.
func serveRoomQR(cfg *Config, engine *rajamantri.Engine, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		roomID := ps.ByName("roomId")

		if _, err := engine.Registry().Membership(roomID); err != nil {
			writeError(cfg, w, r, err)
			return
		}

		png, err := qrcode.Encode(roomURL(cfg, r, roomID), qrcode.Medium, qrSize)
		if err != nil {
			writeError(cfg, w, r, err)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(png)))
		w.Header().Set("Cache-Control", "no-store")
		securityHeaders(cfg, w)

		written, err := w.Write(png)
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: QR code for %s (%d B) to %s in %s",
			roomID,
			written,
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}
