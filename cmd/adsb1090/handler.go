package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/unklstewy/ads-btrack/internal/display"
	"github.com/unklstewy/ads-btrack/internal/metrics"
	"github.com/unklstewy/ads-btrack/pkg/adsb"
	"github.com/unklstewy/ads-btrack/pkg/coordinates"
	"github.com/unklstewy/ads-btrack/pkg/modes"
	"github.com/unklstewy/ads-btrack/pkg/tracker"
)

// frameHandler processes one feed line at a time: echo, decode, track,
// prune and render. It is called from the receiver goroutine only.
type frameHandler struct {
	out     io.Writer
	decoder *modes.Decoder
	tracker *tracker.Tracker
	metrics *metrics.Metrics
	site    *coordinates.Geographic
	logger  *slog.Logger
	now     func() time.Time

	// onEvict receives every batch removed by the per-line prune; it is the
	// same hook the sweeper calls.
	onEvict func([]adsb.Identity)

	debug     bool
	airplanes bool
	strict    bool
	quiet     bool

	refresh *rate.Limiter
	warn    rate.Sometimes
}

func (h *frameHandler) handle(line string) error {
	h.metrics.FeedLine()
	now := h.now()

	frame, err := modes.ParseLine(line)
	if err != nil {
		return h.decodeError(line, err)
	}
	if !h.quiet {
		fmt.Fprintln(h.out, hex.EncodeToString(frame))
	}

	msg, err := h.decoder.Decode(frame)
	if err != nil {
		return h.decodeError(line, err)
	}
	h.metrics.Message(msg)

	if h.debug {
		fmt.Fprintf(h.out, "%+v\n", msg)
	}
	if !h.quiet {
		fmt.Fprintln(h.out, msg)
	}

	before := h.tracker.Positions()
	h.tracker.Handle(msg, now)
	if h.tracker.Positions() > before {
		h.metrics.Position()
	}

	store := h.tracker.Store()
	if evicted := store.Prune(now); len(evicted) > 0 && h.onEvict != nil {
		h.onEvict(evicted)
	}

	if h.airplanes && h.refresh.Allow() {
		fmt.Fprint(h.out, display.Table(store.Aircraft(), now, h.site))
	}
	return nil
}

// decodeError counts a rejected frame. In strict mode it stops the run;
// replies from unknown addresses and ignored formats never do.
func (h *frameHandler) decodeError(line string, err error) error {
	h.metrics.DecodeError(err)

	if errors.Is(err, modes.ErrUnknownAddress) || errors.Is(err, modes.ErrUnsupportedDF) {
		return nil
	}
	if h.strict {
		return fmt.Errorf("decode %q: %w", line, err)
	}

	h.warn.Do(func() {
		h.logger.Warn("dropping frame", "line", line, "error", err)
	})
	return nil
}
