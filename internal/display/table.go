// Package display renders the tracked aircraft as a console table.
package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/unklstewy/ads-btrack/pkg/adsb"
	"github.com/unklstewy/ads-btrack/pkg/coordinates"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("51"))
	icaoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	noFixStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	staleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
)

// StaleAge is the silence after which a row is highlighted.
const StaleAge = 30 * time.Second

// Row is one formatted table line before styling.
type Row struct {
	ICAO     string
	Lat      string
	Lon      string
	Alt      string
	Range    string
	Bearing  string
	Messages string
	Seen     string

	hasFix bool
	stale  bool
}

// Rows formats the aircraft without styling. Range and bearing are filled
// only when site is known and the aircraft has a position.
func Rows(aircraft []adsb.Aircraft, now time.Time, site *coordinates.Geographic) []Row {
	rows := make([]Row, 0, len(aircraft))
	for _, ac := range aircraft {
		r := Row{
			ICAO:     ac.ICAO.String(),
			Lat:      "-",
			Lon:      "-",
			Alt:      "-",
			Range:    "-",
			Bearing:  "-",
			Messages: humanize.Comma(ac.Messages),
			Seen:     humanize.RelTime(ac.LastSeen, now, "ago", "from now"),
			stale:    now.Sub(ac.LastSeen) > StaleAge,
		}
		if ac.HasAltitude {
			r.Alt = humanize.Comma(int64(ac.Altitude)) + " ft"
		}
		if ac.Position != nil {
			r.hasFix = true
			r.Lat = fmt.Sprintf("%.4f", ac.Position.Latitude)
			r.Lon = fmt.Sprintf("%.4f", ac.Position.Longitude)
			if site != nil {
				look := coordinates.Look(*site, lookTarget(*ac.Position, *site))
				r.Range = fmt.Sprintf("%.1f nm", look.RangeNM)
				r.Bearing = fmt.Sprintf("%03.0f°", look.Azimuth)
			}
		}
		rows = append(rows, r)
	}
	return rows
}

// lookTarget converts a fix to the geographic point Look expects. A fix
// without altitude is placed at the site elevation.
func lookTarget(pos adsb.Position, site coordinates.Geographic) coordinates.Geographic {
	target := coordinates.Geographic{
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
		Altitude:  site.Altitude,
	}
	if pos.HasAltitude {
		target.Altitude = float64(pos.Altitude) * coordinates.FeetToMeters
	}
	return target
}

// Table renders the aircraft list as a text table.
func Table(aircraft []adsb.Aircraft, now time.Time, site *coordinates.Geographic) string {
	const format = "%-6s  %9s  %10s  %9s  %9s  %4s  %7s  %s"

	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf(format,
		"ICAO", "LAT", "LON", "ALT", "RANGE", "BRG", "MSGS", "SEEN")))
	b.WriteByte('\n')

	positioned := 0
	for _, r := range Rows(aircraft, now, site) {
		line := fmt.Sprintf(format, r.ICAO, r.Lat, r.Lon, r.Alt, r.Range, r.Bearing, r.Messages, r.Seen)
		style := icaoStyle
		switch {
		case r.stale:
			style = staleStyle
		case !r.hasFix:
			style = noFixStyle
		}
		if r.hasFix {
			positioned++
		}
		b.WriteString(style.Render(line))
		b.WriteByte('\n')
	}

	b.WriteString(footerStyle.Render(fmt.Sprintf("%d aircraft, %d with position", len(aircraft), positioned)))
	b.WriteByte('\n')
	return b.String()
}
