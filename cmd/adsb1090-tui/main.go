package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/ads-btrack/internal/display"
	"github.com/unklstewy/ads-btrack/internal/logging"
	"github.com/unklstewy/ads-btrack/pkg/adsb"
	"github.com/unklstewy/ads-btrack/pkg/config"
	"github.com/unklstewy/ads-btrack/pkg/coordinates"
	"github.com/unklstewy/ads-btrack/pkg/modes"
	"github.com/unklstewy/ads-btrack/pkg/receiver"
	"github.com/unklstewy/ads-btrack/pkg/tracker"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("51"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

type model struct {
	store    *tracker.Store
	client   *receiver.Client
	site     *coordinates.Geographic
	feed     string
	now      time.Time
	interval time.Duration

	positionedOnly bool
	err            error
}

type tickMsg time.Time

// feedErrMsg reports that the receiver stopped.
type feedErrMsg struct{ err error }

func tick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tick(m.interval)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "p":
			m.positionedOnly = !m.positionedOnly
		case "esc":
			m.err = nil
		}
	case tickMsg:
		m.now = time.Time(msg)
		return m, tick(m.interval)
	case feedErrMsg:
		m.err = msg.err
	}
	return m, nil
}

func (m model) aircraft() []adsb.Aircraft {
	all := m.store.Aircraft()
	if !m.positionedOnly {
		return all
	}
	filtered := all[:0]
	for _, ac := range all {
		if ac.Position != nil {
			filtered = append(filtered, ac)
		}
	}
	return filtered
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("ADS-B 1090 MHz · " + m.feed))
	b.WriteString("\n\n")
	b.WriteString(display.Table(m.aircraft(), m.now, m.site))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render("Feed stopped: " + m.err.Error()))
		b.WriteString("\n")
	}

	filter := "all"
	if m.positionedOnly {
		filter = "positioned"
	}
	b.WriteString(statusStyle.Render(fmt.Sprintf(
		"%d lines, %d connections · showing %s · p: filter  q: quit",
		m.client.Lines(), m.client.Connections(), filter)))
	return b.String()
}

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	host := flag.String("host", "", "Host of the raw feed (default from config: localhost)")
	port := flag.Int("port", 0, "Port of the raw feed (default from config: 30002)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *host != "" {
		cfg.Receiver.Host = *host
	}
	if *port != 0 {
		cfg.Receiver.Port = *port
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// stderr belongs to the TUI
	cfg.Log.Stderr = false
	logger, err := logging.New(cfg.Log, nil)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logger.Close()

	store := tracker.New(tracker.Options{
		MaxPairAge: cfg.Tracker.MaxPairAge(),
		StaleAfter: cfg.Tracker.StaleAfter(),
	})
	trk := tracker.NewTracker(store)
	decoder := modes.NewDecoder(modes.DecoderOptions{})

	client := receiver.NewClient(cfg.Receiver.Host, cfg.Receiver.Port)
	client.Logger = logger.Slog()
	client.Retry = receiver.DefaultRetryConfig()
	client.Retry.MaxRetries = cfg.Receiver.MaxRetries

	var site *coordinates.Geographic
	if cfg.Site.Enabled {
		site = &coordinates.Geographic{
			Latitude:  cfg.Site.Latitude,
			Longitude: cfg.Site.Longitude,
			Altitude:  cfg.Site.Elevation,
		}
	}

	interval := time.Second
	if cfg.Display.RefreshPerSecond > 0 {
		interval = time.Duration(float64(time.Second) / cfg.Display.RefreshPerSecond)
	}

	m := model{
		store:    store,
		client:   client,
		site:     site,
		feed:     client.Addr,
		now:      time.Now(),
		interval: interval,
	}

	logger.Infof("tracking feed %s", client.Addr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := tea.NewProgram(m, tea.WithAltScreen())

	sweeper := tracker.NewSweeper(store, cfg.Tracker.SweepInterval(), cfg.Tracker.StaleAfter(),
		tracker.WithLogger(logger.Slog()))
	go sweeper.Run(ctx)

	go func() {
		err := client.Run(ctx, func(line string) error {
			frame, err := modes.ParseLine(line)
			if err != nil {
				return nil
			}
			msg, err := decoder.Decode(frame)
			if err != nil {
				return nil
			}
			trk.Handle(msg, time.Now())
			return nil
		})
		if err != nil {
			logger.Warnf("feed stopped: %v", err)
			p.Send(feedErrMsg{err})
		}
	}()

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
