package connectivity

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"
)

// Mode selects where the online signal comes from.
type Mode string

const (
	// ModeAuto derives the signal from host network interfaces.
	ModeAuto Mode = "auto"
	// ModeOnline pins the monitor online.
	ModeOnline Mode = "online"
	// ModeOffline pins the monitor offline; every submission is queued.
	ModeOffline Mode = "offline"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModeAuto, ModeOnline, ModeOffline:
		return m, nil
	case "":
		return ModeAuto, nil
	default:
		return "", fmt.Errorf("unknown connectivity mode %q (want auto, online or offline)", s)
	}
}

// Probe reports whether the host currently looks connected.
type Probe func() (bool, error)

// InterfaceProbe reports online when at least one interface is up, is not a
// loopback and carries a global unicast address.
func InterfaceProbe() (bool, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false, fmt.Errorf("list interfaces: %w", err)
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipnet, ok := addr.(*net.IPNet)
			if ok && ipnet.IP.IsGlobalUnicast() {
				return true, nil
			}
		}
	}
	return false, nil
}

// Watcher polls a Probe and feeds the result into a Monitor.
type Watcher struct {
	monitor  *Monitor
	probe    Probe
	interval time.Duration
	logger   zerolog.Logger
}

// NewWatcher creates a watcher. A non-positive interval defaults to 2s.
func NewWatcher(m *Monitor, probe Probe, interval time.Duration, logger zerolog.Logger) *Watcher {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Watcher{
		monitor:  m,
		probe:    probe,
		interval: interval,
		logger:   logger,
	}
}

// Check runs the probe once and updates the monitor.
// A probe error counts as offline.
func (w *Watcher) Check() {
	online, err := w.probe()
	if err != nil {
		w.logger.Warn().Err(err).Msg("connectivity probe failed")
		online = false
	}
	w.monitor.Set(online)
}

// Run checks immediately and then on every tick until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.Check()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Check()
		}
	}
}
