package usecase

import (
	"sync"

	"LevelWatch/internal/domain/models"
)

// AlertHistory is a bounded, newest-first ring of recent alerts backing
// the alerts API. Oldest entries fall off once the capacity is reached.
type AlertHistory struct {
	mu   sync.RWMutex
	buf  []models.Alert
	next int
	full bool
}

// NewAlertHistory creates a history holding up to capacity alerts.
func NewAlertHistory(capacity int) *AlertHistory {
	if capacity <= 0 {
		capacity = 256
	}
	return &AlertHistory{buf: make([]models.Alert, capacity)}
}

// Add appends one alert, evicting the oldest when full.
func (h *AlertHistory) Add(a models.Alert) {
	h.mu.Lock()
	h.buf[h.next] = a
	h.next = (h.next + 1) % len(h.buf)
	if h.next == 0 {
		h.full = true
	}
	h.mu.Unlock()
}

// Recent returns up to limit alerts, newest first, optionally filtered by
// symbol and kind (empty string matches all).
func (h *AlertHistory) Recent(limit int, symbol string, kind models.AlertKind) []models.Alert {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := h.next
	if h.full {
		n = len(h.buf)
	}
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]models.Alert, 0, limit)
	for i := 1; i <= n && len(out) < limit; i++ {
		idx := (h.next - i + len(h.buf)) % len(h.buf)
		a := h.buf[idx]
		if symbol != "" && a.Symbol != symbol {
			continue
		}
		if kind != "" && a.Kind != kind {
			continue
		}
		out = append(out, a)
	}
	return out
}
