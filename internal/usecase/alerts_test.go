package usecase

import (
	"fmt"
	"testing"
	"time"

	"LevelWatch/internal/domain/models"
)

func histAlert(i int, sym string, kind models.AlertKind) models.Alert {
	return models.Alert{
		ID:        fmt.Sprintf("a%d", i),
		Timestamp: time.Date(2024, 3, 12, 10, 0, i, 0, time.UTC),
		Symbol:    sym,
		Kind:      kind,
	}
}

func TestAlertHistoryNewestFirst(t *testing.T) {
	h := NewAlertHistory(8)
	for i := 0; i < 5; i++ {
		h.Add(histAlert(i, "AAPL", models.AlertForming))
	}

	got := h.Recent(3, "", "")
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].ID != "a4" || got[1].ID != "a3" || got[2].ID != "a2" {
		t.Fatalf("unexpected order %s %s %s", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestAlertHistoryEvictsOldest(t *testing.T) {
	h := NewAlertHistory(3)
	for i := 0; i < 5; i++ {
		h.Add(histAlert(i, "AAPL", models.AlertForming))
	}

	got := h.Recent(0, "", "")
	if len(got) != 3 {
		t.Fatalf("len = %d, want capacity 3", len(got))
	}
	if got[0].ID != "a4" || got[2].ID != "a2" {
		t.Fatalf("unexpected window %s..%s", got[0].ID, got[2].ID)
	}
}

func TestAlertHistoryFilters(t *testing.T) {
	h := NewAlertHistory(8)
	h.Add(histAlert(0, "AAPL", models.AlertForming))
	h.Add(histAlert(1, "MSFT", models.AlertEntry))
	h.Add(histAlert(2, "AAPL", models.AlertEntry))

	bySym := h.Recent(10, "AAPL", "")
	if len(bySym) != 2 || bySym[0].ID != "a2" || bySym[1].ID != "a0" {
		t.Fatalf("symbol filter returned %+v", bySym)
	}

	byKind := h.Recent(10, "", models.AlertEntry)
	if len(byKind) != 2 || byKind[0].ID != "a2" || byKind[1].ID != "a1" {
		t.Fatalf("kind filter returned %+v", byKind)
	}

	both := h.Recent(10, "MSFT", models.AlertEntry)
	if len(both) != 1 || both[0].ID != "a1" {
		t.Fatalf("combined filter returned %+v", both)
	}
}

func TestAlertHistoryEmpty(t *testing.T) {
	h := NewAlertHistory(4)
	if got := h.Recent(10, "", ""); len(got) != 0 {
		t.Fatalf("expected no alerts, got %d", len(got))
	}
}
