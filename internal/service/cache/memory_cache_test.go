package cache

import (
	"testing"
	"time"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache()

	if err := c.SetBytes("snap", []byte(`{"bias":"BULLISH"}`), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	b, ok, err := c.GetBytes("snap")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if string(b) != `{"bias":"BULLISH"}` {
		t.Fatalf("value mangled: %s", b)
	}
}

func TestMemoryCacheMiss(t *testing.T) {
	c := NewMemoryCache()
	if _, ok, err := c.GetBytes("absent"); ok || err != nil {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	if err := c.SetBytes("snap", []byte("x"), 10*time.Millisecond); err != nil {
		t.Fatalf("set: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if _, ok, _ := c.GetBytes("snap"); ok {
		t.Fatalf("entry should have expired")
	}
}
