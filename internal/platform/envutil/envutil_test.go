package envutil

import (
	"testing"
	"time"
)

func TestDuration(t *testing.T) {
	t.Setenv("RECONCILE_INTERVAL", "90s")
	if got := Duration("RECONCILE_INTERVAL", time.Minute); got != 90*time.Second {
		t.Fatalf("Duration: want=%v got=%v", 90*time.Second, got)
	}
	t.Setenv("RECONCILE_INTERVAL", "45")
	if got := Duration("RECONCILE_INTERVAL", time.Minute); got != 45*time.Second {
		t.Fatalf("Duration seconds: want=%v got=%v", 45*time.Second, got)
	}
	t.Setenv("RECONCILE_INTERVAL", "soon")
	if got := Duration("RECONCILE_INTERVAL", time.Minute); got != time.Minute {
		t.Fatalf("Duration fallback: want=%v got=%v", time.Minute, got)
	}
}

func TestBoolAndInt(t *testing.T) {
	t.Setenv("TILE_S3_PATH_STYLE", "on")
	if !Bool("TILE_S3_PATH_STYLE", false) {
		t.Fatalf("Bool: want=true")
	}
	t.Setenv("TILE_WORKERS", "x")
	if got := Int("TILE_WORKERS", 4); got != 4 {
		t.Fatalf("Int fallback: want=4 got=%d", got)
	}
}
