package config

import "testing"

func TestClampDistance(t *testing.T) {
	c := Config{Structural: Structural{MaxDistance: 30}}
	cases := map[int]int{-5: 0, 0: 0, 10: 10, 30: 30, 999: 30}
	for in, want := range cases {
		if got := c.ClampDistance(in); got != want {
			t.Errorf("ClampDistance(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestClampKMin(t *testing.T) {
	c := Config{Structural: Structural{DefaultKMin: 10}}
	cases := map[int]int{0: 10, -1: 10, 1: 1, 30: 30, 999: 30}
	for in, want := range cases {
		if got := c.ClampKMin(in); got != want {
			t.Errorf("ClampKMin(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WorkerCount != 30 {
		t.Errorf("expected default worker count 30, got %d", cfg.WorkerCount)
	}
	if cfg.CacheBackend != "memory" {
		t.Errorf("expected default cache backend memory, got %s", cfg.CacheBackend)
	}
}
