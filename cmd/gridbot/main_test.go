package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveConfigPath(t *testing.T) {
	existing := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(existing, []byte("app:\n  name: gridbot\n"), 0644); err != nil {
		t.Fatal(err)
	}
	missing := filepath.Join(t.TempDir(), "missing.yaml")

	tests := []struct {
		name     string
		path     string
		explicit bool
		want     string
	}{
		{"default present", existing, false, existing},
		{"default missing falls back to env", missing, false, ""},
		{"explicit missing kept", missing, true, missing},
		{"empty", "", false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveConfigPath(tt.path, tt.explicit); got != tt.want {
				t.Errorf("resolveConfigPath() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLevelsCommand(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	body := `
broker:
  kind: alpaca
grid:
  symbol: ETH/USD
  low: 4000
  high: 4400
  levels: 4
  qty_per_level: "0.01"
  buy_zone: below_mid
`
	if err := os.WriteFile(cfgPath, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"levels", "--config", cfgPath, "--env-file", ""})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("levels failed without credentials: %v", err)
	}

	text := out.String()
	for _, want := range []string{"ETH/USD range 4000-4400, 5 levels", "4000.00", "4100.00", "4400.00", "4020.00"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}

	lines := strings.Split(strings.TrimSpace(text), "\n")
	var buys int
	for _, l := range lines[2:] {
		if strings.Contains(l, "yes") {
			buys++
		}
	}
	if buys != 2 {
		t.Errorf("Expected 2 levels below mid, got %d:\n%s", buys, text)
	}
}
