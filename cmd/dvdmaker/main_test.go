package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dvdmaker/internal/cleanup"
)

func TestHumanBytes(t *testing.T) {
	cases := map[int64]string{
		0:              "0 B",
		512:            "512 B",
		1024:           "1.0 KiB",
		1536:           "1.5 KiB",
		1048576:        "1.0 MiB",
		5 * 1073741824: "5.0 GiB",
		1099511627776:  "1.0 TiB",
	}
	for in, want := range cases {
		if got := humanBytes(in); got != want {
			t.Errorf("humanBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestYesNo(t *testing.T) {
	if yesNo(true) != "yes" || yesNo(false) != "no" {
		t.Error("yesNo mapping wrong")
	}
}

func TestResolveCategories(t *testing.T) {
	categories := map[string][]cleanup.Target{
		"downloads":   {{Label: "downloads"}},
		"conversions": {{Label: "conversions"}},
		"dvd-output":  {{Label: "dvd-output"}},
		"isos":        {{Label: "isos"}},
	}

	targets, err := resolveCategories([]string{"downloads", "isos"}, categories)
	if err != nil {
		t.Fatalf("resolveCategories: %v", err)
	}
	if len(targets) != 2 {
		t.Errorf("targets = %v", targets)
	}

	all, err := resolveCategories([]string{"all"}, categories)
	if err != nil {
		t.Fatalf("resolveCategories all: %v", err)
	}
	if len(all) != len(categories) {
		t.Errorf("all resolved to %d targets", len(all))
	}

	// Duplicates collapse instead of doubling the work.
	deduped, err := resolveCategories([]string{"isos", "ISOS", "all"}, categories)
	if err != nil {
		t.Fatalf("resolveCategories dedupe: %v", err)
	}
	if len(deduped) != len(categories) {
		t.Errorf("deduped resolved to %d targets", len(deduped))
	}

	if _, err := resolveCategories([]string{"everything"}, categories); err == nil {
		t.Error("unknown category must error")
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable(
		[]string{"A", "B", "C"},
		[][]string{{"1"}, {"2", "3", "4"}},
		[]int{2},
	)
	if !strings.Contains(out, "A") || !strings.Contains(out, "4") {
		t.Errorf("table output malformed:\n%s", out)
	}
}

func TestConfigInitCommandWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.toml")

	cmd := newRootCommand()
	cmd.SetArgs([]string{"config", "init", "--path", target})
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("config init: %v", err)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample config missing: %v", err)
	}
	if !strings.Contains(buf.String(), target) {
		t.Errorf("output does not mention target: %q", buf.String())
	}

	// Second init without --overwrite refuses to clobber.
	cmd = newRootCommand()
	cmd.SetArgs([]string{"config", "init", "--path", target})
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	if err := cmd.Execute(); err == nil {
		t.Error("expected refusal to overwrite existing config")
	}
}
