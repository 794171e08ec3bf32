package scan

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bimmerbailey/cisift/internal/extract"
	"github.com/bimmerbailey/cisift/internal/junit"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const passingReport = `<testsuite name="unit"><testcase name="a"/><testcase name="b"><failure message="nope"/></testcase></testsuite>`

func TestReports(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "a.xml", []byte(passingReport)),
		writeFile(t, dir, "big.xml", []byte("<testsuite>"+strings.Repeat(" ", 300)+"</testsuite>")),
		writeFile(t, dir, "bin.xml", []byte("<testsuite>\x00\x01</testsuite>")),
		writeFile(t, dir, "html.xml", []byte("<html/>")),
		filepath.Join(dir, "missing.xml"),
	}

	a, err := junit.NewAnalyzer()
	if err != nil {
		t.Fatalf("NewAnalyzer() error = %v", err)
	}
	res, err := Reports(context.Background(), a, paths, Options{Workers: 2, MaxBytes: 200})
	if err != nil {
		t.Fatalf("Reports() error = %v", err)
	}

	if len(res.Provenance) != len(paths) {
		t.Fatalf("Provenance = %d entries, want %d", len(res.Provenance), len(paths))
	}
	tests := []struct {
		parsed bool
		reason string
	}{
		{parsed: true},
		{reason: "exceeds 200 byte limit"},
		{reason: "binary content"},
		{reason: "unrecognized root element <html>"},
		{reason: "unreadable"},
	}
	for i, tt := range tests {
		p := res.Provenance[i]
		if p.File != paths[i] {
			t.Errorf("Provenance[%d].File = %q, want %q", i, p.File, paths[i])
		}
		if p.Parsed != tt.parsed {
			t.Errorf("%s: Parsed = %v, want %v", filepath.Base(p.File), p.Parsed, tt.parsed)
		}
		if !strings.Contains(p.SkipReason, tt.reason) {
			t.Errorf("%s: SkipReason = %q, want it to contain %q", filepath.Base(p.File), p.SkipReason, tt.reason)
		}
	}

	if res.Totals.Tests != 2 || res.Counts.Assertions != 1 {
		t.Errorf("Totals = %+v, Counts = %+v", res.Totals, res.Counts)
	}
}

func TestReportsOrderIsStable(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 20; i++ {
		doc := fmt.Sprintf(`<testsuite name="s%02d"><testcase name="c"/></testsuite>`, i)
		paths = append(paths, writeFile(t, dir, fmt.Sprintf("r%02d.xml", i), []byte(doc)))
	}

	a, err := junit.NewAnalyzer()
	if err != nil {
		t.Fatalf("NewAnalyzer() error = %v", err)
	}
	res, err := Reports(context.Background(), a, paths, Options{Workers: 8})
	if err != nil {
		t.Fatalf("Reports() error = %v", err)
	}
	for i, s := range res.Suites {
		if want := fmt.Sprintf("s%02d", i); s.Name != want {
			t.Errorf("Suites[%d] = %q, want %q", i, s.Name, want)
		}
	}
}

func TestReportsCancelled(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.xml", []byte(passingReport))

	a, err := junit.NewAnalyzer()
	if err != nil {
		t.Fatalf("NewAnalyzer() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = Reports(ctx, a, []string{path}, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Reports() error = %v, want context.Canceled", err)
	}
}

func TestLogs(t *testing.T) {
	dir := t.TempDir()
	paths := []string{
		writeFile(t, dir, "build.log", []byte("compiling\nERROR: missing symbol\nexit 1\n")),
		writeFile(t, dir, "core.bin", []byte("ELF\x00\x00\x01")),
		filepath.Join(dir, "gone.log"),
	}

	engine, err := extract.New()
	if err != nil {
		t.Fatalf("extract.New() error = %v", err)
	}
	results, err := Logs(context.Background(), engine, extract.DefaultBudget(), paths, Options{})
	if err != nil {
		t.Fatalf("Logs() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Logs() = %d results, want 3", len(results))
	}

	if r := results[0]; r.Result == nil || r.Result.Counts.Error != 1 {
		t.Errorf("build.log = %+v, want one error group", r)
	}
	if r := results[1]; r.Result != nil || r.Skipped != ErrBinary.Error() {
		t.Errorf("core.bin = %+v, want a binary skip", r)
	}
	if r := results[2]; r.Result != nil || !strings.HasPrefix(r.Skipped, "unreadable") {
		t.Errorf("gone.log = %+v, want an unreadable skip", r)
	}
}

func TestLogReadsTailOfLargeFile(t *testing.T) {
	dir := t.TempDir()
	var b strings.Builder
	b.WriteString("ERROR: early failure\n")
	for i := 0; i < 100; i++ {
		b.WriteString("filler line\n")
	}
	b.WriteString("FATAL: late failure\n")
	path := writeFile(t, dir, "big.log", []byte(b.String()))

	engine, err := extract.New()
	if err != nil {
		t.Fatalf("extract.New() error = %v", err)
	}
	r := Log(engine, extract.DefaultBudget(), path, Options{MaxBytes: 200})
	if r.Skipped != "" {
		t.Fatalf("Log() skipped: %s", r.Skipped)
	}
	if !r.Clipped {
		t.Error("Clipped = false, want true")
	}
	if r.Result.Counts.Error != 0 || r.Result.Counts.Critical != 1 {
		t.Errorf("Counts = %+v, want only the late critical", r.Result.Counts)
	}
}

func TestLogTailStartsOnLineBoundary(t *testing.T) {
	var b strings.Builder
	for i := 1; i <= 50; i++ {
		fmt.Fprintf(&b, "line %03d: building\n", i) // 19 bytes per line
	}
	path := writeFile(t, t.TempDir(), "big.log", []byte(b.String()))

	engine, err := extract.New()
	if err != nil {
		t.Fatalf("extract.New() error = %v", err)
	}

	tests := []struct {
		name     string
		maxBytes int64
	}{
		{"cut inside a line", 100},
		{"cut on a line start", 95},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Log(engine, extract.DefaultBudget(), path, Options{MaxBytes: tt.maxBytes})
			if r.Skipped != "" {
				t.Fatalf("Log() skipped: %s", r.Skipped)
			}
			if r.Result.InputLines != 5 {
				t.Errorf("InputLines = %d, want 5", r.Result.InputLines)
			}
			if got := r.Result.Head[0]; got != "line 046: building" {
				t.Errorf("first line = %q, want a whole line", got)
			}
		})
	}
}

func TestLogsInvalidBudget(t *testing.T) {
	engine, err := extract.New()
	if err != nil {
		t.Fatalf("extract.New() error = %v", err)
	}
	budget := extract.DefaultBudget()
	budget.HardLimit = 1

	_, err = Logs(context.Background(), engine, budget, nil, Options{})
	if !errors.Is(err, extract.ErrInvalidConfig) {
		t.Errorf("Logs() error = %v, want ErrInvalidConfig", err)
	}
}
