package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/bimmerbailey/cisift/internal/extract"
	"github.com/bimmerbailey/cisift/internal/junit"
	"github.com/bimmerbailey/cisift/internal/scan"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"json", FormatJSON},
		{"JSON", FormatJSON},
		{"table", FormatTable},
		{"text", FormatText},
		{"", FormatText},
		{"yaml", FormatText},
	}
	for _, tt := range tests {
		if got := ParseFormat(tt.in); got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func sampleExtraction(t *testing.T) *extract.Result {
	t.Helper()
	engine, err := extract.New()
	if err != nil {
		t.Fatalf("extract.New() error = %v", err)
	}
	log := strings.Join([]string{
		"Started by timer",
		"[Pipeline] { (Build)",
		"compiling",
		"ERROR: cannot find symbol Foo",
		"retrying",
		"ERROR: cannot find symbol Foo",
		"retrying",
		"WARNING: deprecated API",
		"linking",
		"FATAL: build aborted",
		"Finished: FAILURE",
	}, "\n")
	res, err := engine.Extract(log, extract.DefaultBudget())
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	return res
}

func TestSummary(t *testing.T) {
	res := sampleExtraction(t)
	want := "[Log analysis: 11 total lines | 1 critical, 1 error, 1 warning (unique matches) | 1 duplicates collapsed]"
	if got := Summary(res); got != want {
		t.Errorf("Summary() = %q, want %q", got, want)
	}
}

func TestWriteExtractionText(t *testing.T) {
	var buf bytes.Buffer
	if err := New(&buf, FormatText).WriteExtraction(sampleExtraction(t)); err != nil {
		t.Fatalf("WriteExtraction() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"[Log analysis:",
		"--- Log start (first 5 lines) ---",
		"--- CRITICAL near line 10",
		"--- ERROR near line 4",
		"--- Log end (last 6 lines) ---",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "CRITICAL near") > strings.Index(out, "ERROR near") {
		t.Errorf("CRITICAL section rendered after ERROR section:\n%s", out)
	}
	if strings.Contains(out, "\033[") {
		t.Errorf("uncolored writer emitted ANSI codes:\n%s", out)
	}
}

func TestWriteExtractionColor(t *testing.T) {
	var buf bytes.Buffer
	wr := New(&buf, FormatText).SetColorMode(ColorAlways)
	if err := wr.WriteExtraction(sampleExtraction(t)); err != nil {
		t.Fatalf("WriteExtraction() error = %v", err)
	}
	if !strings.Contains(buf.String(), colorBold+colorRed+"--- CRITICAL") {
		t.Errorf("CRITICAL header not colored:\n%s", buf.String())
	}
}

func TestWriteExtractionFallback(t *testing.T) {
	engine, err := extract.New()
	if err != nil {
		t.Fatal(err)
	}
	res, err := engine.Extract("all good\nstill good\n", extract.DefaultBudget())
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := New(&buf, FormatText).WriteExtraction(res); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "[No error patterns matched in 2 lines.") {
		t.Errorf("fallback note missing:\n%s", buf.String())
	}
}

func TestWriteLogs(t *testing.T) {
	results := []scan.LogResult{
		{File: "a.log", Result: sampleExtraction(t)},
		{File: "b.log", Skipped: "binary content"},
	}

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		if err := New(&buf, FormatText).WriteLogs(results); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		for _, want := range []string{"==> a.log <==", "==> b.log <==", "[skipped] b.log: binary content"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		if err := New(&buf, FormatJSON).WriteLogs(results); err != nil {
			t.Fatal(err)
		}
		var decoded []map[string]any
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("invalid JSON: %v\n%s", err, buf.String())
		}
		if len(decoded) != 2 || decoded[1]["skipped"] != "binary content" {
			t.Errorf("decoded = %v", decoded)
		}
		sections := decoded[0]["result"].(map[string]any)["sections"].([]any)
		if tier := sections[0].(map[string]any)["tier"]; tier != "CRITICAL" {
			t.Errorf("first section tier = %v, want CRITICAL", tier)
		}
	})

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		if err := New(&buf, FormatTable).WriteLogs(results); err != nil {
			t.Fatal(err)
		}
		out := buf.String()
		if !strings.Contains(out, "FILE") || !strings.Contains(out, "SKIPPED") {
			t.Errorf("table missing header or skip row:\n%s", out)
		}
	})
}

func sampleAnalysis(t *testing.T) *junit.AnalysisResult {
	t.Helper()
	var b strings.Builder
	b.WriteString(`<testsuite name="api">`)
	for _, n := range []string{"a", "b", "c"} {
		b.WriteString(`<testcase classname="Api" name="` + n + `"><error type="IOError" message="socket closed"/></testcase>`)
	}
	b.WriteString(`<testcase classname="Api" name="d"><failure type="AssertionError" message="want 1&#10;got 2"/></testcase>`)
	b.WriteString(`</testsuite>`)

	a, err := junit.NewAnalyzer()
	if err != nil {
		t.Fatal(err)
	}
	return a.Analyze([]junit.Document{
		{Name: "api.xml", Content: []byte(b.String())},
		{Name: "page.html", Content: []byte("<html/>")},
	})
}

func TestWriteAnalysisText(t *testing.T) {
	var buf bytes.Buffer
	if err := New(&buf, FormatText).WriteAnalysis(sampleAnalysis(t)); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"[JUnit: 4 tests | 0 passed, 1 failed, 3 errored, 0 skipped | 1 assertion, 3 exception | 2 files, 1 skipped]",
		"--- BLAST RADIUS in api: 3 of 4 failures share one cause ---",
		"signature: IOError: socket closed",
		"representative: Api.a",
		"affected: Api.a, Api.b, Api.c",
		"FAIL [assertion] Api.d",
		"    want 1",
		"[skipped] page.html: unrecognized root element <html>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteAnalysisJSONAndTable(t *testing.T) {
	res := sampleAnalysis(t)

	var js bytes.Buffer
	if err := New(&js, FormatJSON).WriteAnalysis(res); err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Standalone []struct {
			Name string `json:"name"`
			Kind string `json:"kind"`
		} `json:"standalone"`
		Provenance []junit.ProvenanceEntry `json:"provenance"`
	}
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(decoded.Standalone) != 1 || decoded.Standalone[0].Kind != "assertion" {
		t.Errorf("standalone = %+v", decoded.Standalone)
	}
	if len(decoded.Provenance) != 2 {
		t.Errorf("provenance = %+v", decoded.Provenance)
	}

	var tbl bytes.Buffer
	if err := New(&tbl, FormatTable).WriteAnalysis(res); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"STATUS", "BLAST x3", "FAIL", "SKIPPED"} {
		if !strings.Contains(tbl.String(), want) {
			t.Errorf("table missing %q:\n%s", want, tbl.String())
		}
	}
}

func TestClip(t *testing.T) {
	if got := clip("short", 10); got != "short" {
		t.Errorf("clip() = %q", got)
	}
	if got := clip("a  b\n c", 10); got != "a b c" {
		t.Errorf("clip() = %q, want whitespace collapsed", got)
	}
	if got := clip(strings.Repeat("x", 20), 10); got != "xxxxxxx..." {
		t.Errorf("clip() = %q", got)
	}
}
