// Package rules loads user-supplied rule tables from YAML and merges them
// with the built-in tables of the extract and junit engines.
//
// A rule file looks like:
//
//	mode: extend            # or "replace"
//	log:
//	  severity:
//	    - name: disk-full
//	      tier: critical
//	      pattern: 'No space left on device'
//	  stages:
//	    - '^==> Step (\S+)'
//	  volatile:
//	    - name: build-number
//	      pattern: '#\d+'
//	      placeholder: '#<n>'
//	junit:
//	  type_rules:
//	    - pattern: 'Verify'
//	      kind: assertion
//	  tags:
//	    failure: assertion
//
// In extend mode, file entries are added after the built-in entries of the
// same table. In replace mode, every table the file names replaces the
// built-in table; tables the file omits keep their defaults.
package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bimmerbailey/cisift/internal/extract"
	"github.com/bimmerbailey/cisift/internal/junit"
)

// Mode selects how file tables combine with the built-in tables.
type Mode string

const (
	ModeExtend  Mode = "extend"
	ModeReplace Mode = "replace"
)

// File is the on-disk shape of a rule file.
type File struct {
	Mode  Mode      `yaml:"mode"`
	Log   LogFile   `yaml:"log"`
	JUnit JUnitFile `yaml:"junit"`
}

// LogFile holds console-log rule tables.
type LogFile struct {
	Severity       []SeverityRule `yaml:"severity"`
	Stages         []string       `yaml:"stages"`
	Continuations  []string       `yaml:"continuations"`
	ExceptionToken string         `yaml:"exception_token"`
	Volatile       []VolatileRule `yaml:"volatile"`
}

// SeverityRule is one severity pattern.
type SeverityRule struct {
	Name    string `yaml:"name"`
	Tier    string `yaml:"tier"`
	Pattern string `yaml:"pattern"`
}

// VolatileRule is one fingerprint normalization pattern.
type VolatileRule struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Placeholder string `yaml:"placeholder"`
}

// JUnitFile holds failure classification tables.
type JUnitFile struct {
	TypeRules    []KindRule        `yaml:"type_rules"`
	KeywordRules []KindRule        `yaml:"keyword_rules"`
	Tags         map[string]string `yaml:"tags"`
}

// KindRule is one classification pattern.
type KindRule struct {
	Pattern string `yaml:"pattern"`
	Kind    string `yaml:"kind"`
}

// Parse decodes a rule file. Unknown keys are errors.
func Parse(data []byte) (*File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing rule file: %w", err)
	}

	switch f.Mode {
	case "":
		f.Mode = ModeExtend
	case ModeExtend, ModeReplace:
	default:
		return nil, fmt.Errorf("parsing rule file: unknown mode %q (want extend or replace)", f.Mode)
	}
	return &f, nil
}

// Load reads and parses the rule file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rule file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// LogRules merges the file's log tables with base.
func (f *File) LogRules(base extract.Rules) (extract.Rules, error) {
	var errs []error
	out := base

	if len(f.Log.Severity) > 0 {
		var rules []extract.Rule
		for i, r := range f.Log.Severity {
			tier := extract.ParseSeverity(r.Tier)
			if tier == extract.SeverityNone {
				errs = append(errs, fmt.Errorf("log.severity[%d]: unknown tier %q", i, r.Tier))
				continue
			}
			re, err := compile(fmt.Sprintf("log.severity[%d]", i), r.Pattern)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			name := r.Name
			if name == "" {
				name = fmt.Sprintf("custom-%d", i)
			}
			rules = append(rules, extract.Rule{Name: name, Tier: tier, Pattern: re})
		}
		out.Severity = merge(f.Mode, base.Severity, rules)
	}

	if len(f.Log.Stages) > 0 {
		res, err := compileAll("log.stages", f.Log.Stages)
		errs = append(errs, err)
		out.Stages = merge(f.Mode, base.Stages, res)
	}

	if len(f.Log.Continuations) > 0 {
		res, err := compileAll("log.continuations", f.Log.Continuations)
		errs = append(errs, err)
		out.Continuations = merge(f.Mode, base.Continuations, res)
	}

	if f.Log.ExceptionToken != "" {
		re, err := compile("log.exception_token", f.Log.ExceptionToken)
		errs = append(errs, err)
		if re != nil {
			out.ExceptionToken = re
		}
	}

	if len(f.Log.Volatile) > 0 {
		var vols []extract.VolatilePattern
		for i, v := range f.Log.Volatile {
			re, err := compile(fmt.Sprintf("log.volatile[%d]", i), v.Pattern)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			vols = append(vols, extract.VolatilePattern{Name: v.Name, Regex: re, Placeholder: v.Placeholder})
		}
		out.Volatile = merge(f.Mode, base.Volatile, vols)
	}

	if err := errors.Join(errs...); err != nil {
		return extract.Rules{}, err
	}
	return out, nil
}

// ClassifierConfig merges the file's junit tables with base.
func (f *File) ClassifierConfig(base junit.ClassifierConfig) (junit.ClassifierConfig, error) {
	var errs []error
	out := base

	kindRules := func(table string, in []KindRule) []junit.KindRule {
		var rules []junit.KindRule
		for i, r := range in {
			field := fmt.Sprintf("junit.%s[%d]", table, i)
			kind := junit.ParseKind(strings.ToLower(strings.TrimSpace(r.Kind)))
			if kind == junit.KindUnknown {
				errs = append(errs, fmt.Errorf("%s: unknown kind %q", field, r.Kind))
				continue
			}
			re, err := compile(field, r.Pattern)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			rules = append(rules, junit.KindRule{Pattern: re, Kind: kind})
		}
		return rules
	}

	if len(f.JUnit.TypeRules) > 0 {
		out.TypeRules = merge(f.Mode, base.TypeRules, kindRules("type_rules", f.JUnit.TypeRules))
	}
	if len(f.JUnit.KeywordRules) > 0 {
		out.KeywordRules = merge(f.Mode, base.KeywordRules, kindRules("keyword_rules", f.JUnit.KeywordRules))
	}

	if len(f.JUnit.Tags) > 0 {
		tags := make(map[string]junit.Kind)
		if f.Mode == ModeExtend {
			for k, v := range base.TagKinds {
				tags[k] = v
			}
		}
		for tag, name := range f.JUnit.Tags {
			kind := junit.ParseKind(strings.ToLower(strings.TrimSpace(name)))
			if kind == junit.KindUnknown {
				errs = append(errs, fmt.Errorf("junit.tags.%s: unknown kind %q", tag, name))
				continue
			}
			tags[tag] = kind
		}
		out.TagKinds = tags
	}

	if err := errors.Join(errs...); err != nil {
		return junit.ClassifierConfig{}, err
	}
	return out, nil
}

func merge[T any](mode Mode, base, extra []T) []T {
	if mode == ModeReplace {
		return extra
	}
	out := make([]T, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}

func compile(field, pattern string) (*regexp.Regexp, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("%s: empty pattern", field)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return re, nil
}

func compileAll(field string, patterns []string) ([]*regexp.Regexp, error) {
	var (
		out  []*regexp.Regexp
		errs []error
	)
	for i, p := range patterns {
		re, err := compile(fmt.Sprintf("%s[%d]", field, i), p)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, re)
	}
	return out, errors.Join(errs...)
}
