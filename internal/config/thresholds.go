package config

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"fairaudit/internal/fairness"

	"gopkg.in/yaml.v3"
)

// ProfileDocument is the YAML form of a threshold profile.
//
//	name: lending-strict
//	extends: default
//	rules:
//	  disparate_impact:
//	    direction: at_least
//	    threshold: 0.9
//	    bands:
//	      - {bound: 0.6, severity: critical}
//	    otherwise: high
type ProfileDocument struct {
	Name    string                  `yaml:"name" json:"name"`
	Extends string                  `yaml:"extends,omitempty" json:"extends,omitempty"`
	Rules   map[string]RuleDocument `yaml:"rules" json:"rules"`
}

// RuleDocument is one metric rule in a profile document.
type RuleDocument struct {
	Direction string         `yaml:"direction" json:"direction"`
	Threshold float64        `yaml:"threshold" json:"threshold"`
	Bands     []BandDocument `yaml:"bands,omitempty" json:"bands,omitempty"`
	Otherwise string         `yaml:"otherwise" json:"otherwise"`
}

type BandDocument struct {
	Bound    float64 `yaml:"bound" json:"bound"`
	Severity string  `yaml:"severity" json:"severity"`
}

// LoadedProfile is a parsed profile plus the digest of its source bytes.
type LoadedProfile struct {
	Thresholds fairness.Thresholds
	Hash       string
	Bytes      []byte
	Path       string
}

// LoadThresholdProfile reads, strictly decodes and validates a profile file.
func LoadThresholdProfile(path string) (LoadedProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return LoadedProfile{}, fmt.Errorf("read threshold profile: %w", err)
	}
	th, err := ParseThresholdProfile(data)
	if err != nil {
		return LoadedProfile{}, fmt.Errorf("%s: %w", path, err)
	}
	return LoadedProfile{Thresholds: th, Hash: digest(data), Bytes: data, Path: path}, nil
}

// ParseThresholdProfile decodes profile YAML. Unknown fields are rejected.
func ParseThresholdProfile(data []byte) (fairness.Thresholds, error) {
	var doc ProfileDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return fairness.Thresholds{}, fmt.Errorf("decode threshold profile: %w", err)
	}
	return doc.Thresholds()
}

// Thresholds converts the document into an immutable profile.
func (d ProfileDocument) Thresholds() (fairness.Thresholds, error) {
	rules := map[fairness.MetricKind]fairness.Rule{}

	switch strings.ToLower(d.Extends) {
	case "":
	case fairness.DefaultProfileName:
		base := fairness.DefaultThresholds()
		for _, k := range base.Kinds() {
			rules[k], _ = base.Rule(k)
		}
	default:
		return fairness.Thresholds{}, fmt.Errorf("unknown base profile %q", d.Extends)
	}

	for name, rd := range d.Rules {
		kind, err := fairness.ParseMetricKind(name)
		if err != nil {
			return fairness.Thresholds{}, err
		}
		rule, err := rd.rule()
		if err != nil {
			return fairness.Thresholds{}, fmt.Errorf("rule %s: %w", name, err)
		}
		rules[kind] = rule
	}
	return fairness.NewThresholds(d.Name, rules)
}

func (rd RuleDocument) rule() (fairness.Rule, error) {
	dir, err := fairness.ParseDirection(rd.Direction)
	if err != nil {
		return fairness.Rule{}, err
	}
	otherwise, err := fairness.ParseSeverity(rd.Otherwise)
	if err != nil {
		return fairness.Rule{}, fmt.Errorf("otherwise: %w", err)
	}
	rule := fairness.Rule{Direction: dir, Threshold: rd.Threshold, Otherwise: otherwise}
	for i, b := range rd.Bands {
		sev, err := fairness.ParseSeverity(b.Severity)
		if err != nil {
			return fairness.Rule{}, fmt.Errorf("band %d: %w", i, err)
		}
		rule.Bands = append(rule.Bands, fairness.Band{Bound: b.Bound, Severity: sev})
	}
	return rule, nil
}

// DocumentFor renders a profile back into its YAML document form.
func DocumentFor(th fairness.Thresholds) ProfileDocument {
	doc := ProfileDocument{Name: th.Name(), Rules: map[string]RuleDocument{}}
	for _, k := range th.Kinds() {
		rule, _ := th.Rule(k)
		rd := RuleDocument{
			Direction: rule.Direction.String(),
			Threshold: rule.Threshold,
			Otherwise: rule.Otherwise.String(),
		}
		for _, b := range rule.Bands {
			rd.Bands = append(rd.Bands, BandDocument{Bound: b.Bound, Severity: b.Severity.String()})
		}
		doc.Rules[k.String()] = rd
	}
	return doc
}

// MarshalThresholdProfile encodes a profile as YAML.
func MarshalThresholdProfile(th fairness.Thresholds) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(DocumentFor(th)); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ResolveThresholds loads the configured profile, or the built-in default when none is set.
func (f FairnessConfig) ResolveThresholds() (LoadedProfile, error) {
	if f.ThresholdsFile == "" {
		th := fairness.DefaultThresholds()
		data, err := MarshalThresholdProfile(th)
		if err != nil {
			return LoadedProfile{}, err
		}
		return LoadedProfile{Thresholds: th, Hash: digest(data), Bytes: data}, nil
	}
	return LoadThresholdProfile(f.ThresholdsFile)
}

// EngineOptions turns the configured defaults into engine options for th.
func (f FairnessConfig) EngineOptions(th fairness.Thresholds) fairness.Options {
	opts := fairness.DefaultOptions()
	opts.FavorableLabel = f.FavorableLabel
	opts.PrivilegedGroup = f.PrivilegedGroup
	opts.MinRecords = f.MinRecords
	opts.Thresholds = th
	if f.Lenient {
		opts.Mode = fairness.Lenient
	}
	return opts
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}
