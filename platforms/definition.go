// Package platforms holds the knowledge base of recognizable web platforms
// and scores fetched pages against it.
package platforms

import (
	"fmt"
	"strings"

	"github.com/pevans/pagewatch/intent"
	"github.com/pevans/pagewatch/strategy"
)

// Definition describes one platform. Definitions are built once by Parse
// and must be treated as read-only afterwards.
type Definition struct {
	ID           string                          `json:"id"`
	Name         string                          `json:"name"`
	Aliases      []string                        `json:"aliases,omitempty"`
	Detection    Detection                       `json:"detection"`
	Intents      map[intent.Intent]IntentConfig `json:"intents,omitempty"`
	Endpoints    []Endpoint                      `json:"endpoints,omitempty"`
	Variants     *Variants                       `json:"variants,omitempty"`
	AntiPatterns []AntiPattern                   `json:"anti_patterns,omitempty"`
	Evidence     *EvidenceHints                  `json:"evidence,omitempty"`
}

// Detection configures how a platform is recognized.
type Detection struct {
	Domains         []string `json:"domains,omitempty"`
	HTMLSignatures  []string `json:"html_signatures,omitempty"`
	ScriptHosts     []string `json:"script_hosts,omitempty"`
	MetaGenerator   []string `json:"meta_generator,omitempty"`
	WeightThreshold float64  `json:"weight_threshold"`
	Signals         []Signal `json:"signals,omitempty"`
}

// Signal is an explicit weighted detection rule.
type Signal struct {
	Kind    SignalKind `json:"type"`
	Pattern string     `json:"pattern"`
	Weight  float64    `json:"weight"`
}

// IntentConfig is what a platform knows about monitoring one intent.
type IntentConfig struct {
	Strategies      []strategy.Strategy `json:"strategies"`
	MustHaveVariant bool                `json:"must_have_variant,omitempty"`
	VariantPattern  string              `json:"variant_pattern,omitempty"`
}

// Endpoint is a known machine-readable endpoint of the platform.
type Endpoint struct {
	Path     string   `yaml:"path" json:"path"`
	Type     string   `yaml:"type" json:"type"`
	Provides []string `yaml:"provides" json:"provides,omitempty"`
}

// Variants describes how product variants are selected on the platform.
type Variants struct {
	URLParam string `yaml:"url_param" json:"url_param,omitempty"`
	Selector string `yaml:"selector" json:"selector,omitempty"`
	JSONPath string `yaml:"json_path" json:"json_path,omitempty"`
}

// AntiPattern is markup that means the fetch did not get the real page.
type AntiPattern struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	Result  string `yaml:"result" json:"result"`
	Message string `yaml:"message" json:"message"`
}

// EvidenceHints name what to capture when reporting a detection.
type EvidenceHints struct {
	Selectors []string `yaml:"selectors" json:"selectors,omitempty"`
	Fields    []string `yaml:"fields" json:"fields,omitempty"`
}

// CheckAntiPatterns returns the anti-patterns whose pattern occurs in
// markup.
func (d *Definition) CheckAntiPatterns(markup string) []AntiPattern {
	var found []AntiPattern
	for _, ap := range d.AntiPatterns {
		if ap.Pattern != "" && strings.Contains(markup, ap.Pattern) {
			found = append(found, ap)
		}
	}
	return found
}

// SignalKind is the kind of evidence an explicit signal inspects.
type SignalKind string

const (
	SignalMarkup         SignalKind = "markup"
	SignalScript         SignalKind = "script"
	SignalGenerator      SignalKind = "generator"
	SignalDomainSuffix   SignalKind = "domain_suffix"
	SignalStructuredData SignalKind = "structured_data"
	SignalStylesheet     SignalKind = "stylesheet"
)

// ParseSignalKind accepts the canonical names plus a few common spellings.
func ParseSignalKind(s string) (SignalKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "markup", "html", "html_signature":
		return SignalMarkup, nil
	case "script", "script_host", "script_src":
		return SignalScript, nil
	case "generator", "meta_generator":
		return SignalGenerator, nil
	case "domain", "domain_suffix", "domain-suffix":
		return SignalDomainSuffix, nil
	case "structured_data", "jsonld", "json-ld", "schema":
		return SignalStructuredData, nil
	case "stylesheet", "css":
		return SignalStylesheet, nil
	}
	return "", fmt.Errorf("unknown signal type %q", s)
}
