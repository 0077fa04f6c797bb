package platforms

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pevans/pagewatch/intent"
	"github.com/pevans/pagewatch/strategy"
	"gopkg.in/yaml.v3"
)

//go:embed platforms.yaml
var defaultYAML []byte

// DefaultThreshold applies when a definition sets no weight_threshold.
const DefaultThreshold = 0.5

var ErrPlatformNotFound = errors.New("platform not found")

// LoadError records a definition that was skipped during Parse.
type LoadError struct {
	Platform string
	Err      error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("platform %q: %v", e.Platform, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// KnowledgeBase is an immutable set of platform definitions.
type KnowledgeBase struct {
	defs    map[string]*Definition
	aliases map[string]string
	ids     []string
	errs    []*LoadError
}

// DefaultYAML returns a copy of the embedded default definitions.
func DefaultYAML() []byte {
	return slices.Clone(defaultYAML)
}

// Default parses the embedded default definitions.
func Default() (*KnowledgeBase, error) {
	return Parse(defaultYAML)
}

// DefaultPath returns ~/.pagewatch/platforms.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".pagewatch", "platforms.yaml"), nil
}

// Load reads the override file at path, writing the embedded defaults there
// first if it does not exist yet. An empty path loads the embedded
// defaults.
func Load(path string) (*KnowledgeBase, error) {
	if path == "" {
		return Default()
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create platforms directory: %w", err)
		}
		if err := os.WriteFile(path, defaultYAML, 0o600); err != nil {
			return nil, fmt.Errorf("failed to write default platforms file: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read platforms file: %w", err)
	}

	kb, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return kb, nil
}

// Parse builds a knowledge base from YAML. A definition that fails to decode
// is skipped and reported through Errors; only a document that is not a
// mapping at all is an error.
func Parse(data []byte) (*KnowledgeBase, error) {
	var doc map[string]yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode platforms: %w", err)
	}

	kb := &KnowledgeBase{
		defs:    make(map[string]*Definition),
		aliases: make(map[string]string),
	}

	keys := make([]string, 0, len(doc))
	for key := range doc {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	for _, key := range keys {
		node := doc[key]
		def, err := decodeDefinition(key, &node)
		if err != nil {
			kb.errs = append(kb.errs, &LoadError{Platform: key, Err: err})
			continue
		}
		if _, dup := kb.defs[def.ID]; dup {
			kb.errs = append(kb.errs, &LoadError{Platform: key, Err: fmt.Errorf("duplicate id %q", def.ID)})
			continue
		}

		kb.defs[def.ID] = def
		kb.ids = append(kb.ids, def.ID)
		if key != def.ID {
			kb.aliases[strings.ToLower(key)] = def.ID
		}
		for _, alias := range def.Aliases {
			kb.aliases[strings.ToLower(alias)] = def.ID
		}
	}
	slices.Sort(kb.ids)

	return kb, nil
}

// Get looks up a definition by id, falling back to aliases.
func (kb *KnowledgeBase) Get(id string) (*Definition, bool) {
	if kb == nil {
		return nil, false
	}
	if def, ok := kb.defs[id]; ok {
		return def, true
	}
	if def, ok := kb.defs[strings.ToLower(id)]; ok {
		return def, true
	}
	if target, ok := kb.aliases[strings.ToLower(id)]; ok {
		return kb.defs[target], true
	}
	return nil, false
}

// IDs returns every platform id in ascending order.
func (kb *KnowledgeBase) IDs() []string {
	if kb == nil {
		return nil
	}
	return slices.Clone(kb.ids)
}

// Len returns the number of loaded definitions.
func (kb *KnowledgeBase) Len() int {
	if kb == nil {
		return 0
	}
	return len(kb.ids)
}

// Errors returns the definitions skipped during Parse.
func (kb *KnowledgeBase) Errors() []*LoadError {
	if kb == nil {
		return nil
	}
	return slices.Clone(kb.errs)
}

// stringList decodes either a single scalar or a sequence of scalars.
type stringList []string

func (l *stringList) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		if value.Value != "" {
			*l = stringList{value.Value}
		}
		return nil
	}
	var items []string
	if err := value.Decode(&items); err != nil {
		return err
	}
	*l = items
	return nil
}

type rawDefinition struct {
	ID           string               `yaml:"id"`
	Name         string               `yaml:"name"`
	Aliases      stringList           `yaml:"aliases"`
	Detection    rawDetection         `yaml:"detection"`
	Intents      map[string]rawIntent `yaml:"intents"`
	Endpoints    []Endpoint           `yaml:"endpoints"`
	Variants     *Variants            `yaml:"variants"`
	AntiPatterns []AntiPattern        `yaml:"anti_patterns"`
	Evidence     *EvidenceHints       `yaml:"evidence"`
}

type rawDetection struct {
	Domains         stringList  `yaml:"domains"`
	HTMLSignatures  stringList  `yaml:"html_signatures"`
	ScriptHosts     stringList  `yaml:"script_hosts"`
	MetaGenerator   stringList  `yaml:"meta_generator"`
	WeightThreshold *float64    `yaml:"weight_threshold"`
	Signals         []rawSignal `yaml:"signals"`
}

type rawSignal struct {
	Type    string  `yaml:"type"`
	Pattern string  `yaml:"pattern"`
	Weight  float64 `yaml:"weight"`
}

type rawIntent struct {
	Strategies      []rawStrategy `yaml:"strategies"`
	MustHaveVariant bool          `yaml:"must_have_variant"`
	VariantPattern  string        `yaml:"variant_pattern"`
}

type rawStrategy struct {
	Engine     string   `yaml:"engine"`
	Extraction string   `yaml:"extraction"`
	Reason     string   `yaml:"reason"`
	Confidence *float64 `yaml:"confidence"`
	Note       string   `yaml:"note"`
}

// decodeDefinition decodes and validates one entry. Strategy strings and
// signal kinds are parsed here so that bad configuration fails at load.
func decodeDefinition(key string, node *yaml.Node) (*Definition, error) {
	if node.Kind != yaml.MappingNode {
		return nil, errors.New("definition must be a mapping")
	}

	var raw rawDefinition
	if err := node.Decode(&raw); err != nil {
		return nil, err
	}

	def := &Definition{
		ID:           strings.TrimSpace(raw.ID),
		Name:         strings.TrimSpace(raw.Name),
		Aliases:      raw.Aliases,
		Endpoints:    raw.Endpoints,
		Variants:     raw.Variants,
		AntiPatterns: raw.AntiPatterns,
		Evidence:     raw.Evidence,
		Detection: Detection{
			Domains:         lowerAll(raw.Detection.Domains),
			HTMLSignatures:  raw.Detection.HTMLSignatures,
			ScriptHosts:     lowerAll(raw.Detection.ScriptHosts),
			MetaGenerator:   raw.Detection.MetaGenerator,
			WeightThreshold: DefaultThreshold,
		},
	}
	if def.ID == "" {
		def.ID = key
	}
	if def.Name == "" {
		def.Name = def.ID
	}
	if t := raw.Detection.WeightThreshold; t != nil {
		if *t < 0 || *t > 1 {
			return nil, fmt.Errorf("weight_threshold %v out of range [0,1]", *t)
		}
		def.Detection.WeightThreshold = *t
	}

	for i, rs := range raw.Detection.Signals {
		kind, err := ParseSignalKind(rs.Type)
		if err != nil {
			return nil, fmt.Errorf("signal %d: %w", i, err)
		}
		if rs.Pattern == "" {
			return nil, fmt.Errorf("signal %d: empty pattern", i)
		}
		def.Detection.Signals = append(def.Detection.Signals, Signal{
			Kind:    kind,
			Pattern: rs.Pattern,
			Weight:  rs.Weight,
		})
	}

	if len(raw.Intents) > 0 {
		def.Intents = make(map[intent.Intent]IntentConfig, len(raw.Intents))
	}
	for name, ri := range raw.Intents {
		in, err := intent.Parse(name)
		if err != nil {
			return nil, err
		}
		cfg := IntentConfig{
			MustHaveVariant: ri.MustHaveVariant,
			VariantPattern:  ri.VariantPattern,
		}
		for i, rs := range ri.Strategies {
			s, err := rs.toStrategy(i)
			if err != nil {
				return nil, fmt.Errorf("intent %s strategy %d: %w", in, i, err)
			}
			cfg.Strategies = append(cfg.Strategies, s)
		}
		def.Intents[in] = cfg
	}

	return def, nil
}

// toStrategy parses the string forms. A missing confidence decays with
// position in the list.
func (rs rawStrategy) toStrategy(index int) (strategy.Strategy, error) {
	engine, err := strategy.ParseEngine(rs.Engine)
	if err != nil {
		return strategy.Strategy{}, err
	}
	extraction, err := strategy.ParseExtraction(rs.Extraction)
	if err != nil {
		return strategy.Strategy{}, err
	}

	confidence := max(0.8-0.1*float64(index), 0.3)
	if rs.Confidence != nil {
		if *rs.Confidence < 0 || *rs.Confidence > 1 {
			return strategy.Strategy{}, fmt.Errorf("confidence %v out of range [0,1]", *rs.Confidence)
		}
		confidence = *rs.Confidence
	}

	return strategy.Strategy{
		Engine:     engine,
		Extraction: extraction,
		Reason:     rs.Reason,
		Confidence: confidence,
		Note:       rs.Note,
	}, nil
}

func lowerAll(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
