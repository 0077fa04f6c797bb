package platforms

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/pevans/pagewatch/facts"
)

// Fixed contributions of the built-in detection fields.
const (
	domainWeight    = 0.9
	signatureWeight = 0.3
	scriptWeight    = 0.4
	generatorWeight = 0.6
)

// Match is one platform hypothesis for a page.
type Match struct {
	PlatformID   string   `json:"platform_id"`
	Name         string   `json:"name"`
	Score        float64  `json:"score"`
	Evidence     []string `json:"evidence"`
	MatchedRules []string `json:"matched_rules"`
}

// Score evaluates every definition against the page and returns those at or
// above their threshold, best first. Equal scores are ordered by platform
// id so that the result does not depend on map order.
func Score(f *facts.PageFacts, kb *KnowledgeBase) []Match {
	if f == nil || kb == nil {
		return nil
	}

	var matches []Match
	for _, id := range kb.ids {
		def := kb.defs[id]
		m := scoreDefinition(f, def)
		if m.Score > 0 && m.Score >= def.Detection.WeightThreshold {
			matches = append(matches, m)
		}
	}

	slices.SortStableFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return strings.Compare(a.PlatformID, b.PlatformID)
	})

	return matches
}

// scorer accumulates contributions for one definition.
type scorer struct {
	total float64
	m     Match
}

func (s *scorer) add(weight float64, rule, evidence string) {
	s.total += weight
	s.m.MatchedRules = append(s.m.MatchedRules, rule)
	s.m.Evidence = append(s.m.Evidence, evidence)
}

func scoreDefinition(f *facts.PageFacts, def *Definition) Match {
	s := &scorer{m: Match{PlatformID: def.ID, Name: def.Name}}
	det := def.Detection

	host := f.Host()
	markup := f.AllMarkup()
	scripts := lowerAll(f.Scripts)
	generator := strings.ToLower(f.Generator)

	for _, domain := range det.Domains {
		if domain != "" && domainMatches(host, domain) {
			s.add(domainWeight, "domain:"+domain,
				fmt.Sprintf("host %s matches domain %s", host, domain))
		}
	}

	for _, sig := range det.HTMLSignatures {
		if sig != "" && strings.Contains(markup, sig) {
			s.add(signatureWeight, "html:"+sig,
				fmt.Sprintf("markup contains %q", sig))
		}
	}

	for _, scriptHost := range det.ScriptHosts {
		if scriptHost != "" && anyContains(scripts, scriptHost) {
			s.add(scriptWeight, "script:"+scriptHost,
				fmt.Sprintf("script loaded from %s", scriptHost))
		}
	}

	if generator != "" {
		for _, g := range det.MetaGenerator {
			if g != "" && strings.Contains(generator, strings.ToLower(g)) {
				s.add(generatorWeight, "generator:"+g,
					fmt.Sprintf("meta generator %q contains %q", f.Generator, g))
				break
			}
		}
	}

	for _, sig := range det.Signals {
		if signalMatches(f, sig, host, markup, scripts, generator) {
			s.add(sig.Weight, fmt.Sprintf("signal:%s:%s", sig.Kind, sig.Pattern),
				fmt.Sprintf("%s signal %q matched (%+.2f)", sig.Kind, sig.Pattern, sig.Weight))
		}
	}

	s.m.Score = min(max(s.total, 0), 1)
	return s.m
}

// signalMatches evaluates one explicit signal. Every kind except markup is
// case-insensitive.
func signalMatches(f *facts.PageFacts, sig Signal, host, markup string, scripts []string, generator string) bool {
	pattern := strings.ToLower(sig.Pattern)

	switch sig.Kind {
	case SignalMarkup:
		return strings.Contains(markup, sig.Pattern)
	case SignalScript:
		return anyContains(scripts, pattern)
	case SignalGenerator:
		return generator != "" && strings.Contains(generator, pattern)
	case SignalDomainSuffix:
		return host != "" && strings.HasSuffix(host, pattern)
	case SignalStructuredData:
		for _, t := range f.StructuredDataTypes {
			if strings.EqualFold(t, sig.Pattern) {
				return true
			}
		}
	case SignalStylesheet:
		return anyContains(lowerAll(f.Stylesheets), pattern)
	}
	return false
}

// domainMatches reports whether host is domain or a subdomain of it.
func domainMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func anyContains(items []string, sub string) bool {
	for _, item := range items {
		if strings.Contains(item, sub) {
			return true
		}
	}
	return false
}
