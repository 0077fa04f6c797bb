// Package resolver expands a platform and intent into an ordered list of
// candidate strategies.
package resolver

import (
	"slices"

	"github.com/pevans/pagewatch/intent"
	"github.com/pevans/pagewatch/platforms"
	"github.com/pevans/pagewatch/strategy"
)

// Resolve returns the platform's strategies for the intent in declared
// order. When the platform is unknown or has nothing for the intent, the
// built-in defaults for the intent are returned instead. The result is
// never empty and is safe to modify.
func Resolve(kb *platforms.KnowledgeBase, platformID string, in intent.Intent) []strategy.Strategy {
	if list, ok := fromPlatform(kb, platformID, in); ok {
		return list
	}
	return strategy.Defaults(in)
}

// FromPlatform reports whether the platform defines strategies for the
// intent, without falling back.
func FromPlatform(kb *platforms.KnowledgeBase, platformID string, in intent.Intent) bool {
	_, ok := fromPlatform(kb, platformID, in)
	return ok
}

func fromPlatform(kb *platforms.KnowledgeBase, platformID string, in intent.Intent) ([]strategy.Strategy, bool) {
	if platformID == "" {
		return nil, false
	}
	def, ok := kb.Get(platformID)
	if !ok {
		return nil, false
	}
	cfg, ok := def.Intents[in]
	if !ok || len(cfg.Strategies) == 0 {
		return nil, false
	}
	return slices.Clone(cfg.Strategies), true
}
