package capability

import (
	"sort"
	"strings"
)

// DefaultFallbackCapability is assigned to steps that match no keyword
const DefaultFallbackCapability = "general"

// KeywordInferencer infers capabilities from keywords found in a step
// description. Matching is case-insensitive on whole words.
type KeywordInferencer struct {
	keywords map[string]string // keyword -> capability
	fallback string
}

// NewKeywordInferencer creates an inferencer from a keyword table.
// Keys are matched against lowercased words of the step description;
// values are the capabilities they imply.
func NewKeywordInferencer(keywords map[string]string, fallback string) *KeywordInferencer {
	if fallback == "" {
		fallback = DefaultFallbackCapability
	}

	normalized := make(map[string]string, len(keywords))
	for k, v := range keywords {
		normalized[strings.ToLower(k)] = v
	}

	return &KeywordInferencer{
		keywords: normalized,
		fallback: fallback,
	}
}

// DefaultKeywordTable returns a starter keyword table covering common
// task verbs.
func DefaultKeywordTable() map[string]string {
	return map[string]string{
		"research":    "research",
		"investigate": "research",
		"analyze":     "analysis",
		"analysis":    "analysis",
		"write":       "writing",
		"summarize":   "writing",
		"summary":     "writing",
		"draft":       "writing",
		"review":      "review",
		"verify":      "review",
		"plan":        "planning",
		"design":      "planning",
		"code":        "engineering",
		"implement":   "engineering",
		"build":       "engineering",
		"test":        "testing",
		"deploy":      "operations",
	}
}

// InferCapabilities implements Inferencer
func (ki *KeywordInferencer) InferCapabilities(stepDescription string) []string {
	found := map[string]struct{}{}

	for _, word := range strings.Fields(strings.ToLower(stepDescription)) {
		word = strings.Trim(word, ".,;:!?()[]\"'")
		if cap, ok := ki.keywords[word]; ok {
			found[cap] = struct{}{}
		}
	}

	if len(found) == 0 {
		return []string{ki.fallback}
	}

	out := make([]string, 0, len(found))
	for c := range found {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
