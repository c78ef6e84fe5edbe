package prompt

import "strings"

// Decision is the response policy for a request, evaluated once from
// measurable signals (context emptiness, allowlist membership) and never
// inferred from model output.
type Decision int

const (
	// ContextHit: retrieval returned relevant passages; answer from them.
	ContextHit Decision = iota
	// MissInScope: nothing retrieved, but the question is within the
	// declared curriculum; answer from general knowledge, flagged.
	MissInScope
	// OutOfScope: nothing retrieved and the question is outside the
	// curriculum; decline with the canned refusal.
	OutOfScope
)

func (d Decision) String() string {
	switch d {
	case ContextHit:
		return "context_hit"
	case MissInScope:
		return "miss_in_scope"
	case OutOfScope:
		return "out_of_scope"
	default:
		return "unknown"
	}
}

// accentFolder maps French accented letters to their base letter so scope
// matching works whether or not the student types accents.
var accentFolder = strings.NewReplacer(
	"à", "a", "â", "a", "ä", "a",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"î", "i", "ï", "i",
	"ô", "o", "ö", "o",
	"ù", "u", "û", "u", "ü", "u",
	"ç", "c",
)

func fold(s string) string {
	return accentFolder.Replace(strings.ToLower(s))
}

// Scope is the declared curriculum boundary: a keyword allowlist consulted
// only when retrieval comes back empty.
type Scope struct {
	topics []string
}

// NewScope builds a Scope from topic keywords. Topics are matched
// case-insensitively and accent-insensitively as substrings.
func NewScope(topics []string) *Scope {
	folded := make([]string, 0, len(topics))
	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		folded = append(folded, fold(t))
	}
	return &Scope{topics: folded}
}

// Contains reports whether the text mentions any allowlisted topic.
func (s *Scope) Contains(text string) bool {
	folded := fold(text)
	for _, topic := range s.topics {
		if strings.Contains(folded, topic) {
			return true
		}
	}
	return false
}
