package pipeline

import (
	"go.uber.org/zap"

	"github.com/sells-group/migrate-cli/internal/convert"
	"github.com/sells-group/migrate-cli/internal/refindex"
)

// resolveTerms resolves every legacy term id in v independently. Unresolved
// ids are skipped with a warning.
func resolveTerms(ix *refindex.Index, log *zap.Logger, field string, v any) []refindex.TermMapping {
	var out []refindex.TermMapping
	for _, id := range convert.LegacyIDs(v) {
		term, ok := ix.Term(id)
		if !ok {
			log.Warn("pipeline: unresolved taxonomy term",
				zap.String("kind", "unresolved_taxonomy"),
				zap.String("field", field),
				zap.String("target_id", id),
			)
			continue
		}
		out = append(out, term)
	}
	return out
}

// consolidateTerms deduplicates assignments by term uid, keeping the first
// occurrence.
func consolidateTerms(terms []refindex.TermMapping) []refindex.TermMapping {
	seen := make(map[string]bool, len(terms))
	out := make([]refindex.TermMapping, 0, len(terms))
	for _, t := range terms {
		if t.TermUID == "" || seen[t.TermUID] {
			continue
		}
		seen[t.TermUID] = true
		out = append(out, t)
	}
	return out
}
