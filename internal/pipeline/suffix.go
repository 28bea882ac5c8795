package pipeline

import "strings"

// Field key suffixes written by the source extraction layer.
const (
	SuffixValue      = "_value"
	SuffixStatus     = "_status"
	SuffixURI        = "_uri"
	SuffixTitle      = "_title"
	SuffixTargetID   = "_target_id"
	SuffixFormat     = "_format"
	SuffixRevisionID = "_revision_id"
)

// valueSuffixes carry the field's value and are stripped to the base name.
// Earlier entries take precedence when several share a base.
var valueSuffixes = []string{SuffixTargetID, SuffixValue, SuffixStatus}

// companionSuffixes are the keys a relation field carries next to its id.
var companionSuffixes = []string{
	SuffixTargetID,
	"_target_revision_id",
	SuffixRevisionID,
	"_alt",
	SuffixTitle,
	"_width",
	"_height",
	"_display",
	"_description",
}

// discardSuffixes carry source-only metadata with no destination field.
var discardSuffixes = []string{SuffixFormat, SuffixRevisionID}

// splitSuffix returns the base name and suffix of a value-bearing key.
func splitSuffix(key string) (base, suffix string, ok bool) {
	for _, s := range valueSuffixes {
		if b, found := strings.CutSuffix(key, s); found && b != "" {
			return b, s, true
		}
	}
	return key, "", false
}

// suffixRank is the precedence of key's value suffix; keys without one rank last.
func suffixRank(key string) int {
	for i, s := range valueSuffixes {
		if b, found := strings.CutSuffix(key, s); found && b != "" {
			return i
		}
	}
	return len(valueSuffixes)
}

func isDiscarded(key string) bool {
	for _, s := range discardSuffixes {
		if strings.HasSuffix(key, s) && len(key) > len(s) {
			return true
		}
	}
	return false
}

// linkBase returns the base name of a _uri key.
func linkBase(key string) (string, bool) {
	b, found := strings.CutSuffix(key, SuffixURI)
	return b, found && b != ""
}

// baseName strips a value suffix, or returns the key unchanged.
func baseName(key string) string {
	b, _, _ := splitSuffix(key)
	return b
}
