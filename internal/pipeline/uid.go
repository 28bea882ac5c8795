package pipeline

import "strings"

var uidReplacer = strings.NewReplacer(" ", "_", "-", "_")

// DestinationUID builds the destination uid of a legacy id: lower-cased,
// spaces and hyphens replaced by underscores, and prefixed with affix when
// it would otherwise start with a digit.
func DestinationUID(affix, legacyID string) string {
	uid := strings.ToLower(uidReplacer.Replace(strings.TrimSpace(legacyID)))
	if uid != "" && uid[0] >= '0' && uid[0] <= '9' {
		prefix := strings.ToLower(uidReplacer.Replace(affix))
		if prefix == "" {
			prefix = "entry"
		}
		uid = prefix + "_" + uid
	}
	return uid
}
