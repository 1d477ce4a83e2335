package tag

import (
	"regexp"
	"strings"
)

// hexTokenPattern matches runs of hex digits long enough to be an EPC.
// Anything shorter is noise from prefixes like "0x" or reader framing.
var hexTokenPattern = regexp.MustCompile(`[0-9a-fA-F]{8,}`)

// NormalizeEPC extracts the canonical identifier from arbitrary raw input:
// whitespace is dropped, the longest hex run of at least 8 characters is
// taken and uppercased. Returns "" when no usable token is found. Two raw
// inputs that normalize equally refer to the same tag.
func NormalizeEPC(raw string) string {
	// Readers and humans both insert spacing mid-EPC; collapse it so a
	// grouped value like "e200 0017 ..." still yields one token.
	compact := strings.Join(strings.Fields(raw), "")
	if compact == "" {
		return ""
	}

	tokens := hexTokenPattern.FindAllString(compact, -1)
	if len(tokens) == 0 {
		return ""
	}

	longest := tokens[0]
	for _, t := range tokens[1:] {
		if len(t) > len(longest) {
			longest = t
		}
	}
	return strings.ToUpper(longest)
}
