package value

import (
	"golang.org/x/text/unicode/norm"
)

// FoldNFC returns a copy of a decoded JSON value with every string and
// object key in Unicode Normalization Form C.
//
// Canonicalize never normalizes text, so "café" typed with a combining
// accent and "café" typed precomposed are different queries. Callers that
// take arguments from human input (terminals, config files) can fold them
// first to get the key a normalizing client would use.
func FoldNFC(v any) any {
	switch val := v.(type) {
	case string:
		return norm.NFC.String(val)
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = FoldNFC(elem)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[norm.NFC.String(k)] = FoldNFC(elem)
		}
		return out
	default:
		return v
	}
}
