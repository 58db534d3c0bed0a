package invertedindex

import "strings"

// replacer implements the normalizer from the glossary: trim, lowercase,
// replace any of "() + - / \ _ [ ]" with a space, split on whitespace, drop
// empties.
var replacer = strings.NewReplacer(
	"(", " ",
	")", " ",
	"+", " ",
	"-", " ",
	"/", " ",
	"\\", " ",
	"_", " ",
	"[", " ",
	"]", " ",
)

// Tokenize normalizes content into the set of tokens the inverted index
// indexes and queries against.
func Tokenize(content string) []string {
	cleaned := replacer.Replace(strings.ToLower(strings.TrimSpace(content)))
	fields := strings.Fields(cleaned)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
