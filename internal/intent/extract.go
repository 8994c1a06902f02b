package intent

import "strings"

// namePrefixes are filler openings callers put before their name. Longest
// first so "i'm" does not shadow "i am".
var namePrefixes = []string{
	"my name is", "the name is", "this is", "i am", "it's", "its", "i'm", "im",
}

// ExtractFirstName pulls a first name out of an utterance like "my name is
// Sarah Jones", returning it capitalized. It returns false when nothing
// name-like remains after stripping filler.
func ExtractFirstName(speech string) (string, bool) {
	cleaned := strings.TrimSpace(curlyQuoteRep.Replace(speech))
	if cleaned == "" {
		return "", false
	}
	lowered := strings.ToLower(cleaned)
	for _, prefix := range namePrefixes {
		if strings.HasPrefix(lowered, prefix+" ") {
			cleaned = strings.TrimSpace(cleaned[len(prefix):])
			break
		}
	}
	cleaned = strings.ReplaceAll(cleaned, ",", " ")
	fields := strings.Fields(cleaned)
	if len(fields) == 0 {
		return "", false
	}
	name := strings.Trim(fields[0], ".!?")
	if name == "" || strings.IndexFunc(name, isLetter) < 0 {
		return "", false
	}
	return strings.ToUpper(name[:1]) + strings.ToLower(name[1:]), true
}

func isLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}
