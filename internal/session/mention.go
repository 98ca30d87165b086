package session

import "regexp"

// nickChars are the characters IRC allows inside a nickname. A mention must
// not be glued to any of them on either side.
const nickChars = `A-Za-z0-9\[\]\\` + "`" + `^{}|_\-`

// DetectMentions returns the nicks from candidates that appear as whole
// words in text. Text and nicks are compared under RFC 1459 case folding,
// so "FOO{" mentions "foo[". Order follows candidates.
func DetectMentions(text string, candidates []string) []string {
	var mentions []string
	seen := make(map[string]bool)
	folded := fold(text)
	for _, nick := range candidates {
		key := fold(nick)
		if key == "" || seen[key] {
			continue
		}
		pattern := `(?:^|[^` + nickChars + `])` + regexp.QuoteMeta(key) + `(?:$|[^` + nickChars + `])`
		re, err := regexp.Compile(pattern)
		if err != nil {
			continue
		}
		if re.MatchString(folded) {
			mentions = append(mentions, nick)
			seen[key] = true
		}
	}
	return mentions
}
