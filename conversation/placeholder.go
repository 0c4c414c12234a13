package conversation

import (
	"regexp"
	"strconv"
)

// placeholderPattern matches {lm<N>_actor} and {lm<N>_company} tokens.
// N is the 1-based actor ordinal.
var placeholderPattern = regexp.MustCompile(`\{lm(\d+)_(actor|company)\}`)

// ActorBinding is the slice of actor identity the placeholder resolver needs:
// the final display name and the backend family it runs on.
type ActorBinding struct {
	Name   string
	Family string
}

// ResolvePlaceholders replaces every recognized {lmN_actor} / {lmN_company}
// token in s with the bound actor's display name or backend family.
// Unrecognized tokens (out-of-range ordinal, unknown field, malformed) are
// left verbatim; resolution is never an error. Callers must not rely on the
// output being token-free.
func ResolvePlaceholders(s string, bindings []ActorBinding) string {
	if s == "" || len(bindings) == 0 {
		return s
	}
	return placeholderPattern.ReplaceAllStringFunc(s, func(token string) string {
		m := placeholderPattern.FindStringSubmatch(token)
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(bindings) {
			return token
		}
		switch m[2] {
		case "actor":
			return bindings[n-1].Name
		case "company":
			return bindings[n-1].Family
		}
		return token
	})
}
