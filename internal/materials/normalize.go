package materials

import (
	"regexp"
	"strings"
)

var tokenPattern = regexp.MustCompile(`[A-Z]+|[0-9]+`)

// noiseTokens carry no identity: "SA-516 Grade 70" and "SA-516-70" are the
// same material.
var noiseTokens = map[string]bool{
	"GRADE": true,
	"GR":    true,
	"TYPE":  true,
	"TP":    true,
	"CLASS": true,
	"CL":    true,
}

// Normalize reduces a material designation to its lookup key.
func Normalize(spec string) string {
	tokens := tokenPattern.FindAllString(strings.ToUpper(spec), -1)
	var b strings.Builder
	for i, tok := range tokens {
		if noiseTokens[tok] {
			continue
		}
		// ASTM "A516" and ASME "SA-516" are the same product spec
		if i == 0 && tok == "A" && len(tokens) > 1 && isDigits(tokens[1]) {
			tok = "SA"
		}
		b.WriteString(tok)
	}
	return b.String()
}

// baseKey is the product specification without grade, e.g. "SA516".
func baseKey(spec string) string {
	tokens := tokenPattern.FindAllString(strings.ToUpper(spec), -1)
	if len(tokens) >= 2 && (tokens[0] == "SA" || tokens[0] == "A") && isDigits(tokens[1]) {
		return "SA" + tokens[1]
	}
	return ""
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// editDistance is the Levenshtein distance between a and b.
func editDistance(a, b string) int {
	if a == b {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
