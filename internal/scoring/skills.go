package scoring

import (
	"regexp"
	"strings"
)

var parenRe = regexp.MustCompile(`\([^)]*\)`)

// aliases canonicalizes common skill spellings before comparison.
var aliases = map[string]string{
	"js":         "javascript",
	"ts":         "typescript",
	"node":       "node.js",
	"nodejs":     "node.js",
	"node js":    "node.js",
	"golang":     "go",
	"py":         "python",
	"postgres":   "postgresql",
	"k8s":        "kubernetes",
	"reactjs":    "react",
	"react.js":   "react",
	"vuejs":      "vue",
	"vue.js":     "vue",
	"c sharp":    "c#",
	"ci cd":      "ci/cd",
	"gcloud":     "gcp",
	"amazon web services": "aws",
	"google cloud":        "gcp",
}

// implications expands a profile's skill set: holding the key satisfies
// every listed value, transitively.
var implications = map[string][]string{
	"react":      {"javascript", "html", "css"},
	"vue":        {"javascript", "html", "css"},
	"angular":    {"typescript", "html", "css"},
	"next.js":    {"react"},
	"typescript": {"javascript"},
	"node.js":    {"javascript"},
	"django":     {"python"},
	"flask":      {"python"},
	"fastapi":    {"python"},
	"rails":      {"ruby"},
	"spring":     {"java"},
	"kubernetes": {"docker"},
	"postgresql": {"sql"},
	"mysql":      {"sql"},
	"sqlite":     {"sql"},
	"terraform":  {"iac"},
}

// Normalize lowercases a skill, strips parenthetical asides, and collapses
// whitespace, then canonicalizes through the alias table.
func Normalize(skill string) string {
	s := strings.ToLower(skill)
	s = parenRe.ReplaceAllString(s, " ")
	s = strings.Join(strings.Fields(s), " ")
	if canonical, ok := aliases[s]; ok {
		return canonical
	}
	return s
}

// Expand returns the transitive closure of skills under the implication
// table, normalized and deduplicated.
func Expand(skills []string) map[string]bool {
	set := map[string]bool{}
	var visit func(string)
	visit = func(s string) {
		if s == "" || set[s] {
			return
		}
		set[s] = true
		for _, implied := range implications[s] {
			visit(implied)
		}
	}
	for _, s := range skills {
		visit(Normalize(s))
	}
	return set
}

// similarity is a normalized edit-distance ratio in [0,1]; 1 means equal.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}
	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}
	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, min(curr[j-1]+1, prev[j-1]+cost))
		}
		prev, curr = curr, prev
	}
	dist := prev[lb]
	longest := la
	if lb > longest {
		longest = lb
	}
	return 1 - float64(dist)/float64(longest)
}

// matches reports whether a required skill is satisfied by the expanded
// candidate set. Threshold <= 0 always matches; > 1 never matches fuzzily.
func matches(required string, available map[string]bool, fuzzy bool, threshold float64) bool {
	if available[required] {
		return true
	}
	if !fuzzy {
		return false
	}
	if threshold <= 0 {
		return true
	}
	if threshold > 1 {
		return false
	}
	for have := range available {
		if similarity(required, have) >= threshold {
			return true
		}
	}
	return false
}
