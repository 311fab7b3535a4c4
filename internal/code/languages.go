package code

import "sort"

// Language is a source language the judge accepts, keyed by the name callers use.
type Language struct {
	Key  string `json:"key"`
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Adding a language means adding an entry here.
var languages = map[string]Language{
	"javascript": {Key: "javascript", ID: 63, Name: "JavaScript (Node.js 12.14.0)"},
	"python":     {Key: "python", ID: 71, Name: "Python (3.8.1)"},
	"java":       {Key: "java", ID: 62, Name: "Java (OpenJDK 13.0.1)"},
}

// LookupLanguage resolves a caller-facing language key to its Judge0 language.
func LookupLanguage(key string) (Language, bool) {
	l, ok := languages[key]
	return l, ok
}

// Languages returns the supported languages ordered by key.
func Languages() []Language {
	out := make([]Language, 0, len(languages))
	for _, l := range languages {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
