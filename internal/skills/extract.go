package skills

import (
	"regexp"
	"strings"
)

// DefaultVocabulary is the built-in dictionary used by Extract.
var DefaultVocabulary = []string{
	"python", "java", "javascript", "typescript", "c++", "c#", "go", "rust", "sql",
	"pandas", "numpy", "scikit-learn", "tensorflow", "pytorch", "nlp", "spacy", "nltk",
	"aws", "azure", "gcp", "docker", "kubernetes", "ci/cd", "git",
	"react", "node", "streamlit", "flask", "django",
	"mongodb", "postgresql", "mysql", "redis", "elasticsearch",
	"jenkins", "ansible", "terraform", "prometheus", "grafana",
	"spring", "hibernate", "express", "vue", "angular",
	"machine learning", "deep learning", "data science", "ai",
	"agile", "scrum", "kanban", "microservices", "rest api",
	"graphql", "oauth", "jwt", "websockets", "grpc",
}

var tokenPattern = regexp.MustCompile(`[a-z0-9#+./-]+`)

// Extract returns the vocabulary entries found in text. Single-word entries must match a
// whole token; multi-word entries must match a run of whole tokens.
func Extract(text string, vocabulary []string) Set {
	found := New()
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return found
	}

	index := make(map[string]struct{}, len(tokens))
	for _, tok := range tokens {
		index[tok] = struct{}{}
	}
	joined := " " + strings.Join(tokens, " ") + " "

	for _, entry := range vocabulary {
		name := Normalize(entry)
		if name == "" {
			continue
		}
		if !strings.Contains(name, " ") {
			if _, ok := index[name]; ok {
				found.add(name)
			}
			continue
		}
		if strings.Contains(joined, " "+name+" ") {
			found.add(name)
		}
	}

	return found
}

func tokenize(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(raw))
	for _, tok := range raw {
		tok = strings.Trim(tok, ".-/")
		if tok == "" {
			continue
		}
		tokens = append(tokens, tok)
		// node.js style names also count as their first component.
		if head, _, ok := strings.Cut(tok, "."); ok && head != "" {
			tokens = append(tokens, head)
		}
	}
	return tokens
}
