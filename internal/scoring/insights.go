package scoring

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxKeywordMatches = 10
	minKeywordLength  = 4
	suggestionSample  = 60
)

var (
	experienceIndicators = []string{"year", "years", "experience", "led", "managed", "senior", "lead"}
	educationIndicators  = []string{"bachelor", "master", "phd", "degree", "university", "college"}
	workHistoryKeywords  = []string{"experience", "work", "job", "position", "role", "company", "employer"}

	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`)
)

// Insights are plain text statistics reported next to the score. They do not feed Percent
// or Confidence.
type Insights struct {
	// KeywordMatches are words of four or more letters found in both texts, sorted and
	// capped at ten.
	KeywordMatches    []string `json:"keyword_matches" yaml:"keyword_matches"`
	KeywordMatchCount int      `json:"keyword_match_count" yaml:"keyword_match_count"`
	// ExperienceIndicators and EducationIndicators count distinct indicator words present
	// anywhere in the resume, substrings included.
	ExperienceIndicators int     `json:"experience_indicators" yaml:"experience_indicators"`
	EducationIndicators  int     `json:"education_indicators" yaml:"education_indicators"`
	ResumeWordCount      int     `json:"resume_word_count" yaml:"resume_word_count"`
	HasContactInfo       bool    `json:"has_contact_info" yaml:"has_contact_info"`
	Completeness         float64 `json:"completeness" yaml:"completeness"`
}

// Analyze computes the insights of a resume against a job description.
func Analyze(resumeText, jobText string, resumeSkillCount int) Insights {
	lower := strings.ToLower(resumeText)

	matches := keywordMatches(resumeText, jobText)
	count := len(matches)
	if len(matches) > maxKeywordMatches {
		matches = matches[:maxKeywordMatches]
	}

	return Insights{
		KeywordMatches:       matches,
		KeywordMatchCount:    count,
		ExperienceIndicators: countPresent(lower, experienceIndicators),
		EducationIndicators:  countPresent(lower, educationIndicators),
		ResumeWordCount:      len(strings.Fields(resumeText)),
		HasContactInfo:       emailPattern.MatchString(resumeText) && phonePattern.MatchString(resumeText),
		Completeness:         Completeness(resumeText, resumeSkillCount),
	}
}

// Completeness rates how fully a resume is filled in, from 0 to 100:
// 10 points each for a name line, an email and a phone number, up to 25 for skills,
// up to 20 for length beyond 100 words and up to 25 for work history wording.
func Completeness(resumeText string, skillCount int) float64 {
	var score float64

	if hasNameLine(resumeText) {
		score += 10
	}
	if emailPattern.MatchString(resumeText) {
		score += 10
	}
	if phonePattern.MatchString(resumeText) {
		score += 10
	}

	if skillCount > 0 {
		score += math.Min(25, float64(skillCount*2))
	}

	if words := len(strings.Fields(resumeText)); words > 100 {
		score += math.Min(20, float64(words)/25)
	}

	mentions := countPresent(strings.ToLower(resumeText), workHistoryKeywords)
	score += math.Min(25, float64(mentions*3))

	return math.Min(score, 100)
}

// Suggestions returns generic rewording advice anchored on the first resume line.
func Suggestions(resumeText string) []string {
	sample := "Your bullet here"
	for _, line := range strings.Split(resumeText, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			sample = line
			break
		}
	}
	if utf8.RuneCountInString(sample) > suggestionSample {
		sample = string([]rune(sample)[:suggestionSample])
	}

	return []string{
		"Quantified impact: " + sample + " (add metrics like % or $)",
		"Active verbs first; remove filler; keep to one line.",
		"Match keywords from the job description; highlight tools/results.",
	}
}

func keywordMatches(resumeText, jobText string) []string {
	if strings.TrimSpace(jobText) == "" {
		return []string{}
	}

	resumeWords := keywordSet(resumeText)
	out := []string{}
	for word := range keywordSet(jobText) {
		if _, ok := resumeWords[word]; ok {
			out = append(out, word)
		}
	}
	sort.Strings(out)
	return out
}

// keywordSet keeps whitespace separated words made of letters only.
func keywordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range strings.Fields(strings.ToLower(text)) {
		if utf8.RuneCountInString(word) < minKeywordLength || !isLetters(word) {
			continue
		}
		set[word] = struct{}{}
	}
	return set
}

func isLetters(word string) bool {
	for _, r := range word {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func countPresent(lowerText string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(lowerText, w) {
			n++
		}
	}
	return n
}

// hasNameLine reports whether the first non-blank line looks like a person's name.
func hasNameLine(text string) bool {
	for _, line := range strings.Split(text, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 || len(fields) > 4 {
			return false
		}
		for _, f := range fields {
			if !isLetters(strings.Trim(f, ".-'")) {
				return false
			}
		}
		return true
	}
	return false
}
