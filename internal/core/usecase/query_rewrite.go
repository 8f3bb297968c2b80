package usecase

import (
	"strings"
	"unicode"

	"github.com/kirillkom/pixers-assistant/internal/core/domain"
)

// DefaultSynonymGroups is used when no synonyms file is configured.
var DefaultSynonymGroups = []domain.SynonymGroup{
	{Term: "visa", Synonyms: []string{"permit", "residence permit", "stay permit", "entry permit", "immigration"}},
	{Term: "tax registration", Synonyms: []string{"tax number", "tax id", "fiscal code", "tax office"}},
	{Term: "residence registration", Synonyms: []string{"address registration", "register my address", "registration office"}},
	{Term: "driving licence", Synonyms: []string{"driver's license", "driving license", "license exchange"}},
}

var questionKeywords = []string{"how", "what", "process", "procedure"}

// QueryAugmenter appends the administrative term a question alludes to via a
// synonym but never names. The original wording is always kept as a prefix.
type QueryAugmenter struct {
	groups []domain.SynonymGroup
}

func NewQueryAugmenter(groups []domain.SynonymGroup) *QueryAugmenter {
	if len(groups) == 0 {
		groups = DefaultSynonymGroups
	}
	return &QueryAugmenter{groups: groups}
}

func (a *QueryAugmenter) Augment(query string) string {
	normalized := strings.Join(strings.Fields(query), " ")
	if normalized == "" {
		return ""
	}

	words := tokenize(normalized)
	if !containsAnyPhrase(words, questionKeywords) {
		return normalized
	}

	var terms []string
	for _, group := range a.groups {
		if group.Term == "" || containsPhrase(words, tokenize(group.Term)) {
			continue
		}
		if containsAnyPhrase(words, group.Synonyms) {
			terms = append(terms, group.Term)
		}
	}
	if len(terms) == 0 {
		return normalized
	}
	return normalized + " (regarding " + strings.Join(terms, ", ") + ")"
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func containsAnyPhrase(words []string, phrases []string) bool {
	for _, phrase := range phrases {
		if containsPhrase(words, tokenize(phrase)) {
			return true
		}
	}
	return false
}

func containsPhrase(words, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(words) {
		return false
	}
outer:
	for i := 0; i+len(phrase) <= len(words); i++ {
		for j := range phrase {
			if words[i+j] != phrase[j] {
				continue outer
			}
		}
		return true
	}
	return false
}
