package domain

import "fmt"

// Chunk is a bounded substring of a source document.
type Chunk struct {
	ID           string `json:"id"`
	Text         string `json:"text"`
	SourceOffset int    `json:"sourceOffset"`
}

// ChunkID is the stable id of the i-th chunk of a document.
func ChunkID(index int) string {
	return fmt.Sprintf("chunk-%d", index)
}

// EntryMetadata travels with every index entry. Document is the id
// namespace the entry was ingested under; stale entries are pruned per
// document.
type EntryMetadata struct {
	Text     string `json:"text"`
	Source   string `json:"source"`
	Document string `json:"document,omitempty"`
}

// IndexEntry is keyed by ID; upserting the same ID replaces the entry.
type IndexEntry struct {
	ID       string        `json:"id"`
	Vector   []float32     `json:"vector"`
	Metadata EntryMetadata `json:"metadata"`
}

// ScoredEntry is a query match with its cosine similarity.
type ScoredEntry struct {
	Entry IndexEntry
	Score float64
}

type RetrievalContext struct {
	Text   string  `json:"text"`
	Score  float64 `json:"score"`
	Source string  `json:"source"`
}

type RetrievalResult struct {
	Contexts        []RetrievalContext `json:"contexts"`
	QueryUnderstood bool               `json:"queryUnderstood"`
	TopScore        float64            `json:"topScore"`
}

// NewRetrievalResult derives QueryUnderstood and TopScore from contexts.
func NewRetrievalResult(contexts []RetrievalContext) RetrievalResult {
	result := RetrievalResult{Contexts: contexts}
	for _, c := range contexts {
		if c.Score > result.TopScore {
			result.TopScore = c.Score
		}
	}
	result.QueryUnderstood = len(contexts) > 0
	return result
}

// SynonymGroup ties an administrative term to phrases that refer to it
// without naming it.
type SynonymGroup struct {
	Term     string   `yaml:"term" json:"term"`
	Synonyms []string `yaml:"synonyms" json:"synonyms"`
}
