// Package ranker turns raw similarity search results into clause matches.
package ranker

import (
	"sort"

	"github.com/ziadkadry99/doc-qa/internal/vectordb"
)

// DefaultThreshold is the minimum similarity for a passage to count as a
// matching clause.
const DefaultThreshold = 0.7

// ClauseMatch is a passage that cleared the confidence threshold.
type ClauseMatch struct {
	ClauseText      string  `json:"clause_text"`
	Section         string  `json:"section"`
	PageNumber      int     `json:"page_number,omitempty"`
	SimilarityScore float64 `json:"similarity_score"`
	ChunkID         string  `json:"chunk_id"`
	DocumentID      string  `json:"document_id"`
}

// Rank keeps results scoring at least threshold and orders them by score,
// best first. Equal scores keep their retrieval order.
func Rank(results []vectordb.SearchResult, threshold float64) []ClauseMatch {
	// Scores are float32; compare at that precision so a threshold of 0.7
	// admits a score of float32(0.7). The reported score is then lifted to
	// the threshold so widening it to float64 never lands below it.
	floor := float32(threshold)
	matches := make([]ClauseMatch, 0, len(results))
	for _, r := range results {
		if r.Score < floor {
			continue
		}
		score := max(float64(r.Score), threshold)
		matches = append(matches, ClauseMatch{
			ClauseText:      r.Passage.Text,
			Section:         r.Passage.Section,
			PageNumber:      r.Passage.Page,
			SimilarityScore: score,
			ChunkID:         r.Passage.ID,
			DocumentID:      r.Passage.DocumentID,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].SimilarityScore > matches[j].SimilarityScore
	})
	return matches
}
