// Package selection picks the working set of sources for ingestion, capping
// the total while guaranteeing minimum coverage for every thesis chapter.
package selection

import (
	"math"
	"sort"

	"github.com/scribenet/thesis-service/internal/domain"
)

// Selection parameters.
const (
	// DefaultMinPerChapter is the per-chapter representation guarantee.
	DefaultMinPerChapter = 2

	// MinRelevanceScore is the floor below which a source is never selected.
	MinRelevanceScore = 40.0

	// unknownChapter buckets sources discovered without a chapter tag.
	unknownChapter = "unknown"

	// Bounds and multiplier for MaxTotal.
	maxTotalFloor      = 10
	maxTotalCeiling    = 50
	sourcesPerPageRate = 1.25
)

// MaxTotal derives the selection cap from the thesis length target: estimated
// pages times 1.25, clamped to [10, 50].
func MaxTotal(req domain.ThesisRequest) int {
	pages := req.EstimatedPages()
	total := int(math.Ceil(float64(pages) * sourcesPerPageRate))
	if total < maxTotalFloor {
		return maxTotalFloor
	}
	if total > maxTotalCeiling {
		return maxTotalCeiling
	}
	return total
}

// Select picks up to maxTotal sources from rankedSources (assumed sorted by
// relevance descending). Every chapter bucket first gets up to minPerChapter
// of its sources scoring at or above MinRelevanceScore, even when those are
// globally outranked by another chapter's sources; remaining capacity fills
// with the highest-scoring unused sources. The result is sorted by relevance
// descending.
func Select(rankedSources []domain.Source, maxTotal, minPerChapter int) []domain.Source {
	if maxTotal <= 0 {
		return nil
	}
	if minPerChapter < 0 {
		minPerChapter = DefaultMinPerChapter
	}

	buckets := make(map[string][]domain.Source)
	bucketOrder := make([]string, 0)
	for _, s := range rankedSources {
		chapter := s.ChapterNumber
		if chapter == "" {
			chapter = unknownChapter
		}
		if _, ok := buckets[chapter]; !ok {
			bucketOrder = append(bucketOrder, chapter)
		}
		buckets[chapter] = append(buckets[chapter], s)
	}

	usedKeys := make(map[string]bool)
	selected := make([]domain.Source, 0, maxTotal)

	// Guaranteed pass: minimum representation per chapter, in rank order
	// within each bucket.
	for _, chapter := range bucketOrder {
		taken := 0
		for _, s := range buckets[chapter] {
			if taken >= minPerChapter || len(selected) >= maxTotal {
				break
			}
			if s.RelevanceScore < MinRelevanceScore || usedKeys[s.DedupKey()] {
				continue
			}
			usedKeys[s.DedupKey()] = true
			selected = append(selected, s)
			taken++
		}
	}

	// Fill pass: best remaining sources regardless of chapter.
	for _, s := range rankedSources {
		if len(selected) >= maxTotal {
			break
		}
		if s.RelevanceScore < MinRelevanceScore || usedKeys[s.DedupKey()] {
			continue
		}
		usedKeys[s.DedupKey()] = true
		selected = append(selected, s)
	}

	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].RelevanceScore > selected[j].RelevanceScore
	})
	return selected
}
