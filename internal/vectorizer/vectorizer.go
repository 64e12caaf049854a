// Package vectorizer turns text into fixed-length feature vectors for
// similarity search. The extractor is deterministic and explainable: the same
// text always produces the same vector, and every dimension maps to a named
// feature family (word hashes, domain keywords, text statistics).
package vectorizer

import (
	"math"
	"regexp"
	"strings"

	stderrors "helpdesk-workers/internal/common/errors"
)

var punctRe = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)

// categoryKeywords drive the domain-signal band of the vector. Order matters:
// each category owns a fixed slice of dimensions.
var categoryKeywords = [][]string{
	{"payment", "invoice", "charge", "refund", "billing", "subscription", "price", "card"},
	{"error", "bug", "crash", "login", "password", "technical", "broken", "install"},
	{"shipping", "delivery", "package", "tracking", "order", "shipment", "address", "courier"},
	{"help", "question", "support", "account", "request", "information", "assistance", "general"},
}

// Vectorizer produces embeddings of a configured dimension.
type Vectorizer struct {
	dimension int
}

func New(dimension int) *Vectorizer {
	return &Vectorizer{dimension: dimension}
}

// Dimension returns the configured vector length.
func (v *Vectorizer) Dimension() int {
	return v.dimension
}

// Embed converts text into a unit-normalized vector. Fails with EMPTY_INPUT
// on blank or whitespace-only text.
func (v *Vectorizer) Embed(text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, stderrors.NewEmptyInputError("embed called with blank text")
	}

	vec := make([]float64, v.dimension)

	normalized := strings.ToLower(punctRe.ReplaceAllString(text, " "))
	words := strings.Fields(normalized)

	wordBand := v.dimension * 52 / 100
	categoryBand := v.dimension * 26 / 100
	statsStart := wordBand + categoryBand

	// Band 1: frequency-weighted word hashes. Degenerate dimensions can leave
	// the band empty; skip it rather than divide by zero.
	if len(words) > 0 && wordBand > 0 {
		freq := make(map[string]int, len(words))
		for _, w := range words {
			freq[w]++
		}
		for w, n := range freq {
			idx := hashString(w) % wordBand
			vec[idx] += float64(n) / float64(len(words))
		}
	}

	// Band 2: domain keyword scores, one fixed slice per category.
	perCategory := categoryBand / len(categoryKeywords)
	for c, keywords := range categoryKeywords {
		score := 0.0
		for _, kw := range keywords {
			score += float64(strings.Count(normalized, kw))
		}
		if score == 0 {
			continue
		}
		base := wordBand + c*perCategory
		for i := 0; i < perCategory; i++ {
			// Decaying fill keeps the band informative without dominating it.
			vec[base+i] = score / float64(i+1)
		}
	}

	// Band 3: statistical features spread over the remaining dimensions.
	stats := textStatistics(text, words)
	remaining := v.dimension - statsStart
	for i, s := range stats {
		if remaining <= 0 {
			break
		}
		vec[statsStart+(i*remaining/len(stats))] = s
	}

	normalize(vec)
	return vec, nil
}

// EmbedBatch embeds each text independently. A failing item yields a zero
// vector in its slot rather than aborting the batch.
func (v *Vectorizer) EmbedBatch(texts []string) [][]float64 {
	out := make([][]float64, len(texts))
	for i, t := range texts {
		vec, err := v.Embed(t)
		if err != nil {
			vec = make([]float64, v.dimension)
		}
		out[i] = vec
	}
	return out
}

// Span is a half-open [Start, End) byte range of a chunked text.
type Span struct {
	Start int
	End   int
}

// ChunkSpans computes overlapping windows of at most maxSize characters,
// preferring to break at a sentence terminator found after the window's
// midpoint. Spans shorter than 10 characters are dropped. The window start
// strictly increases, so the loop always terminates.
func ChunkSpans(text string, maxSize, overlap int) []Span {
	if maxSize < 1 {
		maxSize = 1
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxSize {
		overlap = maxSize - 1
	}

	if len(text) <= maxSize {
		return []Span{{Start: 0, End: len(text)}}
	}

	var spans []Span
	start := 0
	for start < len(text) {
		end := start + maxSize
		if end > len(text) {
			end = len(text)
		} else {
			// Prefer ending at the last sentence boundary in the back half of
			// the window.
			if cut := lastSentenceEnd(text[start:end]); cut > maxSize/2 {
				end = start + cut
			}
		}

		if end-start >= 10 {
			spans = append(spans, Span{Start: start, End: end})
		}

		if end >= len(text) {
			break
		}

		next := end - overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return spans
}

// Chunk returns the text of each span from ChunkSpans.
func Chunk(text string, maxSize, overlap int) []string {
	spans := ChunkSpans(text, maxSize, overlap)
	chunks := make([]string, len(spans))
	for i, sp := range spans {
		chunks[i] = text[sp.Start:sp.End]
	}
	return chunks
}

// lastSentenceEnd returns the index just past the last '.', '?' or '!' in s,
// or -1 if none exists.
func lastSentenceEnd(s string) int {
	last := -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', '?', '!':
			last = i + 1
		}
	}
	return last
}

// CosineSimilarity returns the cosine of the angle between a and b in [-1,1].
// Fails with DIMENSION_MISMATCH if lengths differ; returns 0 when either
// vector is all-zero.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, stderrors.NewDimensionMismatchError(len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp float drift so callers can rely on the [-1,1] contract.
	if sim > 1 {
		sim = 1
	} else if sim < -1 {
		sim = -1
	}
	return sim, nil
}

// FitDimension repairs a vector to the wanted length by truncating or
// zero-padding, keeping the similarity store consistent when a numeric source
// disagrees on dimension.
func FitDimension(vec []float64, dimension int) []float64 {
	if len(vec) == dimension {
		return vec
	}
	out := make([]float64, dimension)
	copy(out, vec)
	return out
}

func textStatistics(text string, words []string) []float64 {
	runes := []rune(text)
	var upper, digits, punct int
	for _, r := range runes {
		switch {
		case r >= 'A' && r <= 'Z':
			upper++
		case r >= '0' && r <= '9':
			digits++
		case strings.ContainsRune(".,;:!?'\"()-", r):
			punct++
		}
	}

	total := float64(len(runes))
	if total == 0 {
		total = 1
	}

	unique := make(map[string]struct{}, len(words))
	var wordLen int
	for _, w := range words {
		unique[w] = struct{}{}
		wordLen += len(w)
	}

	wordCount := float64(len(words))
	avgWordLen := 0.0
	uniqueRatio := 0.0
	if wordCount > 0 {
		avgWordLen = float64(wordLen) / wordCount / 10.0
		uniqueRatio = float64(len(unique)) / wordCount
	}

	sentences := strings.Count(text, ".") + strings.Count(text, "?") + strings.Count(text, "!")
	complexity := 0.0
	if sentences > 0 {
		complexity = wordCount / float64(sentences) / 20.0
	}

	return []float64{
		math.Min(1, total/2000.0),
		math.Min(1, wordCount/400.0),
		float64(upper) / total,
		float64(digits) / total,
		float64(punct) / total,
		uniqueRatio,
		math.Min(1, avgWordLen),
		math.Min(1, complexity),
	}
}

// normalize scales vec to unit length in place. The zero vector stays zero.
func normalize(vec []float64) {
	var sum float64
	for _, x := range vec {
		sum += x * x
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
}

func hashString(s string) int {
	// FNV-1a, truncated to a non-negative int.
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return int(h & 0x7fffffff)
}
