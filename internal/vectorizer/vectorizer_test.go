// internal/vectorizer/vectorizer_test.go
package vectorizer

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "helpdesk-workers/internal/common/errors"
)

const testDimension = 384

func TestEmbed_Dimension(t *testing.T) {
	v := New(testDimension)

	tests := []struct {
		name string
		text string
	}{
		{"simple sentence", "My card was charged twice, please refund"},
		{"single word", "refund"},
		{"unicode", "Zürich café naïve"},
		{"digits and punctuation", "Order #12345!! arrived broken... help?"},
		{"long text", strings.Repeat("the payment failed with an error. ", 200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vec, err := v.Embed(tt.text)
			require.NoError(t, err)
			assert.Len(t, vec, testDimension)
			for i, x := range vec {
				assert.False(t, math.IsNaN(x), "NaN at dim %d", i)
				assert.False(t, math.IsInf(x, 0), "Inf at dim %d", i)
			}
		})
	}
}

func TestEmbed_TinyDimension(t *testing.T) {
	// A dimension too small to hold the word-hash band must skip that band,
	// not divide by zero.
	v := New(1)

	var vec []float64
	require.NotPanics(t, func() {
		var err error
		vec, err = v.Embed("refund please")
		require.NoError(t, err)
	})
	require.Len(t, vec, 1)
	assert.False(t, math.IsNaN(vec[0]))
}

func TestEmbed_Deterministic(t *testing.T) {
	v := New(testDimension)

	a, err := v.Embed("I want a refund for my payment")
	require.NoError(t, err)
	b, err := v.Embed("I want a refund for my payment")
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestEmbed_UnitNorm(t *testing.T) {
	v := New(testDimension)

	vec, err := v.Embed("shipping delayed, where is my package")
	require.NoError(t, err)

	var sum float64
	for _, x := range vec {
		sum += x * x
	}
	assert.InDelta(t, 1.0, math.Sqrt(sum), 1e-9)
}

func TestEmbed_EmptyInput(t *testing.T) {
	v := New(testDimension)

	for _, text := range []string{"", "   ", "\n\t  "} {
		_, err := v.Embed(text)
		assert.ErrorIs(t, err, stderrors.ErrEmptyInput)
	}
}

func TestEmbedBatch_IsolatesFailures(t *testing.T) {
	v := New(testDimension)

	out := v.EmbedBatch([]string{"refund please", "", "login broken"})

	require.Len(t, out, 3)
	assert.Len(t, out[1], testDimension)
	for _, x := range out[1] {
		assert.Zero(t, x)
	}
	assert.NotEqual(t, out[0], out[1])
}

func TestCosineSimilarity(t *testing.T) {
	t.Run("self similarity is one", func(t *testing.T) {
		v := New(testDimension)
		vec, err := v.Embed("billing question about my invoice")
		require.NoError(t, err)

		sim, err := CosineSimilarity(vec, vec)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, sim, 1e-9)
	})

	t.Run("symmetric", func(t *testing.T) {
		v := New(testDimension)
		a, _ := v.Embed("refund my payment")
		b, _ := v.Embed("tracking number for my order")

		ab, err := CosineSimilarity(a, b)
		require.NoError(t, err)
		ba, err := CosineSimilarity(b, a)
		require.NoError(t, err)
		assert.InDelta(t, ab, ba, 1e-12)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		_, err := CosineSimilarity([]float64{1, 2}, []float64{1, 2, 3})
		assert.ErrorIs(t, err, stderrors.ErrDimensionMismatch)
	})

	t.Run("zero vector yields zero", func(t *testing.T) {
		sim, err := CosineSimilarity([]float64{0, 0, 0}, []float64{1, 2, 3})
		require.NoError(t, err)
		assert.Zero(t, sim)
	})

	t.Run("related texts score higher than unrelated", func(t *testing.T) {
		v := New(testDimension)
		refund1, _ := v.Embed("I want a refund for my payment")
		refund2, _ := v.Embed("refund billing payment charge")
		shipping, _ := v.Embed("package tracking delivery courier shipment")

		related, _ := CosineSimilarity(refund1, refund2)
		unrelated, _ := CosineSimilarity(refund1, shipping)
		assert.Greater(t, related, unrelated)
	})
}

func TestChunk(t *testing.T) {
	t.Run("short text returned whole", func(t *testing.T) {
		chunks := Chunk("short text", 100, 10)
		assert.Equal(t, []string{"short text"}, chunks)
	})

	t.Run("covers whole input", func(t *testing.T) {
		// Non-repeating text so each chunk has a unique position.
		var sb strings.Builder
		for i := 0; i < 120; i++ {
			sb.WriteString("Sentence number ")
			sb.WriteByte(byte('a' + i%26))
			sb.WriteByte(byte('a' + (i/26)%26))
			sb.WriteString(" talks about billing. ")
		}
		text := sb.String()

		chunks := Chunk(text, 200, 40)
		require.NotEmpty(t, chunks)

		covered := 0
		for _, c := range chunks {
			pos := strings.Index(text, c)
			require.GreaterOrEqual(t, pos, 0, "chunk must be a span of the input")
			assert.LessOrEqual(t, pos, covered, "no gap between neighboring chunks")
			if end := pos + len(c); end > covered {
				covered = end
			}
		}
		assert.Equal(t, len(text), covered)
	})

	t.Run("spans address the input", func(t *testing.T) {
		// Non-repeating text so each window has exactly one position.
		var sb strings.Builder
		for i := 0; i < 120; i++ {
			sb.WriteString("Sentence number ")
			sb.WriteByte(byte('a' + i%26))
			sb.WriteByte(byte('a' + (i/26)%26))
			sb.WriteString(" talks about billing. ")
		}
		text := sb.String()

		spans := ChunkSpans(text, 200, 40)
		require.NotEmpty(t, spans)
		for _, sp := range spans {
			assert.Equal(t, strings.Index(text, text[sp.Start:sp.End]), sp.Start,
				"span offsets must match the window's real position")
		}
	})

	t.Run("chunk sizes bounded", func(t *testing.T) {
		text := strings.Repeat("abcdefghij", 100)
		for _, c := range Chunk(text, 150, 30) {
			assert.LessOrEqual(t, len(c), 150)
			assert.GreaterOrEqual(t, len(c), 10)
		}
	})

	t.Run("prefers sentence boundaries", func(t *testing.T) {
		text := strings.Repeat("One short sentence here. ", 30)
		for _, c := range Chunk(text, 120, 20)[:2] {
			assert.True(t, strings.HasSuffix(strings.TrimSpace(c), "."),
				"chunk should end on a sentence terminator: %q", c)
		}
	})

	t.Run("terminates for tiny maxSize", func(t *testing.T) {
		// Would loop forever if the window start ever failed to advance.
		chunks := Chunk(strings.Repeat("x", 500), 1, 0)
		assert.Empty(t, chunks) // all chunks shorter than 10 chars are dropped
	})

	t.Run("terminates when overlap equals maxSize", func(t *testing.T) {
		chunks := Chunk(strings.Repeat("word and text. ", 100), 50, 50)
		assert.NotEmpty(t, chunks)
	})
}

func TestFitDimension(t *testing.T) {
	assert.Len(t, FitDimension([]float64{1, 2, 3}, 5), 5)
	assert.Len(t, FitDimension([]float64{1, 2, 3, 4, 5, 6}, 4), 4)

	same := []float64{1, 2}
	assert.Equal(t, same, FitDimension(same, 2))

	padded := FitDimension([]float64{1, 2}, 4)
	assert.Equal(t, []float64{1, 2, 0, 0}, padded)
}
