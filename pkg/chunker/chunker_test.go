package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wordflowlab/careerpilot/pkg/types"
)

func reassemble(chunks []types.Chunk, overlap int) string {
	var b strings.Builder
	for i, c := range chunks {
		r := []rune(c.Text)
		if i == 0 {
			b.WriteString(string(r))
			continue
		}
		b.WriteString(string(r[overlap:]))
	}
	return b.String()
}

func TestNew(t *testing.T) {
	_, err := New(0, 0)
	assert.Error(t, err)
	_, err = New(100, 100)
	assert.Error(t, err)
	_, err = New(100, -1)
	assert.Error(t, err)

	s, err := New(100, 0)
	require.NoError(t, err)
	assert.Equal(t, 100, s.Size())
}

func TestSplit_ShortText(t *testing.T) {
	s := MustNew(1000, 200)

	t.Run("短文本只产生一个完全相同的片段", func(t *testing.T) {
		doc := types.Document{ID: "d1", Text: "Senior Go developer.\n\nSkills: Go, SQL."}
		chunks := Collect(s.Split(doc))
		require.Len(t, chunks, 1)
		assert.Equal(t, doc.Text, chunks[0].Text)
		assert.Equal(t, "d1", chunks[0].DocumentID)
		assert.Equal(t, 0, chunks[0].Index)
	})

	t.Run("恰好等于 size", func(t *testing.T) {
		text := strings.Repeat("x", 1000)
		chunks := Collect(s.Split(types.Document{Text: text}))
		require.Len(t, chunks, 1)
		assert.Equal(t, text, chunks[0].Text)
	})

	t.Run("空文本不产生片段", func(t *testing.T) {
		assert.Empty(t, Collect(s.Split(types.Document{Text: ""})))
	})
}

func TestSplit_HardCut(t *testing.T) {
	s := MustNew(1000, 200)
	text := strings.Repeat("a", 3000)

	chunks := Collect(s.Split(types.Document{ID: "cv", Text: text}))
	require.Len(t, chunks, 4)

	wantSpans := [][2]int{{0, 1000}, {800, 1800}, {1600, 2600}, {2400, 3000}}
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, wantSpans[i][0], c.Start, "chunk %d start", i)
		assert.Equal(t, wantSpans[i][1], c.End, "chunk %d end", i)
	}
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1].Text)
		cur := []rune(chunks[i].Text)
		assert.Equal(t, string(prev[len(prev)-200:]), string(cur[:200]))
	}
	assert.Equal(t, text, reassemble(chunks, 200))
}

func TestSplit_PrefersBoundaries(t *testing.T) {
	s := MustNew(40, 5)
	text := "First paragraph is here.\n\nSecond paragraph follows with more words in it."

	chunks := Collect(s.Split(types.Document{Text: text}))
	require.GreaterOrEqual(t, len(chunks), 2)
	assert.True(t, strings.HasSuffix(chunks[0].Text, "\n\n"), "first cut should land on the paragraph break: %q", chunks[0].Text)
	assert.Equal(t, text, reassemble(chunks, 5))
}

func TestSplit_RoundTripLaw(t *testing.T) {
	texts := []string{
		strings.Repeat("The quick brown fox jumps over the lazy dog. ", 80),
		strings.Repeat("línea con acentos y ñ\n", 120),
		strings.Repeat("段落内容，包含中文字符。\n\n", 60),
		strings.Repeat("z", 517),
	}
	params := [][2]int{{1000, 200}, {2000, 400}, {100, 0}, {64, 63}, {7, 3}}

	for _, text := range texts {
		for _, p := range params {
			s := MustNew(p[0], p[1])
			chunks := Collect(s.Split(types.Document{Text: text}))
			require.NotEmpty(t, chunks)

			for i, c := range chunks {
				assert.LessOrEqual(t, len([]rune(c.Text)), p[0])
				assert.Equal(t, i, c.Index)
				if i > 0 {
					assert.Equal(t, chunks[i-1].End-p[1], c.Start)
				}
			}
			assert.Equal(t, text, reassemble(chunks, p[1]), "size=%d overlap=%d", p[0], p[1])
		}
	}
}

func TestSplit_Restartable(t *testing.T) {
	s := MustNew(50, 10)
	seq := s.Split(types.Document{Text: strings.Repeat("word ", 100)})

	first := Collect(seq)
	second := Collect(seq)
	assert.Equal(t, first, second)

	n := 0
	for range seq {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}

func TestSplitText(t *testing.T) {
	s := MustNew(10, 2)
	parts := s.SplitText("abcdefghijklmnopqrstuvwxyz")
	require.NotEmpty(t, parts)
	assert.Equal(t, "abcdefghij", parts[0])
}
