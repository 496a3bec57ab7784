// Package chunker 将长文本切分为相互重叠的定长片段。
//
// 所有长度与偏移都以 rune 计。相邻片段恰好重叠 overlap 个 rune,
// 因此 chunk[0] 拼接每个后续 chunk 去掉前 overlap 个 rune 的部分即可还原原文。
package chunker

import (
	"fmt"
	"iter"
	"unicode"

	"github.com/wordflowlab/careerpilot/pkg/types"
)

// 切分点优先级, 依次尝试: 段落、换行、句末、任意空白
var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune("! "),
	[]rune("? "),
}

// Splitter 递归字符切分器
type Splitter struct {
	size    int
	overlap int
}

// New 创建 Splitter, 要求 size > 0 且 0 <= overlap < size
func New(size, overlap int) (*Splitter, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be > 0, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", size, overlap)
	}
	return &Splitter{size: size, overlap: overlap}, nil
}

// MustNew 与 New 相同, 参数非法时 panic
func MustNew(size, overlap int) *Splitter {
	s, err := New(size, overlap)
	if err != nil {
		panic(err)
	}
	return s
}

// Size 返回最大片段长度
func (s *Splitter) Size() int { return s.size }

// Overlap 返回相邻片段的重叠长度
func (s *Splitter) Overlap() int { return s.overlap }

// Split 惰性切分文档。返回的序列可以重复遍历, 每次都从头开始。
func (s *Splitter) Split(doc types.Document) iter.Seq[types.Chunk] {
	source := doc.Source()
	return func(yield func(types.Chunk) bool) {
		for span := range s.spans(doc.Text) {
			c := types.Chunk{
				DocumentID: doc.ID,
				Source:     source,
				Index:      span.index,
				Text:       span.text,
				Start:      span.start,
				End:        span.end,
			}
			if !yield(c) {
				return
			}
		}
	}
}

// SplitText 切分纯文本, 只返回片段内容
func (s *Splitter) SplitText(text string) []string {
	var out []string
	for span := range s.spans(text) {
		out = append(out, span.text)
	}
	return out
}

// Collect 将序列物化为切片
func Collect(seq iter.Seq[types.Chunk]) []types.Chunk {
	var out []types.Chunk
	for c := range seq {
		out = append(out, c)
	}
	return out
}

type span struct {
	index      int
	start, end int
	text       string
}

func (s *Splitter) spans(text string) iter.Seq[span] {
	return func(yield func(span) bool) {
		runes := []rune(text)
		n := len(runes)
		if n == 0 {
			return
		}

		start, index := 0, 0
		for {
			if n-start <= s.size {
				yield(span{index: index, start: start, end: n, text: string(runes[start:n])})
				return
			}

			end := s.cut(runes, start)
			if !yield(span{index: index, start: start, end: end, text: string(runes[start:end])}) {
				return
			}
			start = end - s.overlap
			index++
		}
	}
}

// cut 在 (start+overlap, start+size] 内寻找最靠后的切分点,
// 找不到任何分隔符时在 start+size 处硬切。
func (s *Splitter) cut(runes []rune, start int) int {
	lo := start + s.overlap
	limit := start + s.size

	for _, sep := range separators {
		if p := lastCut(runes, sep, lo, limit); p > 0 {
			return p
		}
	}
	for p := limit; p > lo; p-- {
		if unicode.IsSpace(runes[p-1]) {
			return p
		}
	}
	return limit
}

// lastCut 返回 sep 结束位置 p (lo < p <= limit) 中最大的一个, 不存在时返回 0
func lastCut(runes, sep []rune, lo, limit int) int {
	k := len(sep)
	for p := limit; p > lo && p-k >= 0; p-- {
		if matchAt(runes, sep, p-k) {
			return p
		}
	}
	return 0
}

func matchAt(runes, sep []rune, i int) bool {
	for j, r := range sep {
		if runes[i+j] != r {
			return false
		}
	}
	return true
}
