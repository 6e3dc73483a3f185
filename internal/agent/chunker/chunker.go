// Package chunker splits extracted text into overlapping segments, trying
// coarse separators (paragraphs) before fine ones (single characters).
package chunker

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// DefaultSeparators go from paragraph to line, sentence, word and finally
// single characters.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Chunker is safe for concurrent use; it holds no mutable state.
type Chunker struct {
	chunkSize  int
	overlap    int
	separators []string
}

type Option func(*Chunker)

// WithChunkSize sets the maximum chunk length in characters.
func WithChunkSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets how many characters adjacent chunks may share.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

func WithSeparators(seps []string) Option {
	return func(c *Chunker) {
		if len(seps) > 0 {
			c.separators = seps
		}
	}
}

func New(opts ...Option) *Chunker {
	c := &Chunker{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DefaultSeparators,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}
	return c
}

func (c *Chunker) ChunkSize() int { return c.chunkSize }
func (c *Chunker) Overlap() int   { return c.overlap }

// Split returns the ordered, non-empty chunks of text.
func (c *Chunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.split(text, c.separators)
}

func (c *Chunker) split(text string, separators []string) []string {
	var final []string

	sep := separators[len(separators)-1]
	var rest []string
	for i, s := range separators {
		if s == "" {
			sep = s
			break
		}
		if strings.Contains(text, s) {
			sep = s
			rest = separators[i+1:]
			break
		}
	}

	var good []string
	for _, piece := range splitOn(text, sep) {
		if length(piece) < c.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, c.merge(good, sep)...)
			good = nil
		}
		if len(rest) == 0 {
			final = appendChunk(final, piece)
		} else {
			final = append(final, c.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		final = append(final, c.merge(good, sep)...)
	}
	return final
}

// merge packs small pieces into chunks up to chunkSize, carrying up to
// overlap characters of trailing pieces into the next chunk.
func (c *Chunker) merge(pieces []string, sep string) []string {
	sepLen := length(sep)
	var (
		docs    []string
		current []string
		total   int
	)

	joinCost := func() int {
		if len(current) > 0 {
			return sepLen
		}
		return 0
	}

	for _, p := range pieces {
		l := length(p)
		if total+l+joinCost() > c.chunkSize && len(current) > 0 {
			docs = appendChunk(docs, strings.Join(current, sep))
			for total > c.overlap || (total+l+joinCost() > c.chunkSize && total > 0) {
				drop := length(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}
		current = append(current, p)
		total += l
		if len(current) > 1 {
			total += sepLen
		}
	}
	if len(current) > 0 {
		docs = appendChunk(docs, strings.Join(current, sep))
	}
	return docs
}

func splitOn(text, sep string) []string {
	var parts []string
	if sep == "" {
		parts = make([]string, 0, len(text))
		for _, r := range text {
			parts = append(parts, string(r))
		}
	} else {
		parts = strings.Split(text, sep)
	}

	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func appendChunk(chunks []string, s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return chunks
	}
	return append(chunks, s)
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}
