// Package chunking splits extracted text into overlapping word windows that
// are embedded one by one.
package chunking

import "strings"

const (
	DefaultWords   = 200
	DefaultOverlap = 30
	// DefaultMaxChunks caps how many chunks one document produces.
	DefaultMaxChunks = 200
)

// Options sizes the windows. Zero values take the defaults.
type Options struct {
	Words     int
	Overlap   int
	MaxChunks int
}

func (o Options) normalized() Options {
	if o.Words <= 0 {
		o.Words = DefaultWords
	}
	if o.Overlap < 0 {
		o.Overlap = 0
	}
	if o.Overlap >= o.Words {
		o.Overlap = o.Words - 1
	}
	if o.MaxChunks <= 0 {
		o.MaxChunks = DefaultMaxChunks
	}
	return o
}

// Chunk is one window of a document's text.
type Chunk struct {
	Index     int
	Content   string
	WordCount int
}

// ByWords splits text on whitespace into windows of opts.Words words, each
// starting opts.Words-opts.Overlap words after the previous one. The last
// window ends at the last word; blank text yields no chunks.
func ByWords(text string, opts Options) []Chunk {
	opts = opts.normalized()
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	step := opts.Words - opts.Overlap
	chunks := make([]Chunk, 0, min(opts.MaxChunks, len(words)/step+1))
	for start := 0; start < len(words) && len(chunks) < opts.MaxChunks; start += step {
		end := min(start+opts.Words, len(words))
		chunks = append(chunks, Chunk{
			Index:     len(chunks),
			Content:   strings.Join(words[start:end], " "),
			WordCount: end - start,
		})
		if end == len(words) {
			break
		}
	}
	return chunks
}
