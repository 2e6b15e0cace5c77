// Package chunker splits transcription text into pieces that fit Notion's
// per-block and per-page limits.
package chunker

const (
	// DefaultMaxSize is the longest text Notion accepts in a single rich text object.
	DefaultMaxSize = 2000
	// DefaultMaxChunks is the most children Notion accepts when creating a page.
	DefaultMaxChunks = 100
)

// Options configures chunking behavior.
type Options struct {
	MaxSize   int
	MaxChunks int
}

// DefaultOptions returns the Notion limits.
func DefaultOptions() Options {
	return Options{
		MaxSize:   DefaultMaxSize,
		MaxChunks: DefaultMaxChunks,
	}
}

// Chunk splits text into consecutive pieces of at most MaxSize characters.
// Text beyond MaxChunks pieces is dropped. Empty text returns nil.
func Chunk(text string, opts Options) []string {
	if opts.MaxSize <= 0 {
		opts = DefaultOptions()
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	var chunks []string
	for start := 0; start < len(runes); start += opts.MaxSize {
		if opts.MaxChunks > 0 && len(chunks) == opts.MaxChunks {
			break
		}
		end := start + opts.MaxSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// Truncate returns the first n characters of text.
func Truncate(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}

// Title shortens text to n characters, marking the cut with "...".
func Title(text string, n int) string {
	if len([]rune(text)) <= n {
		return text
	}
	return Truncate(text, n) + "..."
}
