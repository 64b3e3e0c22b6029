package store

import "strings"

// DefaultChunkSize is the chunk budget used when ProcessFile gets a
// non-positive size.
const DefaultChunkSize = 1000

// ChunkText splits text into sentence-bounded chunks of at most chunkSize
// characters. Sentences are accumulated greedily; a chunk is flushed when the
// next sentence would push it past the budget. A single sentence longer than
// chunkSize becomes its own oversize chunk rather than being cut mid-sentence.
func ChunkText(text string, chunkSize int) []string {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	var current strings.Builder
	for _, sentence := range sentences {
		if current.Len() > 0 && current.Len()+len(sentence)+1 > chunkSize {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}

// splitSentences splits text at sentence punctuation followed by a space
// (". ", "! ", "? ") and at blank lines. Terminators stay with their sentence.
func splitSentences(text string) []string {
	var sentences []string
	flush := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" {
			sentences = append(sentences, s)
		}
	}

	for _, paragraph := range splitBlankLines(text) {
		start := 0
		for i := 0; i < len(paragraph)-1; i++ {
			c := paragraph[i]
			if (c == '.' || c == '!' || c == '?') && paragraph[i+1] == ' ' {
				flush(paragraph[start : i+1])
				start = i + 1
			}
		}
		flush(paragraph[start:])
	}
	return sentences
}

func splitBlankLines(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	var parts []string
	for _, p := range strings.Split(normalized, "\n\n") {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
