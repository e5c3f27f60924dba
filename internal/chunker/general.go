package chunker

import "strings"

const (
	// generalBufferLimit is the flush threshold for accumulated lines.
	generalBufferLimit = 600
	// headingMaxLen bounds what a short all-caps heading may be.
	headingMaxLen = 60
)

// ChunkGeneral accumulates lines greedily. Short all-caps lines are treated
// as headings that flush the running buffer and start a fresh one, keeping a
// heading attached to the text below it.
func ChunkGeneral(text string) []Chunk {
	lines := splitLines(text)

	var chunks []Chunk
	var buffer strings.Builder

	flush := func() {
		if buffer.Len() > 0 {
			chunks = append(chunks, Chunk{Text: buffer.String()})
			buffer.Reset()
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if len(trimmed) <= headingMaxLen && isUpperHeading(trimmed) {
			flush()
		}

		if buffer.Len() > 0 {
			buffer.WriteString(" ")
		}
		buffer.WriteString(trimmed)

		if buffer.Len() > generalBufferLimit {
			flush()
		}
	}
	flush()

	return chunks
}
