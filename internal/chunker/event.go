package chunker

import "strings"

// eventBufferLimit is the size past which an accumulated buffer is emitted.
const eventBufferLimit = 400

// ChunkEvent splits event notices on all-caps heading lines, then greedily
// re-accumulates consecutive sections until the buffer passes the size
// limit, so short notice fragments travel together.
func ChunkEvent(text string) []Chunk {
	lines := splitLines(text)

	var sections []string
	var current []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" && isUpperHeading(trimmed) && len(current) > 0 {
			sections = append(sections, strings.Join(current, "\n"))
			current = current[:0]
		}
		if trimmed != "" {
			current = append(current, trimmed)
		}
	}
	if len(current) > 0 {
		sections = append(sections, strings.Join(current, "\n"))
	}

	var chunks []Chunk
	var buffer strings.Builder
	for _, section := range sections {
		if buffer.Len() > 0 {
			buffer.WriteString("\n")
		}
		buffer.WriteString(section)
		if buffer.Len() > eventBufferLimit {
			chunks = append(chunks, Chunk{Text: buffer.String()})
			buffer.Reset()
		}
	}
	if buffer.Len() > 0 {
		chunks = append(chunks, Chunk{Text: buffer.String()})
	}
	return chunks
}
