package chunker

import (
	"regexp"
	"strings"
)

// minSectionLen filters out stray fragments left by the section split.
const minSectionLen = 40

var sectionHeaderRe = regexp.MustCompile(`(?mi)^\s*(unit|module|chapter)\b`)

// ChunkSyllabus splits on lines that begin a new unit/module/chapter
// section. The split looks ahead so each header stays with its section;
// text before the first header forms its own section.
func ChunkSyllabus(text string) []Chunk {
	sections := splitBeforeHeaders(text)

	var chunks []Chunk
	for _, section := range sections {
		section = strings.TrimSpace(section)
		if len(section) < minSectionLen {
			continue
		}
		chunks = append(chunks, Chunk{Text: section})
	}
	return chunks
}

// splitBeforeHeaders cuts the text immediately before every header line.
func splitBeforeHeaders(text string) []string {
	locs := sectionHeaderRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []string{text}
	}

	var sections []string
	prev := 0
	for _, loc := range locs {
		if loc[0] > prev {
			sections = append(sections, text[prev:loc[0]])
		}
		prev = loc[0]
	}
	sections = append(sections, text[prev:])
	return sections
}
