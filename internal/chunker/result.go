package chunker

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Result sheets are parsed per student: a pass/fail marker line carries the
// name and outcome, and a bounded backward window of preceding lines carries
// the total and per-subject marks. This is a best-effort heuristic extractor
// for the layouts the college publishes, not a general parser.

// backwardWindow bounds how many preceding lines are scanned per student.
const backwardWindow = 6

var (
	passFailRe    = regexp.MustCompile(`--\s*(P|F)\b`)
	semesterRe    = regexp.MustCompile(`(?i)sem(?:ester)?\s*[:.\-]?\s*(\d{1,2})\b`)
	subjectMarkRe = regexp.MustCompile(`^\s*([A-Za-z]{2,6}\d{3,4})\s+(\d{1,3})\b`)
	totalMarksRe  = regexp.MustCompile(`\b(\d{3})\b`)
)

// ChunkResult emits one structured text block per detected student.
// Lines without a pass/fail marker contribute only through the backward
// window; no marker lines at all yields an empty sequence.
func ChunkResult(text string) []Chunk {
	lines := splitLines(text)

	semester := "Unknown"
	if m := semesterRe.FindStringSubmatch(text); m != nil {
		semester = m[1]
	}

	var chunks []Chunk
	for i, line := range lines {
		m := passFailRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		name := strings.TrimSpace(line[:strings.Index(line, "--")])
		if name == "" {
			continue
		}

		outcome := "Fail"
		if m[1] == "P" {
			outcome = "Pass"
		}

		total, subjects := scanBackward(lines, i)

		var b strings.Builder
		fmt.Fprintf(&b, "Name: %s\n", name)
		fmt.Fprintf(&b, "Semester: %s\n", semester)
		fmt.Fprintf(&b, "Overall Result: %s\n", outcome)
		if total != "" {
			fmt.Fprintf(&b, "Total Marks Obtained: %s\n", total)
		}
		if len(subjects) > 0 {
			b.WriteString("Subject Marks:\n")
			for _, s := range subjects {
				fmt.Fprintf(&b, "- %s: %s\n", s.code, s.marks)
			}
		}

		chunks = append(chunks, Chunk{
			Text:        strings.TrimRight(b.String(), "\n"),
			SubjectData: marshalSubjects(subjects),
		})
	}
	return chunks
}

type subjectMark struct {
	code  string
	marks string
}

// scanBackward walks up to backwardWindow lines before the marker line,
// collecting subject-code marks and the first standalone 3-digit total.
// Subject lines never double as the total line.
func scanBackward(lines []string, markerIdx int) (string, []subjectMark) {
	start := markerIdx - backwardWindow
	if start < 0 {
		start = 0
	}

	total := ""
	var subjects []subjectMark
	for j := markerIdx - 1; j >= start; j-- {
		line := lines[j]
		if sm := subjectMarkRe.FindStringSubmatch(line); sm != nil {
			subjects = append(subjects, subjectMark{code: strings.ToUpper(sm[1]), marks: sm[2]})
			continue
		}
		if total == "" {
			if tm := totalMarksRe.FindStringSubmatch(line); tm != nil {
				total = tm[1]
			}
		}
	}

	// The backward scan collects nearest-first; restore document order.
	for a, b := 0, len(subjects)-1; a < b; a, b = a+1, b-1 {
		subjects[a], subjects[b] = subjects[b], subjects[a]
	}
	return total, subjects
}

func marshalSubjects(subjects []subjectMark) *string {
	if len(subjects) == 0 {
		return nil
	}
	m := make(map[string]string, len(subjects))
	for _, s := range subjects {
		m[s.code] = s.marks
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	out := string(data)
	return &out
}
