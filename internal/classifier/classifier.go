// Package classifier assigns a document type used to pick a chunking
// strategy.
package classifier

import "strings"

// DocType enumerates the supported document categories.
type DocType int

const (
	General DocType = iota
	Result
	Syllabus
	Event
)

// String returns the canonical name of the type.
func (t DocType) String() string {
	switch t {
	case Result:
		return "result"
	case Syllabus:
		return "syllabus"
	case Event:
		return "event"
	default:
		return "general"
	}
}

// Marker lists are checked in order and the first match wins, so a document
// carrying both result and syllabus markers classifies as a result sheet.
// Markers are case-sensitive on purpose: the tokens are formatting artifacts
// of the source documents, not natural language.
var (
	resultMarkers = []string{
		"SGPI",
		"Seat No",
		"-- P",
		"-- F",
		"GRADE SHEET",
	}
	syllabusMarkers = []string{
		"Course Objectives",
		"Course Outcomes",
		"Syllabus",
		"Teaching Scheme",
	}
	eventMarkers = []string{
		"Academic Year",
		"Challenge",
		"NOTICE",
		"CIRCULAR",
	}
)

// Classify inspects extracted text and returns its document type. It never
// fails: unrecognized or empty text is General.
func Classify(text string) DocType {
	if containsAny(text, resultMarkers) {
		return Result
	}
	if containsAny(text, syllabusMarkers) {
		return Syllabus
	}
	if containsAny(text, eventMarkers) {
		return Event
	}
	return General
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
