package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want DocType
	}{
		{"empty text", "", General},
		{"plain prose", "The library will remain open during the holidays.", General},
		{"result by sgpi", "Seat No 1234\nSGPI 8.5", Result},
		{"result by grade sheet", "GRADE SHEET\nSomething else", Result},
		{"result by pass marker", "JOHN DOE -- P", Result},
		{"syllabus by objectives", "Course Objectives\n1. Understand databases", Syllabus},
		{"syllabus by scheme", "Teaching Scheme for the semester", Syllabus},
		{"event by notice", "NOTICE\nAll students must attend", Event},
		{"event by academic year", "Academic Year 2025-26 activities", Event},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text))
		})
	}
}

func TestClassifyPrecedence(t *testing.T) {
	// Result wins over syllabus, syllabus wins over event.
	text := "Syllabus\nGRADE SHEET\nNOTICE"
	assert.Equal(t, Result, Classify(text))

	text = "Syllabus\nNOTICE"
	assert.Equal(t, Syllabus, Classify(text))
}

func TestClassifyIsCaseSensitive(t *testing.T) {
	// Markers are layout artifacts; lowercase variants are ordinary prose.
	assert.Equal(t, General, Classify("the sgpi calculation is described in the handbook"))
	assert.Equal(t, General, Classify("see the notice board"))
}

func TestDocTypeString(t *testing.T) {
	assert.Equal(t, "result", Result.String())
	assert.Equal(t, "syllabus", Syllabus.String())
	assert.Equal(t, "event", Event.String())
	assert.Equal(t, "general", General.String())
	assert.Equal(t, "general", DocType(42).String())
}
