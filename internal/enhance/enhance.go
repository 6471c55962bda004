// Package enhance rewrites a prompt locally into a longer, structured request.
// It is the offline fallback whenever remote optimization is unavailable.
package enhance

import (
	"strconv"
	"strings"
	"unicode/utf16"
)

// ShortThreshold is the Length below which a prompt gets the short suffix
// instead of the full template.
const ShortThreshold = 20

// ShortSuffix is appended to prompts shorter than ShortThreshold.
const ShortSuffix = " - Please provide a detailed response with examples, considerations, and step-by-step explanation where applicable. Format the response in a clear, structured manner with headings and bullet points."

const templatePrefix = "I need you to act as an expert in this field when responding to the following request:\n  \n"

// Sections lists the numbered parts the long template asks for.
var Sections = []string{
	"A brief introduction to the topic",
	"Detailed analysis and explanation",
	"Practical examples or applications",
	"Considerations or limitations",
	"A brief conclusion",
}

const templateSuffix = "Use markdown formatting for readability with headings, bullet points, and emphasis where appropriate."

// Length counts s in UTF-16 code units, the unit prompt lengths are measured
// in. Characters outside the Basic Multilingual Plane count twice.
func Length(s string) int {
	n := 0
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}

// Enhance returns the structured rewrite of prompt. It is deterministic.
func Enhance(prompt string) string {
	if Length(prompt) < ShortThreshold {
		return prompt + ShortSuffix
	}

	var b strings.Builder
	b.WriteString(templatePrefix)
	b.WriteString(prompt)
	b.WriteString("\n\nPlease structure your response with:\n")
	for i, s := range Sections {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(s)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(templateSuffix)
	return b.String()
}

