package corpus

import (
	"regexp"
	"strings"

	"github.com/jdkato/prose/v2"
	"golang.org/x/text/unicode/norm"
)

var extraWhiteSpace = regexp.MustCompile("[[:space:]]+")

// Sanitize normalises one line of text: carriage returns are dropped, tabs
// and whitespace runs collapse to a single space, the line is trimmed and
// NFC-normalised.
func Sanitize(line string) string {
	line = strings.ReplaceAll(line, "\r", "")
	line = extraWhiteSpace.ReplaceAllString(line, " ")
	line = strings.TrimSpace(line)
	return norm.NFC.String(line)
}

// SplitSentences segments a line into sentences with prose's punkt
// segmenter. A line prose cannot segment comes back whole.
func SplitSentences(line string) []string {
	doc, err := prose.NewDocument(line,
		prose.WithTokenization(false),
		prose.WithTagging(false),
		prose.WithExtraction(false))
	if err != nil {
		return []string{line}
	}
	sentences := doc.Sentences()
	if len(sentences) == 0 {
		return []string{line}
	}
	split := make([]string, 0, len(sentences))
	for _, sentence := range sentences {
		if text := strings.TrimSpace(sentence.Text); text != "" {
			split = append(split, text)
		}
	}
	return split
}
