package engine

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
)

// maxDetectSample bounds the bytes fed to the language detector.
const maxDetectSample = 2000

// DetectSource sniffs the dominant language of the submitted segments.
// Advisory only: the result is recorded on the job and compared against
// the configured source language, never used to reject a submission.
// Returns language.Und when the sample is too small to call.
func DetectSource(segments []string) language.Tag {
	sample := strings.TrimSpace(strings.Join(segments, " "))
	if len(sample) < 20 {
		return language.Und
	}
	if len(sample) > maxDetectSample {
		sample = truncateUTF8(sample, maxDetectSample)
	}

	info := whatlanggo.Detect(sample)
	if !info.IsReliable() {
		return language.Und
	}
	tag, err := language.Parse(info.Lang.Iso6391())
	if err != nil {
		return language.Und
	}
	return tag
}
