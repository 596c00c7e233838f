package sse

import "strings"

const (
	dataPrefix    = "data:"
	commentPrefix = ":"

	// DoneSentinel is the payload that terminates an OpenAI-compatible stream.
	DoneSentinel = "[DONE]"
)

// Classify inspects one complete line (without its line terminator).
//
// The prefix match on "data:" is case-sensitive. Lines that carry any other
// field are ignored, so vendor extensions never abort decoding.
func Classify(line string) Line {
	if line == "" || strings.HasPrefix(line, commentPrefix) {
		return Line{Kind: KindIgnore}
	}

	rest, ok := strings.CutPrefix(line, dataPrefix)
	if !ok {
		return Line{Kind: KindIgnore}
	}

	rest = strings.TrimSpace(rest)
	switch rest {
	case DoneSentinel:
		return Line{Kind: KindTerminator}
	case "":
		return Line{Kind: KindIgnore}
	default:
		return Line{Kind: KindData, Payload: rest}
	}
}
