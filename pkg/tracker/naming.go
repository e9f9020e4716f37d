package tracker

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	runAdjectives = []string{
		"amber", "brisk", "calm", "daring", "eager", "fancy", "gentle", "hardy",
		"icy", "jolly", "keen", "lively", "misty", "noble", "polished", "quiet",
		"rosy", "silent", "tidy", "vivid", "wild", "young", "zesty", "lucky",
	}
	runNouns = []string{
		"river", "meadow", "sky", "forest", "comet", "harbor", "lake", "glade",
		"ember", "breeze", "canyon", "dune", "field", "grove", "island", "peak",
		"pond", "ridge", "shore", "star", "sun", "wave", "wind", "valley",
	}

	unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9_]`)
)

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// RunName returns the requested name, or a generated "<adjective>-<noun>-<n>"
// name derived from id.
func RunName(requested, id string) string {
	if requested != "" {
		return requested
	}
	u := uuid.NewSHA1(uuid.NameSpaceOID, []byte(id))
	adj := runAdjectives[int(u[0])%len(runAdjectives)]
	noun := runNouns[int(u[1])%len(runNouns)]
	return fmt.Sprintf("%s-%s-%d", adj, noun, int(u[2])%100+1)
}

// SanitizeKey maps a metric key to [a-zA-Z0-9_], the common denominator of
// the metric backends. A leading digit is prefixed with an underscore.
func SanitizeKey(key string) string {
	s := unsafeKeyChars.ReplaceAllString(key, "_")
	if s == "" {
		return "_"
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "_" + s
	}
	return s
}
