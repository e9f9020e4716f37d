// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package report

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	headerOpen    = `<h3 style="color: #2563eb; font-weight: bold; margin: 16px 0 8px 0;">`
	itemOpen      = `<li style="margin: 4px 0;">`
	paragraphOpen = `<p style="margin: 8px 0; line-height: 1.6;">`
	containerOpen = `<div style="font-family: system-ui, -apple-system, sans-serif; max-width: 800px; margin: 0 auto; padding: 20px;">`
)

var bulletPrefixes = []string{"- ", "• ", "* "}

// FormatForDisplay renders report text as inline-styled HTML for the web
// client. Each line is classified on its own:
//
//   - headers: ends with ':' (under 100 chars), starts with '#', or is
//     upper case with at most 10 words and under 50 chars
//   - bullets: "- ", "• " or "* ", with the marker removed
//   - numbered items: "1." through "19.", kept verbatim
//   - everything else is a paragraph; blank lines become <br>
//
// Every item opens its own <ul>; lists are closed only before a paragraph
// or a blank line. The web client depends on this exact markup.
func FormatForDisplay(content string) string {
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))

	for _, line := range lines {
		s := strings.TrimSpace(line)
		switch {
		case s == "":
			out = append(out, "<br>")
		case isHeader(s):
			out = append(out, headerOpen+s+"</h3>")
		case hasBullet(s):
			_, rest, _ := strings.Cut(s, " ")
			out = append(out, itemOpen+rest+"</li>")
		case isNumbered(s):
			out = append(out, itemOpen+s+"</li>")
		default:
			out = append(out, paragraphOpen+s+"</p>")
		}
	}

	result := strings.Join(out, "\n")
	result = strings.ReplaceAll(result, "<li", "<ul><li")
	result = strings.ReplaceAll(result, "</li>\n<p", "</li></ul>\n<p")
	result = strings.ReplaceAll(result, "</li>\n<br>", "</li></ul>\n<br>")

	return containerOpen + result + "</div>"
}

func isHeader(s string) bool {
	n := utf8.RuneCountInString(s)
	if strings.HasSuffix(s, ":") && n < 100 {
		return true
	}
	if strings.HasPrefix(s, "#") {
		return true
	}
	return isUpper(s) && len(strings.Fields(s)) <= 10 && n < 50
}

// isUpper reports whether s has at least one cased letter and no lower
// case ones.
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			cased = true
		}
	}
	return cased
}

func hasBullet(s string) bool {
	for _, p := range bulletPrefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func isNumbered(s string) bool {
	for i := 1; i < 20; i++ {
		if strings.HasPrefix(s, strconv.Itoa(i)+".") {
			return true
		}
	}
	return false
}
