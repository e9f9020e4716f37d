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

package research

import (
	"fmt"
	"strings"
	"time"
)

// Finding is the result text of one search query.
type Finding struct {
	Query string
	Text  string
}

// Compose renders the markdown report from the search findings.
func Compose(req Request, findings []Finding, now time.Time) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s: Research Report\n\n", req.Topic)
	fmt.Fprintf(&sb, "_Generated %s_\n\n", now.UTC().Format(time.RFC1123))

	sb.WriteString("## Executive Summary\n\n")
	fmt.Fprintf(&sb, "This report gathers current web sources on %s in response to the query %q. ",
		req.Topic, req.Query)
	fmt.Fprintf(&sb, "It covers %d search queries; each section below lists the most relevant results.\n\n",
		len(findings))

	sb.WriteString("## Research Query\n\n")
	sb.WriteString(req.Query + "\n\n")

	sb.WriteString("## Findings\n\n")
	for _, f := range findings {
		fmt.Fprintf(&sb, "### %s\n\n", f.Query)
		sb.WriteString(strings.TrimSpace(f.Text) + "\n\n")
	}

	sb.WriteString("## Conclusion\n\n")
	fmt.Fprintf(&sb, "The sources above outline the current state of %s. ", req.Topic)
	sb.WriteString("Follow the linked references for full details before drawing conclusions.\n")

	return sb.String()
}
