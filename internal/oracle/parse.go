package oracle

import (
	"regexp"
	"strings"
)

// leadingMarker strips list bullets and "1." / "2)" style numbering.
var leadingMarker = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s*`)

// ParseAssignments extracts "<agent>: <task>" pairs from free text,
// one per line. Lines without a colon, or with an empty agent or task
// side, are skipped rather than failing the parse.
func ParseAssignments(text string) []Assignment {
	var out []Assignment
	for _, line := range strings.Split(text, "\n") {
		line = leadingMarker.ReplaceAllString(strings.TrimSpace(line), "")
		if line == "" {
			continue
		}
		agent, task, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		agent = strings.TrimSpace(agent)
		task = strings.TrimSpace(task)
		if agent == "" || task == "" {
			continue
		}
		// A colon deep inside prose is not an assignment line.
		if strings.ContainsAny(agent, ".!?") || len(strings.Fields(agent)) > 5 {
			continue
		}
		out = append(out, Assignment{AgentName: agent, TaskDescription: task})
	}
	return out
}

// ParsePriorityList extracts an ordered task list from free text.
// Accepts numbered ("1. x", "2) x") and bulleted ("- x") lines; bare
// non-empty lines are kept too so unnumbered oracle output degrades
// gracefully. Blank lines and section headers are skipped.
func ParsePriorityList(text string) []string {
	var out []string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		stripped := leadingMarker.ReplaceAllString(line, "")
		if stripped == "" {
			continue
		}
		// Section headers like "PRIORITIES:" are not tasks.
		if strings.HasSuffix(stripped, ":") && len(strings.Fields(stripped)) <= 3 {
			continue
		}
		out = append(out, stripped)
	}
	return out
}

// section extracts the body of a named section from oracle output.
// Sections are introduced by "NAME:" on its own line and run until the
// next known header or end of text. Returns "" when absent.
func section(text, name string, headers []string) string {
	lines := strings.Split(text, "\n")
	var body []string
	inSection := false
	for _, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		upper := strings.ToUpper(trimmed)
		if strings.HasPrefix(upper, name+":") {
			inSection = true
			if rest := strings.TrimSpace(trimmed[len(name)+1:]); rest != "" {
				body = append(body, rest)
			}
			continue
		}
		if inSection {
			isHeader := false
			for _, h := range headers {
				if strings.HasPrefix(upper, h+":") {
					isHeader = true
					break
				}
			}
			if isHeader {
				break
			}
			body = append(body, raw)
		}
	}
	return strings.TrimSpace(strings.Join(body, "\n"))
}

var decisionHeaders = []string{"DECISION", "ASSIGNMENTS", "PRIORITIES", "RATIONALE"}

// ParseDecision parses a full oracle response into a Decision. The
// expected shape is the sectioned format requested by the prompt; when
// sections are missing the whole text is treated as assignment and
// priority material so malformed output still yields a best-effort plan.
func ParseDecision(text string) *Decision {
	d := &Decision{
		Summary:   firstLine(section(text, "DECISION", decisionHeaders)),
		Rationale: section(text, "RATIONALE", decisionHeaders),
	}

	assignBody := section(text, "ASSIGNMENTS", decisionHeaders)
	priorityBody := section(text, "PRIORITIES", decisionHeaders)
	if assignBody == "" && priorityBody == "" {
		// Unstructured output: scan the whole text for assignment lines
		// and keep only explicitly numbered lines as priorities.
		d.Assignments = ParseAssignments(text)
		d.PriorityTasks = numberedLines(text)
	} else {
		d.Assignments = ParseAssignments(assignBody)
		d.PriorityTasks = ParsePriorityList(priorityBody)
	}

	if d.Summary == "" {
		d.Summary = firstLine(text)
	}
	return d
}

var numberedLine = regexp.MustCompile(`^\s*\d+[.)]\s*(.+)$`)

// numberedLines returns the content of "1. x" style lines, in order.
func numberedLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if m := numberedLine.FindStringSubmatch(line); m != nil {
			if task := strings.TrimSpace(m[1]); task != "" {
				out = append(out, task)
			}
		}
	}
	return out
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
