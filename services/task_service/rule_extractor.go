package task_service

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/serisow/metrodoc/pipeline_type"
)

const ExtractedByRules = "rule-based"

var actionMarkerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)Action:\s*(.+?)(?:\n|$)`),
	regexp.MustCompile(`(?im)Action Item:\s*(.+?)(?:\n|$)`),
	regexp.MustCompile(`(?im)To Do:\s*(.+?)(?:\n|$)`),
	regexp.MustCompile(`(?im)TODO:\s*(.+?)(?:\n|$)`),
	regexp.MustCompile(`(?im)Task:\s*(.+?)(?:\n|$)`),
}

var requestPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)Please\s+(.+?)(?:\.|$|\n)`),
	regexp.MustCompile(`(?im)Kindly\s+(.+?)(?:\.|$|\n)`),
	regexp.MustCompile(`(?im)Could you\s+(.+?)(?:\?|$|\n)`),
	regexp.MustCompile(`(?im)Can you\s+(.+?)(?:\?|$|\n)`),
	regexp.MustCompile(`(?im)Would you\s+(.+?)(?:\?|$|\n)`),
}

var bulletPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?m)[-*•]\s*(.+?)(?:\n|$)`),
	regexp.MustCompile(`(?m)\d+\.\s*(.+?)(?:\n|$)`),
}

var duePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)Due by\s+(.+?)(?:\n|$)`),
	regexp.MustCompile(`(?im)Deadline:\s*(.+?)(?:\n|$)`),
	regexp.MustCompile(`(?im)Due date:\s*(.+?)(?:\n|$)`),
}

var actionVerbs = map[string]bool{
	"create": true, "develop": true, "implement": true, "build": true,
	"design": true, "write": true, "review": true, "analyze": true,
	"update": true, "fix": true, "resolve": true, "complete": true,
	"finish": true, "submit": true, "send": true, "prepare": true,
	"organize": true, "schedule": true, "arrange": true, "coordinate": true,
}

var highPriorityIndicators = []string{
	"urgent", "asap", "immediately", "critical", "emergency",
	"deadline", "due today", "due tomorrow", "high priority",
}

var lowPriorityIndicators = []string{
	"when possible", "eventually", "low priority", "nice to have",
	"optional", "if time permits",
}

var assigneePatterns = []*regexp.Regexp{
	regexp.MustCompile(`([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)\s+(?:should|will|must|needs to)`),
	regexp.MustCompile(`(?:assign to|give to|delegate to)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)`),
	regexp.MustCompile(`([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*)\s+(?:is responsible|will handle)`),
}

var dueDatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)by\s+([A-Za-z]+\s+\d{1,2})`),
	regexp.MustCompile(`(?i)due\s+([A-Za-z]+\s+\d{1,2})`),
	regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`),
	regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{4})`),
}

// ExtractRuleBased finds actionable tasks with pattern matching: explicit
// action markers, polite requests, bullet lines starting with an action
// verb, and due-date mentions.
func ExtractRuleBased(text string, sourceChunkID *int64) []pipeline_type.Task {
	var tasks []pipeline_type.Task

	appendTask := func(taskText string, priority pipeline_type.TaskPriority) {
		tasks = append(tasks, pipeline_type.Task{
			SourceChunkID: sourceChunkID,
			Text:          strings.TrimSpace(taskText),
			Assignee:      extractAssignee(taskText),
			DueDate:       extractDueDate(taskText),
			Priority:      priority,
			Status:        pipeline_type.TaskOpen,
			ExtractedBy:   ExtractedByRules,
		})
	}

	for _, re := range actionMarkerPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			taskText := strings.TrimSpace(m[1])
			if taskText != "" {
				appendTask(taskText, determinePriority(taskText))
			}
		}
	}

	for _, re := range requestPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			taskText := strings.TrimSpace(m[1])
			// Very short matches are noise.
			if len(taskText) > 10 {
				appendTask(fmt.Sprintf("Please %s", taskText), determinePriority(taskText))
			}
		}
	}

	for _, re := range bulletPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			taskText := strings.TrimSpace(m[1])
			fields := strings.Fields(taskText)
			if len(fields) == 0 {
				continue
			}
			if actionVerbs[strings.ToLower(fields[0])] && len(taskText) > 5 {
				appendTask(taskText, determinePriority(taskText))
			}
		}
	}

	for _, re := range duePatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			taskText := strings.TrimSpace(m[1])
			if taskText != "" {
				// A stated deadline implies urgency.
				appendTask(taskText, pipeline_type.PriorityHigh)
			}
		}
	}

	return tasks
}

func determinePriority(text string) pipeline_type.TaskPriority {
	lower := strings.ToLower(text)

	for _, indicator := range highPriorityIndicators {
		if strings.Contains(lower, indicator) {
			return pipeline_type.PriorityHigh
		}
	}
	for _, indicator := range lowPriorityIndicators {
		if strings.Contains(lower, indicator) {
			return pipeline_type.PriorityLow
		}
	}
	return pipeline_type.PriorityMedium
}

func extractAssignee(text string) string {
	for _, re := range assigneePatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

func extractDueDate(text string) *time.Time {
	for _, re := range dueDatePatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		dateStr := m[1]

		var parsed time.Time
		var err error
		switch {
		case strings.Contains(dateStr, "/"):
			parsed, err = time.Parse("1/2/2006", dateStr)
		case strings.Contains(dateStr, "-"):
			parsed, err = time.Parse("2006-01-02", dateStr)
		default:
			// "January 15" style, assume the current year.
			parsed, err = time.Parse("January 2 2006",
				fmt.Sprintf("%s %d", dateStr, time.Now().Year()))
		}
		if err != nil {
			continue
		}
		return &parsed
	}
	return nil
}

var (
	nonWordRe    = regexp.MustCompile(`[^\w\s]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Deduplicate drops tasks whose normalized text has already been seen.
// Order is preserved, so earlier extractors win ties.
func Deduplicate(tasks []pipeline_type.Task) []pipeline_type.Task {
	seen := make(map[string]bool)
	var unique []pipeline_type.Task

	for _, task := range tasks {
		normalized := nonWordRe.ReplaceAllString(strings.ToLower(task.Text), "")
		normalized = strings.TrimSpace(whitespaceRe.ReplaceAllString(normalized, " "))

		if len(normalized) > 5 && !seen[normalized] {
			seen[normalized] = true
			unique = append(unique, task)
		}
	}

	return unique
}
