// Package classify determines which vision task a question is asking for.
package classify

import "strings"

// Task is the category of AI operation requested for an image.
type Task string

const (
	TaskOCR        Task = "OCR"
	TaskCaptioning Task = "Image Captioning"
	TaskVQA        Task = "Visual QA"
	TaskMedical    Task = "Medical Diagnosis"
	TaskOther      Task = "Other"
)

// Source identifies which tier of the fallback chain produced a result.
type Source string

const (
	SourceExternal Source = "external"
	SourceRules    Source = "local_rules"
	SourceDefault  Source = "default"
)

// taskAliases maps lowercase task-name phrases to tasks, used to parse the
// free-text answer an external model returns. Checked in declaration order.
var taskAliases = []struct {
	phrase string
	task   Task
}{
	{"medical", TaskMedical},
	{"diagnosis", TaskMedical},
	{"ocr", TaskOCR},
	{"captioning", TaskCaptioning},
	{"caption", TaskCaptioning},
	{"visual qa", TaskVQA},
	{"visual question", TaskVQA},
	{"vqa", TaskVQA},
	{"other", TaskOther},
}

// keywordRules maps question keywords to tasks. Order matters: medical is
// checked first because its vocabulary is the most specific, VQA last
// because question-shaped phrasing is the loosest signal.
var keywordRules = []struct {
	task     Task
	keywords []string
}{
	{TaskMedical, []string{"medical", "diagnosis", "x-ray", "xray", "scan", "patient", "disease", "symptom", "diagnose"}},
	{TaskOCR, []string{"text", "read", "extract", "ocr", "words", "letters", "characters", "document"}},
	{TaskCaptioning, []string{"describe", "caption", "scene", "what do you see"}},
	{TaskVQA, []string{"what color", "how many", "count", "is there", "identify", "recognize"}},
}

// questionPrefixes mark question-shaped phrasing that defaults to VQA when
// no keyword rule fires.
var questionPrefixes = []string{"what", "where", "how"}

// ParseTask maps a model's textual answer to a Task by looking for a task
// name inside it. Punctuation is stripped so "OCR." still parses.
func ParseTask(answer string) (Task, bool) {
	s := strings.ToLower(answer)
	for _, r := range []string{".", ",", "?", "!", ":"} {
		s = strings.ReplaceAll(s, r, "")
	}
	for _, a := range taskAliases {
		if strings.Contains(s, a.phrase) {
			return a.task, true
		}
	}
	return "", false
}

// RuleBased applies only the keyword table and returns TaskOther when no
// rule fires. The /predict endpoint serves exactly this.
func RuleBased(question string) Task {
	if task, ok := matchKeywords(question); ok {
		return task
	}
	return TaskOther
}

// matchKeywords applies the keyword table to a raw question. First match
// wins; question-shaped phrasing falls through to VQA.
func matchKeywords(question string) (Task, bool) {
	q := strings.ToLower(strings.TrimSpace(question))
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(q, kw) {
				return rule.task, true
			}
		}
	}
	for _, p := range questionPrefixes {
		if strings.HasPrefix(q, p) {
			return TaskVQA, true
		}
	}
	return "", false
}
