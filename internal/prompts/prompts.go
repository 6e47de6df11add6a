package prompts

import (
	"fmt"
	"strings"
)

// Sanitize strips characters outside a conservative allow-list before user
// text is substituted into a template. Shallow defense against prompt
// injection; the templates additionally fence user text in delimited blocks.
func Sanitize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9',
			r == ' ', r == '\n', r == '\t',
			strings.ContainsRune(`.,;:!?'"()-–—/%&+#*@$_=[]`, r):
			b.WriteRune(r)
		default:
			// dropped
		}
	}
	return strings.TrimSpace(b.String())
}

const syllabusParseSystem = `You extract gradable assignments from course syllabi. ` +
	`You respond only with JSON matching the provided schema. Dates must be ISO 8601 ` +
	`(YYYY-MM-DD). If a syllabus entry has no point value, use 0.`

// SyllabusParseSystem is the system message paired with BuildSyllabusParsePrompt.
func SyllabusParseSystem() string { return syllabusParseSystem }

// BuildSyllabusParsePrompt wraps the raw syllabus text in a delimited section
// with extraction instructions. className is optional context.
func BuildSyllabusParsePrompt(syllabusText, className string) string {
	var b strings.Builder
	b.WriteString("Extract every gradable assignment (homework, essay, exam, project, quiz, lab) from the syllabus below.\n")
	if cn := Sanitize(className); cn != "" {
		fmt.Fprintf(&b, "The syllabus is for the class: %s\n", cn)
	}
	b.WriteString("\nFor each assignment report: title, a one-sentence description, the due date, and the point value.\n")
	b.WriteString("Ignore lecture schedules, office hours, and policy text.\n")
	b.WriteString("\n--- SYLLABUS START ---\n")
	b.WriteString(Sanitize(syllabusText))
	b.WriteString("\n--- SYLLABUS END ---\n")
	return b.String()
}

const subtaskSystem = `You are a study planner. You decompose an assignment into a small ` +
	`ordered sequence of concrete study steps. You respond only with JSON matching the ` +
	`provided schema. Steps are numbered from 1 and each carries a realistic estimate in hours.`

func SubtaskSystem() string { return subtaskSystem }

// BuildSubtaskPrompt asks for a step-by-step decomposition of the given
// assignment instructions.
func BuildSubtaskPrompt(instructions, title string) string {
	var b strings.Builder
	b.WriteString("Break the following assignment into 3-8 ordered study steps a student can work through one at a time.\n")
	if t := Sanitize(title); t != "" {
		fmt.Fprintf(&b, "Assignment title: %s\n", t)
	}
	b.WriteString("\n--- ASSIGNMENT INSTRUCTIONS START ---\n")
	b.WriteString(Sanitize(instructions))
	b.WriteString("\n--- ASSIGNMENT INSTRUCTIONS END ---\n")
	return b.String()
}

const structuredLearningSystem = `You are an expert learning coach. You write a single ` +
	`structured master prompt a student can paste into an AI tutor to be guided through ` +
	`an assignment Socratically, without being given answers outright.`

func StructuredLearningSystem() string { return structuredLearningSystem }

// BuildStructuredLearningPrompt produces the request for the plan's single
// master learning prompt. The response contract requires the result wrapped in
// <master_prompt> tags; callers reject output missing the opening tag.
func BuildStructuredLearningPrompt(instructions, title string) string {
	var b strings.Builder
	b.WriteString("Write a master tutoring prompt for the assignment below.\n")
	b.WriteString("The prompt must instruct the tutor to ask guiding questions, check understanding at each step, and never hand over a finished answer.\n")
	if t := Sanitize(title); t != "" {
		fmt.Fprintf(&b, "Assignment title: %s\n", t)
	}
	b.WriteString("\n--- ASSIGNMENT INSTRUCTIONS START ---\n")
	b.WriteString(Sanitize(instructions))
	b.WriteString("\n--- ASSIGNMENT INSTRUCTIONS END ---\n")
	b.WriteString("\nReturn the finished prompt wrapped exactly in <master_prompt> and </master_prompt> tags, with nothing outside the tags.\n")
	return b.String()
}

const tutorSystem = `You are an expert learning coach. You write a short Socratic tutoring ` +
	`prompt for one step of a larger study plan.`

func TutorSystem() string { return tutorSystem }

// BuildTutorPrompt produces the per-sub-task Socratic prompt request.
func BuildTutorPrompt(subTaskTitle, subTaskDescription, planInstructions string) string {
	var b strings.Builder
	b.WriteString("Write a Socratic tutoring prompt for the single study step below. ")
	b.WriteString("The tutor must guide with questions and hints, one idea at a time, and must not produce the deliverable itself.\n")
	fmt.Fprintf(&b, "\nStep: %s\n", Sanitize(subTaskTitle))
	if d := Sanitize(subTaskDescription); d != "" {
		fmt.Fprintf(&b, "Step details: %s\n", d)
	}
	b.WriteString("\n--- OVERALL ASSIGNMENT START ---\n")
	b.WriteString(Sanitize(planInstructions))
	b.WriteString("\n--- OVERALL ASSIGNMENT END ---\n")
	return b.String()
}

const refinementSystem = `You revise an existing study plan according to a student's ` +
	`request. You respond only with JSON matching the provided schema: the complete ` +
	`revised sub-task list plus a one-sentence summary of the changes.`

func RefinementSystem() string { return refinementSystem }

// BuildRefinementPrompt encodes one refinement chat turn: current plan state
// plus the student's change request.
func BuildRefinementPrompt(instructions string, currentSteps []string, userMessage string) string {
	var b strings.Builder
	b.WriteString("Revise the study plan below according to the student's request. ")
	b.WriteString("Keep steps the request does not touch. Renumber steps from 1 in the revised plan.\n")
	b.WriteString("\n--- ASSIGNMENT INSTRUCTIONS START ---\n")
	b.WriteString(Sanitize(instructions))
	b.WriteString("\n--- ASSIGNMENT INSTRUCTIONS END ---\n")
	b.WriteString("\n--- CURRENT PLAN START ---\n")
	for i, s := range currentSteps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, Sanitize(s))
	}
	b.WriteString("--- CURRENT PLAN END ---\n")
	b.WriteString("\n--- STUDENT REQUEST START ---\n")
	b.WriteString(Sanitize(userMessage))
	b.WriteString("\n--- STUDENT REQUEST END ---\n")
	return b.String()
}
