package validation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ParsedAssignment is one assignment the model extracted from a syllabus.
// Past due dates are allowed here: syllabi legitimately contain them, and the
// user filters during review.
type ParsedAssignment struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	DueDate     string  `json:"due_date"`
	Points      float64 `json:"points"`
}

// ParsedSubTask is one step of a model-decomposed plan.
type ParsedSubTask struct {
	StepNumber     int     `json:"step_number"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	EstimatedHours float64 `json:"estimated_hours"`
}

// RefinementResult is the model's answer to one refinement turn: the full
// revised sub-task list plus a human-readable summary of what changed.
type RefinementResult struct {
	SubTasks      []ParsedSubTask `json:"sub_tasks"`
	ChangeSummary string          `json:"change_summary"`
}

func decodeInto(raw map[string]any, out any) error {
	buf, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("re-encode model output: %w", err)
	}
	if err := json.Unmarshal(buf, out); err != nil {
		return fmt.Errorf("model output does not match expected shape: %w", err)
	}
	return nil
}

// ValidateParsedAssignments checks the model's syllabus-extraction output
// before anything is shown to the user or persisted.
func ValidateParsedAssignments(raw map[string]any) ([]ParsedAssignment, error) {
	var payload struct {
		Assignments []ParsedAssignment `json:"assignments"`
	}
	if err := decodeInto(raw, &payload); err != nil {
		return nil, err
	}

	verr := &ValidationError{}
	if len(payload.Assignments) == 0 {
		verr.add("assignments", "model returned no assignments")
	}
	for i, a := range payload.Assignments {
		if strings.TrimSpace(a.Title) == "" {
			verr.add(fieldAt("assignments", i, "title"), "title is empty")
		} else if len(a.Title) > TitleMaxLen {
			verr.addf(fieldAt("assignments", i, "title"), "title exceeds %d characters", TitleMaxLen)
		}
		if _, ok := ParseDueDate(a.DueDate); !ok {
			verr.add(fieldAt("assignments", i, "due_date"), "due date is not a recognized date")
		}
		if a.Points < 0 {
			verr.add(fieldAt("assignments", i, "points"), "points must be non-negative")
		}
	}
	if v := verr.orNil(); v != nil {
		return nil, v
	}

	for i := range payload.Assignments {
		payload.Assignments[i].Title = strings.TrimSpace(payload.Assignments[i].Title)
		payload.Assignments[i].Description = strings.TrimSpace(payload.Assignments[i].Description)
	}
	return payload.Assignments, nil
}

func checkSubTasks(prefix string, subTasks []ParsedSubTask, verr *ValidationError) {
	if len(subTasks) == 0 {
		verr.add(prefix, "model returned no sub-tasks")
		return
	}
	seen := make(map[int]bool, len(subTasks))
	for i, st := range subTasks {
		if strings.TrimSpace(st.Title) == "" {
			verr.add(fieldAt(prefix, i, "title"), "title is empty")
		}
		if st.StepNumber < 1 {
			verr.add(fieldAt(prefix, i, "step_number"), "step number must be >= 1")
		} else if seen[st.StepNumber] {
			verr.addf(fieldAt(prefix, i, "step_number"), "duplicate step number %d", st.StepNumber)
		}
		seen[st.StepNumber] = true
		if st.EstimatedHours < 0 {
			verr.add(fieldAt(prefix, i, "estimated_hours"), "estimated hours must be non-negative")
		}
	}
}

// ValidateSubTaskList checks the model's decomposition output.
func ValidateSubTaskList(raw map[string]any) ([]ParsedSubTask, error) {
	var payload struct {
		SubTasks []ParsedSubTask `json:"sub_tasks"`
	}
	if err := decodeInto(raw, &payload); err != nil {
		return nil, err
	}
	verr := &ValidationError{}
	checkSubTasks("sub_tasks", payload.SubTasks, verr)
	if v := verr.orNil(); v != nil {
		return nil, v
	}
	for i := range payload.SubTasks {
		payload.SubTasks[i].Title = strings.TrimSpace(payload.SubTasks[i].Title)
	}
	return payload.SubTasks, nil
}

// ValidateRefinementResult checks one refinement turn's output.
func ValidateRefinementResult(raw map[string]any) (*RefinementResult, error) {
	var payload RefinementResult
	if err := decodeInto(raw, &payload); err != nil {
		return nil, err
	}
	verr := &ValidationError{}
	checkSubTasks("sub_tasks", payload.SubTasks, verr)
	if strings.TrimSpace(payload.ChangeSummary) == "" {
		verr.add("change_summary", "change summary is empty")
	}
	if v := verr.orNil(); v != nil {
		return nil, v
	}
	return &payload, nil
}

// Due returns the parsed due date; callers only invoke this after validation.
func (a ParsedAssignment) Due() time.Time {
	t, _ := ParseDueDate(a.DueDate)
	return t
}
