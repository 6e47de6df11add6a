package validation

import (
	"fmt"
	"strings"
	"time"
)

const (
	TitleMinLen = 1
	TitleMaxLen = 200

	DescriptionMaxLen = 5000
)

// Accepted due-date layouts, most specific first.
var dueDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ReviewedAssignment is the shape of one entry in the user-reviewed assignment
// list, as submitted for saving after AI extraction.
type ReviewedAssignment struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	DueDate     string  `json:"due_date"`
	Points      float64 `json:"points"`
}

// NormalizedAssignment is a ReviewedAssignment that passed all bounds, with
// its due date parsed.
type NormalizedAssignment struct {
	Title       string
	Description string
	DueDate     time.Time
	Points      float64
}

// ParseDueDate tries the accepted layouts in order.
func ParseDueDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func checkAssignmentFields(field func(string) string, title, description, dueDate string, points float64, requireFuture bool, now time.Time, verr *ValidationError) (time.Time, bool) {
	title = strings.TrimSpace(title)
	if len(title) < TitleMinLen {
		verr.add(field("title"), "title is required")
	} else if len(title) > TitleMaxLen {
		verr.addf(field("title"), "title must be at most %d characters", TitleMaxLen)
	}
	if len(description) > DescriptionMaxLen {
		verr.addf(field("description"), "description must be at most %d characters", DescriptionMaxLen)
	}
	if points < 0 {
		verr.add(field("points"), "points must be non-negative")
	}

	due, ok := ParseDueDate(dueDate)
	if !ok {
		verr.add(field("due_date"), "due date is not a recognized date")
		return time.Time{}, false
	}
	if requireFuture && !due.After(now) {
		verr.add(field("due_date"), "due date must be in the future")
		return due, false
	}
	return due, true
}

// ValidateReviewedAssignments validates the whole reviewed set. Any violation
// in any entry rejects the entire set; on success the returned slice has the
// same count and order as the input.
func ValidateReviewedAssignments(in []ReviewedAssignment, now time.Time) ([]NormalizedAssignment, *ValidationError) {
	verr := &ValidationError{}
	if len(in) == 0 {
		verr.add("assignments", "at least one assignment is required")
		return nil, verr
	}

	out := make([]NormalizedAssignment, 0, len(in))
	for i, a := range in {
		idx := i
		field := func(name string) string {
			return fieldAt("assignments", idx, name)
		}
		due, _ := checkAssignmentFields(field, a.Title, a.Description, a.DueDate, a.Points, true, now, verr)
		out = append(out, NormalizedAssignment{
			Title:       strings.TrimSpace(a.Title),
			Description: strings.TrimSpace(a.Description),
			DueDate:     due,
			Points:      a.Points,
		})
	}
	if v := verr.orNil(); v != nil {
		return nil, v
	}
	return out, nil
}

// ValidateManualAssignment bounds a single manually created assignment. Manual
// entry tolerates past due dates (backfilling an existing class is legitimate).
func ValidateManualAssignment(title, description, dueDate string, points float64) (NormalizedAssignment, *ValidationError) {
	verr := &ValidationError{}
	field := func(name string) string { return name }
	due, _ := checkAssignmentFields(field, title, description, dueDate, points, false, time.Time{}, verr)
	if v := verr.orNil(); v != nil {
		return NormalizedAssignment{}, v
	}
	return NormalizedAssignment{
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		DueDate:     due,
		Points:      points,
	}, nil
}

func fieldAt(prefix string, index int, name string) string {
	return fmt.Sprintf("%s[%d].%s", prefix, index, name)
}
