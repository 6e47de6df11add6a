package prompts

// JSON schemas for structured model output. Strict structured-output schemas
// must set additionalProperties:false and list every property as required, so
// per-field semantics beyond shape live in the validation package.

func ParsedAssignmentSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"title":       map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"due_date":    map[string]any{"type": "string"},
			"points":      map[string]any{"type": "number"},
		},
		"required":             []string{"title", "description", "due_date", "points"},
		"additionalProperties": false,
	}
}

func ParsedAssignmentsSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"assignments": map[string]any{
				"type":  "array",
				"items": ParsedAssignmentSchema(),
			},
		},
		"required":             []string{"assignments"},
		"additionalProperties": false,
	}
}

func SubTaskSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"step_number":     map[string]any{"type": "integer"},
			"title":           map[string]any{"type": "string"},
			"description":     map[string]any{"type": "string"},
			"estimated_hours": map[string]any{"type": "number"},
		},
		"required":             []string{"step_number", "title", "description", "estimated_hours"},
		"additionalProperties": false,
	}
}

func SubTaskListSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sub_tasks": map[string]any{
				"type":  "array",
				"items": SubTaskSchema(),
			},
		},
		"required":             []string{"sub_tasks"},
		"additionalProperties": false,
	}
}

func RefinementSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"sub_tasks": map[string]any{
				"type":  "array",
				"items": SubTaskSchema(),
			},
			"change_summary": map[string]any{"type": "string"},
		},
		"required":             []string{"sub_tasks", "change_summary"},
		"additionalProperties": false,
	}
}
