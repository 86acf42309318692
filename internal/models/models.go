package models

// All returns every model managed by the grader schema in migration order.
func All() []interface{} {
	return []interface{}{
		&Assignment{},
		&Configuration{},
		&Score{},
		&EvaluationResult{},
	}
}
