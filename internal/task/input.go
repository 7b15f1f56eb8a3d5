package task

import (
	"math"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Input carries the editable fields of a task.
type Input struct {
	Name    string
	Cost    float64
	DueDate string
}

// Normalize trims the name and checks every field.
func (in Input) Normalize() (Input, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.DueDate = strings.TrimSpace(in.DueDate)
	if in.Name == "" {
		return in, &ValidationError{Field: "nome", Msg: "must not be empty"}
	}
	if math.IsNaN(in.Cost) || math.IsInf(in.Cost, 0) || in.Cost < 0 {
		return in, &ValidationError{Field: "custo", Msg: "must be a non-negative number"}
	}
	if _, err := time.Parse(dateLayout, in.DueDate); err != nil {
		return in, &ValidationError{Field: "dataLimite", Msg: "must be a date in YYYY-MM-DD format"}
	}
	return in, nil
}
