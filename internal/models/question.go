package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Question is one entry of an event's application form. The set of questions is
// organizer-defined data, not schema, so answers are validated by interpreting
// the question type at submission time.
type Question struct {
	Description string   `json:"description"`
	Required    bool     `json:"required"`
	Type        string   `json:"type"`
	Values      []string `json:"values,omitempty"`
}

// QuestionList is stored as a JSONB column.
type QuestionList []Question

func (q QuestionList) Value() (driver.Value, error) {
	return json.Marshal(q)
}

func (q *QuestionList) Scan(value interface{}) error {
	if value == nil {
		*q = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, q)
	case string:
		return json.Unmarshal([]byte(v), q)
	default:
		return fmt.Errorf("cannot scan %T into QuestionList", value)
	}
}

func (QuestionList) GormDataType() string {
	return "jsonb"
}

// Validate checks the question specs themselves (on event creation/editing).
func (q QuestionList) Validate() ValidationErrors {
	errs := ValidationErrors{}
	for index, question := range q {
		if strings.TrimSpace(question.Description) == "" {
			errs.Add("questions", fmt.Sprintf("Question %d should have a description.", index+1))
		}
		if !contains(QuestionTypes, question.Type) {
			errs.Add("questions", fmt.Sprintf("Question %d has unknown type: %q.", index+1, question.Type))
		}
		if question.Type == QuestionTypeSelect && len(question.Values) == 0 {
			errs.Add("questions", fmt.Sprintf("Question %d is a select question, but has no values.", index+1))
		}
	}
	return errs
}

// AnswerList is the JSONB answers column of an application, index-aligned with
// the event's questions. Entries keep their JSON types (string, float64, bool).
type AnswerList []interface{}

func (a AnswerList) Value() (driver.Value, error) {
	if a == nil {
		return json.Marshal([]interface{}{})
	}
	return json.Marshal(a)
}

func (a *AnswerList) Scan(value interface{}) error {
	if value == nil {
		*a = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, a)
	case string:
		return json.Unmarshal([]byte(v), a)
	default:
		return fmt.Errorf("cannot scan %T into AnswerList", value)
	}
}

func (AnswerList) GormDataType() string {
	return "jsonb"
}

// ValidateAnswers checks the answers against the questions, reporting the first
// failing question under the aggregate "answers" key by its 1-based position
// and description.
func ValidateAnswers(answers AnswerList, questions QuestionList) ValidationErrors {
	errs := ValidationErrors{}

	if len(answers) != len(questions) {
		errs.Add("answers", fmt.Sprintf("Expected %d answers, but got %d.", len(questions), len(answers)))
		return errs
	}

	for index, question := range questions {
		answer := answers[index]

		switch question.Type {
		case QuestionTypeString, QuestionTypeText:
			value, ok := answer.(string)
			if !ok {
				errs.Add("answers", fmt.Sprintf("Answer number %d (%q): expected a string, got %T.", index+1, question.Description, answer))
				return errs
			}
			if question.Required && strings.TrimSpace(value) == "" {
				errs.Add("answers", fmt.Sprintf("Answer number %d (%q) is empty.", index+1, question.Description))
				return errs
			}
		case QuestionTypeNumber:
			if !isFiniteNumber(answer) {
				errs.Add("answers", fmt.Sprintf("Answer number %d (%q) should be a number, but got %v.", index+1, question.Description, answer))
				return errs
			}
		case QuestionTypeSelect:
			value, ok := answer.(string)
			if !ok || !contains(question.Values, value) {
				errs.Add("answers", fmt.Sprintf("Answer number %d (%q) should be one of these: %s.", index+1, question.Description, strings.Join(question.Values, ", ")))
				return errs
			}
		case QuestionTypeCheckbox:
			value, ok := answer.(bool)
			if !ok {
				errs.Add("answers", fmt.Sprintf("Answer number %d (%q): type should be boolean, but got %T.", index+1, question.Description, answer))
				return errs
			}
			if question.Required && !value {
				errs.Add("answers", fmt.Sprintf("Answer number %d (%q): you should agree.", index+1, question.Description))
				return errs
			}
		default:
			errs.Add("answers", fmt.Sprintf("Answer number %d (%q): unknown question type: %s.", index+1, question.Description, question.Type))
			return errs
		}
	}

	return errs
}

func isFiniteNumber(value interface{}) bool {
	switch v := value.(type) {
	case float64:
		return !math.IsNaN(v) && !math.IsInf(v, 0)
	case int:
		return true
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return false
		}
		return !math.IsNaN(parsed) && !math.IsInf(parsed, 0)
	default:
		return false
	}
}

func contains(list []string, value string) bool {
	for _, entry := range list {
		if entry == value {
			return true
		}
	}
	return false
}
