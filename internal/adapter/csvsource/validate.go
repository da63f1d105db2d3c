package csvsource

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/qwyt/wp-police-shooting/internal/domain"
)

// Issue is one field of one event that failed validation.
type Issue struct {
	EventID string `json:"event_id"`
	Field   string `json:"field"`
	Rule    string `json:"rule"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateEvents checks events against their struct rules. Issues are
// reported, never fixed: the events are still processed as loaded.
func ValidateEvents(events []domain.Event) []Issue {
	var issues []Issue
	for i := range events {
		err := validate.Struct(events[i])
		if err == nil {
			continue
		}
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			issues = append(issues, Issue{EventID: events[i].ID, Rule: err.Error()})
			continue
		}
		for _, fe := range verrs {
			issues = append(issues, Issue{EventID: events[i].ID, Field: fe.Field(), Rule: fe.Tag()})
		}
	}
	return issues
}
