package cleaning

import (
	"strings"

	"PollTrends/internal/domain"
)

// fixedColumns is the date, pollster and sample-size prefix of every header.
const fixedColumns = 3

// Classify returns the entity column names that follow the fixed prefix.
func Classify(labels []string) ([]string, error) {
	if len(labels) < fixedColumns {
		return nil, domain.NewStructuralError("header has %d labels, expected date, pollster and sample first", len(labels))
	}

	entities := make([]string, 0, len(labels)-fixedColumns)
	seen := make(map[string]struct{}, len(labels))
	for i, label := range labels[fixedColumns:] {
		name := strings.TrimSpace(label)
		if name == "" {
			return nil, domain.NewStructuralError("header column %d is blank", i+fixedColumns)
		}
		if _, dup := seen[name]; dup {
			return nil, domain.NewStructuralError("header column %q appears twice", name)
		}
		seen[name] = struct{}{}
		entities = append(entities, name)
	}
	return entities, nil
}
