package domain

import "strings"

type EntityClass string

const (
	EntityIdentifier  EntityClass = "identifier"
	EntityDepth       EntityClass = "depth"
	EntityDate        EntityClass = "date"
	EntityTemperature EntityClass = "temperature"
	EntityPressure    EntityClass = "pressure"
)

// EntityClasses lists every class in a stable order.
var EntityClasses = []EntityClass{
	EntityIdentifier,
	EntityDepth,
	EntityDate,
	EntityTemperature,
	EntityPressure,
}

// EntitySet maps an entity class to the values extracted for it.
type EntitySet map[EntityClass][]string

func (s EntitySet) Values(class EntityClass) []string {
	if s == nil {
		return nil
	}
	return s[class]
}

func (s EntitySet) Count(class EntityClass) int {
	return len(s.Values(class))
}

func (s EntitySet) Empty() bool {
	for _, values := range s {
		if len(values) > 0 {
			return false
		}
	}
	return true
}

// Within returns the subset of values that literally occur in text.
func (s EntitySet) Within(text string) EntitySet {
	out := make(EntitySet, len(s))
	for class, values := range s {
		for _, v := range values {
			if v != "" && strings.Contains(text, v) {
				out[class] = append(out[class], v)
			}
		}
	}
	return out
}
