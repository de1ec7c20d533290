package expression

import (
	"errors"
	"time"

	"github.com/expr-lang/expr/vm"

	"github.com/autobrr/propfilter/pkg/schema"
)

// ErrUnsupportedNode is returned for tree nodes that cannot be evaluated per event.
var ErrUnsupportedNode = errors.New("unsupported expression node")

type CompiledExpression struct {
	Program *vm.Program
	Text    string
}

// Event is a single captured event the evaluator runs against.
type Event struct {
	UUID             string         `json:"uuid,omitempty"`
	Event            string         `json:"event"`
	DistinctID       string         `json:"distinct_id,omitempty"`
	PersonID         string         `json:"person_id,omitempty"`
	Timestamp        time.Time      `json:"timestamp"`
	Properties       map[string]any `json:"properties,omitempty"`
	PersonProperties map[string]any `json:"person_properties,omitempty"`
	ElementsChain    string         `json:"elements_chain,omitempty"`
}

// CohortMembership answers whether a person belongs to a resolved cohort.
type CohortMembership interface {
	IsMember(key schema.CohortKey, personID string) bool
}
