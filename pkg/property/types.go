package property

// Spec is a filter specification. It is one of *Property, *Group, *Action or List.
type Spec interface {
	spec()
}

// Domain is the namespace a property key belongs to.
type Domain string

const (
	DomainEvent               Domain = "event"
	DomainPerson              Domain = "person"
	DomainFeature             Domain = "feature"
	DomainElement             Domain = "element"
	DomainCohort              Domain = "cohort"
	DomainStaticCohort        Domain = "static-cohort"
	DomainPrecalculatedCohort Domain = "precalculated-cohort"
	DomainRaw                 Domain = "raw"
)

func (d Domain) isCohort() bool {
	return d == DomainCohort || d == DomainStaticCohort || d == DomainPrecalculatedCohort
}

// Operator is the comparison requested by a property filter.
type Operator string

const (
	OperatorExact        Operator = "exact"
	OperatorIsNot        Operator = "is_not"
	OperatorIsSet        Operator = "is_set"
	OperatorIsNotSet     Operator = "is_not_set"
	OperatorIContains    Operator = "icontains"
	OperatorNotIContains Operator = "not_icontains"
	OperatorRegex        Operator = "regex"
	OperatorNotRegex     Operator = "not_regex"
	OperatorLt           Operator = "lt"
	OperatorGt           Operator = "gt"
	OperatorLte          Operator = "lte"
	OperatorGte          Operator = "gte"
	OperatorIsDateExact  Operator = "is_date_exact"
	OperatorIsDateBefore Operator = "is_date_before"
	OperatorIsDateAfter  Operator = "is_date_after"
)

// Combinator joins the members of a Group.
type Combinator string

const (
	CombinatorAnd Combinator = "AND"
	CombinatorOr  Combinator = "OR"
)

// Matching is how an action step compares href, text and url values.
type Matching string

const (
	MatchingExact    Matching = "exact"
	MatchingRegex    Matching = "regex"
	MatchingContains Matching = "contains"
)

// AutocaptureEvent is the event name that enables element matchers on an action step.
const AutocaptureEvent = "$autocapture"

// Property compares a single key against a value. Value is a scalar or a list of scalars.
type Property struct {
	Type     Domain
	Key      string
	Operator Operator
	Value    any
}

func (*Property) spec() {}

// Group combines its members with AND or OR.
type Group struct {
	Type   Combinator
	Values []Spec
}

func (*Group) spec() {}

// Action matches any of its steps.
type Action struct {
	Name  string
	Steps []ActionStep
}

func (*Action) spec() {}

// ActionStep is one way an action can be triggered.
type ActionStep struct {
	Event        string
	Selector     string
	TagName      *string
	Href         *string
	HrefMatching Matching
	Text         *string
	TextMatching Matching
	URL          string
	URLMatching  Matching
	Properties   Spec
}

// List is an implicit AND of its members.
type List []Spec

func (List) spec() {}
