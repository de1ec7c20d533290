package property

import "errors"

var (
	ErrUnsupportedSpec     = errors.New("unsupported filter spec")
	ErrUnsupportedDomain   = errors.New("unsupported property domain")
	ErrUnsupportedOperator = errors.New("unsupported operator")
	ErrUnsupportedKey      = errors.New("unsupported element key")
	ErrMissingTeamContext  = errors.New("missing team context")
	ErrNestingTooDeep      = errors.New("filter nesting too deep")
)
