package config

import (
	"fmt"
	"sort"

	"github.com/autobrr/propfilter/pkg/property"
)

// FilterNames returns the names of the configured filters in sorted order.
func (c *Configuration) FilterNames() []string {
	names := make([]string, 0, len(c.Filters))
	for name := range c.Filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Filter decodes the named filter spec.
func (c *Configuration) Filter(name string) (property.Spec, error) {
	raw, ok := c.Filters[name]
	if !ok {
		return nil, fmt.Errorf("filter not found: %q", name)
	}

	spec, err := property.DecodeSpec(raw)
	if err != nil {
		return nil, fmt.Errorf("filter %q: %w", name, err)
	}
	return spec, nil
}
