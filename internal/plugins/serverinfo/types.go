package serverinfo

import (
	"fmt"

	"github.com/pixil98/go-errors"
)

// Profile describes a backend server. Profiles are stored as assets named
// after the server id.
type Profile struct {
	Name   string   `json:"name"`
	Region string   `json:"region,omitempty"`
	Modes  []string `json:"modes,omitempty"`
}

func (p *Profile) Validate() error {
	el := errors.NewErrorList()

	if p.Name == "" {
		el.Add(fmt.Errorf("name is required"))
	}

	seen := map[string]bool{}
	for _, m := range p.Modes {
		if m == "" {
			el.Add(fmt.Errorf("mode must not be empty"))
			continue
		}
		if seen[m] {
			el.Add(fmt.Errorf("duplicate mode %q", m))
		}
		seen[m] = true
	}

	return el.Err()
}
