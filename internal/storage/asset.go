package storage

import (
	"fmt"
	"unicode/utf8"

	"github.com/pixil98/go-errors"
)

type ValidatingSpec interface {
	Validate() error
}

// Asset is the on-disk envelope of a FileStore record.
type Asset[T ValidatingSpec] struct {
	Version    uint   `json:"version"`
	Identifier string `json:"id"`
	Spec       T      `json:"spec"`
}

func (a *Asset[T]) Id() string {
	return a.Identifier
}

func (a *Asset[T]) Validate() error {
	el := errors.NewErrorList()

	if a.Version == 0 {
		el.Add(fmt.Errorf("version must be set"))
	}

	if a.Identifier == "" {
		el.Add(fmt.Errorf("id must be set"))
	}

	if !utf8.ValidString(a.Identifier) {
		el.Add(fmt.Errorf("id must be valid utf-8"))
	}

	el.Add(a.Spec.Validate())

	return el.Err()
}
