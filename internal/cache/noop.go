// File: internal/cache/noop.go
package cache

import (
	"context"

	"github.com/uipilot/uipilot/api/schemas"
)

// Noop disables decision caching entirely.
type Noop struct{}

var _ schemas.DecisionCache = Noop{}

func (Noop) Get(context.Context, string) (*schemas.DecisionEntry, bool) { return nil, false }
func (Noop) Set(context.Context, string, *schemas.DecisionEntry) error { return nil }
func (Noop) Remove(context.Context, string) error                      { return nil }
