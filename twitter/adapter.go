// Package twitter provides the twitter network adapter. Twitter removed its
// public count endpoint, so the adapter reports the unknown count as a
// successful result without any request.
package twitter

import (
	"context"

	"github.com/briangreenhill/sharecounts/networks"
)

const Name = "twitter"

// Adapter implements networks.Adapter for twitter
type Adapter struct {
	unknownCount int
}

// New creates an adapter that always answers with unknownCount
func New(unknownCount int) *Adapter {
	return &Adapter{unknownCount: unknownCount}
}

// Name returns the network name
func (a *Adapter) Name() string {
	return Name
}

// Fetch returns the unknown count without contacting twitter
func (a *Adapter) Fetch(ctx context.Context, url string) (int, error) {
	return a.unknownCount, nil
}

var _ networks.Adapter = (*Adapter)(nil)
