package coalesce

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Group deduplicates concurrent calls sharing a key. The key is forgotten as
// soon as the call settles, whatever its outcome.
type Group struct {
	g singleflight.Group
}

// New creates an empty group.
func New() *Group { return &Group{} }

// Do runs fn once per key among concurrent callers. A caller whose ctx ends
// stops waiting; the shared call keeps running for the others. shared reports
// whether the result was delivered to more than one caller.
func Do[T any](ctx context.Context, g *Group, key string, fn func() (T, error)) (v T, shared bool, err error) {
	ch := g.g.DoChan(key, func() (interface{}, error) {
		return fn()
	})
	select {
	case <-ctx.Done():
		return v, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return v, res.Shared, res.Err
		}
		return res.Val.(T), res.Shared, nil
	}
}

// Forget drops key so the next call starts a fresh fetch.
func (g *Group) Forget(key string) { g.g.Forget(key) }
