package forum

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"fc-troll-detector/internal/model"

	"golang.org/x/sync/singleflight"
)

// Resolver finds the original poster of a thread by reading its first
// page. Successful lookups are remembered for the Resolver's lifetime.
type Resolver struct {
	client *Client
	group  singleflight.Group

	mu   sync.Mutex
	memo map[string]model.UserReference
}

func NewResolver(client *Client) *Resolver {
	return &Resolver{client: client, memo: make(map[string]model.UserReference)}
}

// ResolveOP returns the first profile linked from the thread's first
// page. A page without one yields model.ErrParse.
func (r *Resolver) ResolveOP(ctx context.Context, threadID string) (model.UserReference, error) {
	r.mu.Lock()
	ref, ok := r.memo[threadID]
	r.mu.Unlock()
	if ok {
		return ref, nil
	}

	v, err, _ := r.group.Do(threadID, func() (any, error) {
		doc, err := r.client.Document(ctx, ThreadURL(r.client.BaseURL(), threadID), "thread")
		if err != nil {
			return nil, err
		}
		ref, ok := firstProfile(doc, r.client.BaseURL())
		if !ok {
			return nil, fmt.Errorf("thread %s: no author link: %w", threadID, model.ErrParse)
		}
		r.mu.Lock()
		r.memo[threadID] = ref
		r.mu.Unlock()
		return ref, nil
	})
	if err != nil {
		slog.Warn("resolver: thread author lookup failed", "thread", threadID, "error", err)
		return model.UserReference{}, err
	}
	return v.(model.UserReference), nil
}
