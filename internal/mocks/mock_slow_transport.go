package mocks

import (
	"context"
	"time"

	"github.com/tupleflow/tupleflow/pkg/network"
	"github.com/tupleflow/tupleflow/pkg/tuple"
)

// slowTransport is a proxy to the actual transport except that pulls are delayed by
// pullDelay, or until the context is done. This allows simulating remote pulls that time out.
type slowTransport struct {
	pullDelay time.Duration
	network.Transport
}

// NewMockSlowTransport returns a wrapper of a transport that adds artificial delays into pulls.
func NewMockSlowTransport(t network.Transport, pullDelay time.Duration) network.Transport {
	return &slowTransport{
		pullDelay: pullDelay,
		Transport: t,
	}
}

func (m *slowTransport) Pull(ctx context.Context, from network.Address, flush bool) ([]tuple.Tuple, error) {
	timer := time.NewTimer(m.pullDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}
	return m.Transport.Pull(ctx, from, flush)
}
