package network_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/tupleflow/tupleflow/internal/mocks"
	tferrors "github.com/tupleflow/tupleflow/pkg/errors"
	"github.com/tupleflow/tupleflow/pkg/network"
	"github.com/tupleflow/tupleflow/pkg/tuple"
)

func TestAddress(t *testing.T) {
	c := network.MustNewContainer(network.WithID("a"))
	local := network.LocalAddress(c, 2)
	require.Same(t, c, local.Local())
	require.Equal(t, "a/2", local.String())

	remote := network.NewAddress("b", 4)
	require.Nil(t, remote.Local())
	require.Equal(t, "b/4", remote.String())
}

func TestForwardingNode(t *testing.T) {
	ctx := context.Background()
	mockController := gomock.NewController(t)
	defer mockController.Finish()
	transport := mocks.NewMockTransport(mockController)

	c := network.MustNewContainer(network.WithID("a"), network.WithTransport(transport))
	in := c.Add(network.NewInputNode(1))
	first, second := network.NewAddress("b", 3), network.NewAddress("c", 0)
	fwd := network.NewForwardingNode(c.Transport(), first)
	fid := c.Add(fwd)
	require.NoError(t, c.AppendChild(in, fid))

	transport.EXPECT().Send(gomock.Any(), first, tuple.Insert, tuple.Of1(7)).Return(nil)
	require.NoError(t, c.Update(ctx, in, tuple.Insert, tuple.Of1(7)))
	require.NoError(t, c.Drain(ctx))

	fwd.AddTarget(second)
	require.Equal(t, []network.Address{first, second}, fwd.Targets())
	gomock.InOrder(
		transport.EXPECT().Send(gomock.Any(), first, tuple.Retract, tuple.Of1(7)).Return(nil),
		transport.EXPECT().Send(gomock.Any(), second, tuple.Retract, tuple.Of1(7)).Return(nil),
	)
	require.NoError(t, c.Update(ctx, in, tuple.Retract, tuple.Of1(7)))
	require.NoError(t, c.Drain(ctx))

	t.Run("pull_goes_through_parents", func(t *testing.T) {
		require.NoError(t, c.Update(ctx, in, tuple.Insert, tuple.Of1(9)))
		transport.EXPECT().Send(gomock.Any(), gomock.Any(), tuple.Insert, tuple.Of1(9)).Return(nil).Times(2)
		got, err := c.Pull(ctx, fid, true)
		require.NoError(t, err)
		require.Equal(t, []tuple.Tuple{tuple.Of1(9)}, got)
	})

	t.Run("send_failure", func(t *testing.T) {
		transport.EXPECT().Send(gomock.Any(), first, tuple.Insert, tuple.Of1(8)).Return(errors.New("unreachable"))
		require.NoError(t, c.Update(ctx, in, tuple.Insert, tuple.Of1(8)))
		err := c.Drain(ctx)
		require.ErrorContains(t, err, "forward to b/3")
		require.ErrorContains(t, err, "unreachable")
	})
}

func TestMirrorNode(t *testing.T) {
	ctx := context.Background()
	mockController := gomock.NewController(t)
	defer mockController.Finish()
	transport := mocks.NewMockTransport(mockController)

	c := network.MustNewContainer(network.WithTransport(transport))
	remote := network.NewAddress("b", 5)
	mirror := network.NewMirrorNode(transport, remote)
	require.Equal(t, remote, mirror.Remote())
	mid := c.Add(mirror)
	result := network.NewProductionNode()
	pid := c.Add(result)
	require.NoError(t, c.AppendChild(mid, pid))

	require.NoError(t, c.Update(ctx, mid, tuple.Insert, tuple.Of2(1, 2)))
	require.NoError(t, c.Drain(ctx))
	require.Equal(t, 1, result.Count(tuple.Of2(1, 2)))

	transport.EXPECT().Pull(gomock.Any(), remote, true).Return([]tuple.Tuple{tuple.Of2(1, 2)}, nil)
	got, err := c.Pull(ctx, mid, true)
	require.NoError(t, err)
	require.Equal(t, []tuple.Tuple{tuple.Of2(1, 2)}, got)

	t.Run("pull_failure", func(t *testing.T) {
		transport.EXPECT().Pull(gomock.Any(), remote, false).Return(nil, errors.New("unreachable"))
		_, err := c.Pull(ctx, mid, false)
		require.ErrorContains(t, err, "pull from b/5")
	})

	t.Run("invalid_direction_is_rejected", func(t *testing.T) {
		err := mirror.Inject(ctx, tuple.Direction(0), tuple.Of2(3, 4), 1)
		require.ErrorIs(t, err, tferrors.ErrContractViolation)
		require.NoError(t, c.Drain(ctx))
		require.Equal(t, 0, result.Count(tuple.Of2(3, 4)))
	})

	t.Run("slow_pull_times_out", func(t *testing.T) {
		slow := mocks.NewMockSlowTransport(transport, time.Minute)
		c := network.MustNewContainer()
		mid := c.Add(network.NewMirrorNode(slow, remote))

		ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		_, err := c.Pull(ctx, mid, false)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
