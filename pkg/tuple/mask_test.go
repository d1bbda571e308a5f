package tuple

import (
	"testing"

	"github.com/stretchr/testify/require"

	tferrors "github.com/tupleflow/tupleflow/pkg/errors"
)

func TestMaskProject(t *testing.T) {
	for _, tc := range []struct {
		name      string
		mask      Mask
		input     Tuple
		signature Tuple
	}{
		{
			name:      "unbound",
			mask:      MustMask(2),
			input:     Of2(1, 2),
			signature: Empty,
		},
		{
			name:      "source_bound",
			mask:      MustMask(2, 0),
			input:     Of2(1, 2),
			signature: Of1(1),
		},
		{
			name:      "target_bound",
			mask:      MustMask(2, 1),
			input:     Of2(1, 2),
			signature: Of1(2),
		},
		{
			name:      "identity",
			mask:      IdentityMask(3),
			input:     New(4, 5, 6),
			signature: New(4, 5, 6),
		},
		{
			name:      "reordering",
			mask:      MustMask(3, 2, 0),
			input:     New(4, 5, 6),
			signature: Of2(6, 4),
		},
		{
			name:      "repeated_position",
			mask:      MustMask(2, 1, 1),
			input:     Of2(4, 5),
			signature: Of2(5, 5),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			sig, err := tc.mask.Project(tc.input)
			require.NoError(t, err)
			require.Equal(t, tc.signature, sig)
			require.Equal(t, tc.signature.Size(), tc.mask.Arity())
		})
	}
}

func TestMaskErrors(t *testing.T) {
	_, err := NewMask(2, 2)
	require.ErrorIs(t, err, tferrors.ErrContractViolation)

	require.Panics(t, func() { MustMask(1, -1) })

	_, err = MustMask(2, 0).Project(New(1, 2, 3))
	require.ErrorIs(t, err, tferrors.ErrContractViolation)

	var mismatch *ArityMismatchError
	require.ErrorAs(t, err, &mismatch)
	require.Equal(t, 2, mismatch.Expected)
}

func TestMaskProjectSingleElement(t *testing.T) {
	m := MustMask(3, 1)
	e := New(4, 700, 5)

	got, err := m.Project(e)
	require.NoError(t, err)
	require.Equal(t, signatures.Of(700), got)

	allocs := testing.AllocsPerRun(100, func() {
		_, _ = m.Project(e)
	})
	require.Zero(t, allocs)

	outside, err := MustMask(2, 0).Project(Of2(int64(DefaultCacheSize)+5, 1))
	require.NoError(t, err)
	require.Equal(t, Of1(int64(DefaultCacheSize)+5), outside)
}

func TestMaskComplement(t *testing.T) {
	m := MustMask(4, 2, 0)
	c := m.Complement()
	require.Equal(t, []int{1, 3}, c.Positions())
	require.Equal(t, 4, c.SourceArity())
	require.True(t, IdentityMask(2).Complement().Equal(MustMask(2)))
	require.Equal(t, "[2,0]/4", m.String())
}
