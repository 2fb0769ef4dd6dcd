package cleanup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStackReleasesInReverseOrder(t *testing.T) {
	var order []string
	record := func(name string) Release {
		return func(context.Context) error {
			order = append(order, name)
			return nil
		}
	}

	var stack Stack
	stack.Push("credential", record("credential"))
	stack.Push("mount", record("mount"))
	stack.Push("session", record("session"))
	stack.Push("ignored", nil)
	require.Equal(t, 3, stack.Len())

	require.NoError(t, stack.Release(context.Background()))
	require.Equal(t, []string{"session", "mount", "credential"}, order)
	require.Zero(t, stack.Len())

	require.NoError(t, stack.Release(context.Background()))
	require.Len(t, order, 3)
}

func TestStackReleaseContinuesAfterFailure(t *testing.T) {
	errUnmount := errors.New("unmount failed")
	ran := false

	var stack Stack
	stack.Push("credential", func(context.Context) error {
		ran = true
		return nil
	})
	stack.Push("mount", func(context.Context) error { return errUnmount })

	err := stack.Release(context.Background())
	require.ErrorIs(t, err, errUnmount)
	require.Contains(t, err.Error(), "release mount")
	require.True(t, ran)
}

func TestOnceRunsOnlyFirstCall(t *testing.T) {
	calls := 0
	release := Once(func(context.Context) error {
		calls++
		return errors.New("boom")
	})

	require.Error(t, release(context.Background()))
	require.Error(t, release(context.Background()))
	require.Equal(t, 1, calls)

	require.NoError(t, Once(nil)(context.Background()))
}
