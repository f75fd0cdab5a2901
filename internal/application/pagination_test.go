package application

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchPagesAscending(t *testing.T) {
	// Feed serves 7,6,5,4,3 on page 1 and 2,1 on page 2, newest first.
	feed := map[int][]int{
		1: {7, 6, 5, 4, 3},
		2: {2, 1},
	}

	fetch := func(_ context.Context, page, limit int) ([]int, error) {
		assert.Equal(t, 5, limit)
		return feed[page], nil
	}

	out, err := fetchPagesAscending(context.Background(), 7, 5, fetch)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, out)
}

func TestFetchPagesAscending_ShortPageStops(t *testing.T) {
	calls := 0
	fetch := func(_ context.Context, page, limit int) ([]int, error) {
		calls++
		if page == 1 {
			return []int{3, 2, 1}, nil
		}
		t.Fatalf("unexpected fetch of page %d", page)
		return nil, nil
	}

	out, err := fetchPagesAscending(context.Background(), 100, 5, fetch)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, out)
	assert.Equal(t, 1, calls)
}

func TestFetchPagesAscending_ZeroCount(t *testing.T) {
	out, err := fetchPagesAscending(context.Background(), 0, 5, func(_ context.Context, _, _ int) ([]int, error) {
		t.Fatal("fetch should not be called")
		return nil, nil
	})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestFetchPagesAscending_PropagatesError(t *testing.T) {
	wantErr := errors.New("upstream down")
	_, err := fetchPagesAscending(context.Background(), 10, 5, func(_ context.Context, _, _ int) ([]int, error) {
		return nil, wantErr
	})
	assert.ErrorIs(t, err, wantErr)
}
