package framequeue

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPushPopOrder(t *testing.T) {
	q := New(5)
	q.Push("a")
	q.Push("b")
	q.Push("c")
	require.Equal(t, 3, q.Len())
	require.Equal(t, "a", q.Pop())
	require.Equal(t, "b", q.Pop())
	require.Equal(t, "c", q.Pop())
	require.Nil(t, q.Pop())
}

func TestRewindUndoesLastPush(t *testing.T) {
	q := New(5)
	q.Push("a")
	q.Push("b")
	require.Equal(t, "b", q.Rewind())
	require.Equal(t, 1, q.Len())
	require.Equal(t, "a", q.Pop())
}

func TestRewindOnEmptyReturnsNil(t *testing.T) {
	q := New(5)
	require.Nil(t, q.Rewind())
}

func TestPushOnFullPanics(t *testing.T) {
	q := New(2)
	q.Push("a")
	q.Push("b")
	require.Panics(t, func() { q.Push("c") })
}

func TestPushNilPanics(t *testing.T) {
	q := New(2)
	require.Panics(t, func() { q.Push(nil) })
}

func TestWrapAround(t *testing.T) {
	q := New(3)
	q.Push(1)
	q.Push(2)
	q.Pop()
	q.Push(3)
	q.Push(4)
	require.Equal(t, 3, q.Len())
	require.Equal(t, 2, q.Pop())
	require.Equal(t, 3, q.Pop())
	require.Equal(t, 4, q.Pop())
}
