package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListPushAndOrder(t *testing.T) {
	l := New[string]()
	idA := l.PushBack("a")
	idB := l.PushBack("b")
	idC := l.PushFront("c")

	assert.Equal(t, []string{"c", "a", "b"}, l.Values())
	assert.Equal(t, 3, l.Len())

	v, ok := l.Get(idB)
	assert.True(t, ok)
	assert.Equal(t, "b", v)

	_ = idA
	_ = idC
}

func TestListRemoveIdempotent(t *testing.T) {
	l := New[int]()
	id := l.PushBack(42)
	l.Remove(id)
	assert.Equal(t, 0, l.Len())
	// removing again must not panic or affect state
	l.Remove(id)
	assert.Equal(t, 0, l.Len())
}

func TestListRemoveDuringEach(t *testing.T) {
	l := New[int]()
	var ids []uint64
	for i := 0; i < 5; i++ {
		ids = append(ids, l.PushBack(i))
	}

	var seen []int
	l.Each(func(id uint64, v int) bool {
		seen = append(seen, v)
		if v == 2 {
			l.Remove(ids[3]) // remove a not-yet-visited element mid-walk
		}
		return true
	})

	assert.Equal(t, []int{0, 1, 2, 4}, seen)
	assert.Equal(t, 4, l.Len())
}

func TestListFindRemove(t *testing.T) {
	l := New[int]()
	l.PushBack(1)
	l.PushBack(2)
	l.PushBack(3)

	v, ok := l.FindRemove(func(x int) bool { return x == 2 })
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 2, l.Len())

	_, ok = l.FindRemove(func(x int) bool { return x == 2 })
	assert.False(t, ok)
}

func TestListRemoveFunc(t *testing.T) {
	l := New[int]()
	for i := 0; i < 6; i++ {
		l.PushBack(i)
	}
	n := l.RemoveFunc(func(x int) bool { return x%2 == 0 })
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{1, 3, 5}, l.Values())
}
