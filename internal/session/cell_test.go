package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCellSubscribeDeliversCurrentValue(t *testing.T) {
	cell := NewCell(42)

	var got []int
	cell.Subscribe(func(v int) { got = append(got, v) })

	assert.Equal(t, []int{42}, got)
}

func TestCellSetNotifiesSubscribers(t *testing.T) {
	cell := NewCell("a")

	var first, second []string
	cell.Subscribe(func(v string) { first = append(first, v) })
	cell.Subscribe(func(v string) { second = append(second, v) })

	cell.Set("b")
	cell.Set("c")

	assert.Equal(t, []string{"a", "b", "c"}, first)
	assert.Equal(t, []string{"a", "b", "c"}, second)
	assert.Equal(t, "c", cell.Get())
}

func TestCellCancelStopsDelivery(t *testing.T) {
	cell := NewCell(0)

	var got []int
	cancel := cell.Subscribe(func(v int) { got = append(got, v) })

	cell.Set(1)
	cancel()
	cell.Set(2)

	assert.Equal(t, []int{0, 1}, got)
	assert.Equal(t, 2, cell.Get())
}

func TestBroadcasterInitialState(t *testing.T) {
	b := NewBroadcaster()

	assert.False(t, b.LoggedIn.Get())
	assert.Nil(t, b.Profile.Get())
	assert.Nil(t, b.Location.Get())
	assert.True(t, b.BootstrapLoading.Get())
}
