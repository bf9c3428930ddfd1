package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotify(t *testing.T) {
	var gotCurrent, gotTotal int64
	Notify(func(current, total int64) {
		gotCurrent, gotTotal = current, total
	}, 5, 10)
	assert.Equal(t, int64(5), gotCurrent)
	assert.Equal(t, int64(10), gotTotal)
}

func TestNotify_NilFunc(t *testing.T) {
	assert.NotPanics(t, func() {
		Notify(nil, 1, 2)
	})
}

func TestNotify_PanickingSink(t *testing.T) {
	assert.NotPanics(t, func() {
		Notify(func(current, total int64) {
			panic("broken sink")
		}, 1, 2)
	})
}
