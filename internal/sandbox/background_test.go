package sandbox_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/devsbx/internal/sandbox"
)

func TestBackgroundTask(t *testing.T) {
	assert := assert.New(t)

	stopped := 0
	bt := sandbox.NewBackgroundTask(func() { stopped++ })

	var got []error
	bt.OnClosed(func(err error) { got = append(got, err) })

	bt.Stop()
	assert.Equal(1, stopped)

	expErr := errors.New("killed")
	bt.Close(expErr)
	bt.Close(errors.New("ignored"))

	assert.Equal([]error{expErr}, got)
	assert.Equal(expErr, bt.Wait())

	// Late handlers are called right away with the stored result.
	var late error
	bt.OnClosed(func(err error) { late = err })
	assert.Equal(expErr, late)
	assert.Len(got, 1)
}

func TestBackgroundTaskCleanClose(t *testing.T) {
	bt := sandbox.NewBackgroundTask(nil)
	go bt.Close(nil)

	assert.NoError(t, bt.Wait())
	bt.Stop()
}
