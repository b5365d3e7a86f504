// SPDX-License-Identifier: MIT

package trellis

import (
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaissmai/pathspace"
	"github.com/gaissmai/pathspace/internal/path"
	"github.com/gaissmai/pathspace/internal/queue"
)

func intMeta() queue.Meta { return queue.Meta{Type: reflect.TypeOf(0)} }

func TestTrellisHandlesMissingBacking(t *testing.T) {
	tr := New(nil)

	ret := tr.In(path.NewIterator("/value"), pathspace.InsertInput{Value: 42})
	require.NotEmpty(t, ret.Errors)

	_, err := tr.Out(path.NewIterator("/value"), intMeta(), pathspace.OutOpts{})
	require.Error(t, err)
}

func TestTrellisEnableFanOutAndDisable(t *testing.T) {
	backing := pathspace.New()
	defer backing.Shutdown()
	tr := New(backing)

	enable := tr.In(path.NewIterator(pathspace.TrellisEnablePath), pathspace.InsertInput{
		Value: EnableCommand{Name: "/out", Sources: []string{"/foo", "/bar"}, Mode: "queue", Policy: "round_robin"},
	})
	require.Empty(t, enable.Errors)

	backing.Insert("/foo", 123, pathspace.InsertOptions{})

	v, err := tr.Out(path.NewIterator("/out"), intMeta(), pathspace.OutOpts{})
	require.NoError(t, err)
	assert.Equal(t, 123, v)

	disable := tr.In(path.NewIterator(pathspace.TrellisDisablePath), pathspace.InsertInput{Value: DisableCommand{Name: "/out"}})
	require.Empty(t, disable.Errors)

	_, err = tr.Out(path.NewIterator("/out"), intMeta(), pathspace.OutOpts{})
	assert.Error(t, err)
}

func TestTrellisRoundRobinRotatesSources(t *testing.T) {
	backing := pathspace.New()
	defer backing.Shutdown()
	tr := New(backing)

	tr.In(path.NewIterator(pathspace.TrellisEnablePath), pathspace.InsertInput{
		Value: EnableCommand{Name: "/out", Sources: []string{"/a", "/b"}, Mode: "queue", Policy: "round_robin"},
	})

	backing.Insert("/a", 1, pathspace.InsertOptions{})
	backing.Insert("/b", 2, pathspace.InsertOptions{})

	first, err := tr.Out(path.NewIterator("/out"), intMeta(), pathspace.OutOpts{DoPop: true})
	require.NoError(t, err)
	second, err := tr.Out(path.NewIterator("/out"), intMeta(), pathspace.OutOpts{DoPop: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2}, []int{first.(int), second.(int)})
}

func TestTrellisPriorityAlwaysTriesSourcesInListOrder(t *testing.T) {
	backing := pathspace.New()
	defer backing.Shutdown()
	tr := New(backing)

	tr.In(path.NewIterator(pathspace.TrellisEnablePath), pathspace.InsertInput{
		Value: EnableCommand{Name: "/out", Sources: []string{"/a", "/b"}, Mode: "queue", Policy: "priority"},
	})

	// Give /b a successful read first so its hint bit would sort it
	// ahead of /a under RoundRobin's hint partition. Priority must
	// still prefer /a, the earlier entry in Sources, on every call.
	backing.Insert("/b", 2, pathspace.InsertOptions{})
	v, err := tr.Out(path.NewIterator("/out"), intMeta(), pathspace.OutOpts{DoPop: true})
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	backing.Insert("/a", 1, pathspace.InsertOptions{})
	backing.Insert("/b", 22, pathspace.InsertOptions{})

	first, err := tr.Out(path.NewIterator("/out"), intMeta(), pathspace.OutOpts{DoPop: true})
	require.NoError(t, err)
	assert.Equal(t, 1, first, "priority policy must serve the earlier source even though the later source answered most recently")

	second, err := tr.Out(path.NewIterator("/out"), intMeta(), pathspace.OutOpts{DoPop: true})
	require.NoError(t, err)
	assert.Equal(t, 22, second)
}

func TestTrellisLatestModeNotSupported(t *testing.T) {
	backing := pathspace.New()
	defer backing.Shutdown()
	tr := New(backing)

	ret := tr.In(path.NewIterator(pathspace.TrellisEnablePath), pathspace.InsertInput{
		Value: EnableCommand{Name: "/out", Sources: []string{"/a"}, Mode: "latest", Policy: "round_robin"},
	})
	require.NotEmpty(t, ret.Errors)
	perr, ok := ret.Errors[0].(*pathspace.Error)
	require.True(t, ok)
	assert.Equal(t, pathspace.NotSupported, perr.Code)
}

func TestTrellisRejectsReservedOutputPath(t *testing.T) {
	backing := pathspace.New()
	defer backing.Shutdown()
	tr := New(backing)

	ret := tr.In(path.NewIterator(pathspace.TrellisEnablePath), pathspace.InsertInput{
		Value: EnableCommand{Name: pathspace.TrellisStatePrefix + "/out", Sources: []string{"/a"}, Mode: "queue", Policy: "round_robin"},
	})
	require.NotEmpty(t, ret.Errors)
}

func TestTrellisBlockingOutWaitsForInsert(t *testing.T) {
	backing := pathspace.New()
	defer backing.Shutdown()
	tr := New(backing)

	tr.In(path.NewIterator(pathspace.TrellisEnablePath), pathspace.InsertInput{
		Value: EnableCommand{Name: "/out", Sources: []string{"/slow"}, Mode: "queue", Policy: "round_robin"},
	})

	done := make(chan struct{})
	var got any
	var gotErr error
	go func() {
		got, gotErr = tr.Out(path.NewIterator("/out"), intMeta(), pathspace.OutOpts{DoBlock: true, Timeout: 500 * time.Millisecond})
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	backing.Insert("/slow", 7, pathspace.InsertOptions{})

	select {
	case <-done:
		require.NoError(t, gotErr)
		assert.Equal(t, 7, got)
	case <-time.After(time.Second):
		t.Fatal("blocking trellis read never woke")
	}
}
