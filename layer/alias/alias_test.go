// SPDX-License-Identifier: MIT

package alias

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaissmai/pathspace"
	"github.com/gaissmai/pathspace/internal/path"
	"github.com/gaissmai/pathspace/internal/queue"
)

func intMeta() queue.Meta { return queue.Meta{Type: reflect.TypeOf(0)} }

func TestAliasRewritesInsertsAndReads(t *testing.T) {
	upstream := pathspace.New()
	defer upstream.Shutdown()
	a := New(upstream, "/upstream")

	ret := a.In(path.NewIterator("/node"), pathspace.InsertInput{Value: 123})
	require.Empty(t, ret.Errors)

	v, err := upstream.Out(path.NewIterator("/upstream/node"), intMeta(), pathspace.OutOpts{})
	require.NoError(t, err)
	assert.Equal(t, 123, v)

	viaAlias, err := a.Out(path.NewIterator("/node"), intMeta(), pathspace.OutOpts{})
	require.NoError(t, err)
	assert.Equal(t, 123, viaAlias)
}

func TestAliasRetargetRoutesNewInsertsToNewPrefix(t *testing.T) {
	upstream := pathspace.New()
	defer upstream.Shutdown()
	a := New(upstream, "/upstream")

	a.SetTargetPrefix("/newroot")
	ret := a.In(path.NewIterator("/second"), pathspace.InsertInput{Value: 321})
	require.Empty(t, ret.Errors)

	v, err := upstream.Out(path.NewIterator("/newroot/second"), intMeta(), pathspace.OutOpts{})
	require.NoError(t, err)
	assert.Equal(t, 321, v)
}

func TestAliasListChildren(t *testing.T) {
	upstream := pathspace.New()
	defer upstream.Shutdown()
	a := New(upstream, "/mount")

	upstream.Insert("/mount/a", 1, pathspace.InsertOptions{})
	upstream.Insert("/mount/b", 2, pathspace.InsertOptions{})

	names, err := a.ListChildren("/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, names)
}

func TestAliasSurfacesErrorsWhenUpstreamMissing(t *testing.T) {
	a := New(nil, "/missing")

	ret := a.In(path.NewIterator("/value"), pathspace.InsertInput{Value: 42})
	assert.NotEmpty(t, ret.Errors)

	_, err := a.Out(path.NewIterator("/value"), intMeta(), pathspace.OutOpts{})
	assert.Error(t, err)
}
