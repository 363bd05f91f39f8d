package nodemap

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedProvider struct {
	calls int
	table map[uint64]Layout
}

func (p *fixedProvider) Layout(id uint64) (Layout, error) {
	p.calls++
	l, ok := p.table[id]
	if !ok {
		return Layout{}, fmt.Errorf("no such type %d", id)
	}
	return l, nil
}

func TestFindCachesProviderResult(t *testing.T) {
	p := &fixedProvider{table: map[uint64]Layout{
		1: {DataWords: 2, PointerCount: 3},
	}}
	m := New(p)

	l, err := m.Find(1)
	require.NoError(t, err)
	assert.Equal(t, Layout{DataWords: 2, PointerCount: 3}, l)
	assert.Equal(t, 1, p.calls)

	_, err = m.Find(1)
	require.NoError(t, err)
	assert.Equal(t, 1, p.calls, "second lookup should hit the cache")
}

func TestFindPropagatesProviderError(t *testing.T) {
	p := &fixedProvider{table: map[uint64]Layout{}}
	m := New(p)

	_, err := m.Find(42)
	assert.Error(t, err)
}

func TestForgetEvictsEntry(t *testing.T) {
	p := &fixedProvider{table: map[uint64]Layout{7: {DataWords: 1}}}
	m := New(p)

	_, err := m.Find(7)
	require.NoError(t, err)
	m.Forget(7)
	_, err = m.Find(7)
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls, "forgetting an entry should force a re-query")
}
