package scenesync

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceCache_SharedByKey(t *testing.T) {
	e := newFakeEngine()
	c := NewResourceCache(e, nil, discardLogger())
	key := ResourceKey{Kind: ResourceAppearance, Normals: true}

	h1, err := c.Acquire(key)
	require.NoError(t, err)
	h2, err := c.Acquire(key)
	require.NoError(t, err)

	assert.Equal(t, h1.Object(), h2.Object())
	assert.Equal(t, 3, c.RefCount(key))
	assert.Equal(t, 1, c.Len())

	other, err := c.Acquire(ResourceKey{Kind: ResourceAppearance, Transparent: true})
	require.NoError(t, err)
	assert.NotEqual(t, h1.Object(), other.Object())
	assert.Equal(t, 2, c.Len())
}

func TestResourceCache_SweepOnlyUnheld(t *testing.T) {
	e := newFakeEngine()
	c := NewResourceCache(e, nil, discardLogger())
	key := ResourceKey{Kind: ResourceVertices}

	h1, err := c.Acquire(key)
	require.NoError(t, err)
	h2, err := c.Acquire(key)
	require.NoError(t, err)

	h1.Release()
	h1.Release()
	assert.Equal(t, 2, c.RefCount(key))
	assert.Empty(t, c.Sweep())
	assert.Equal(t, 1, c.Len())

	h2.Release()
	assert.Equal(t, 1, c.RefCount(key))
	assert.Equal(t, []ResourceKey{key}, c.Sweep())
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, c.RefCount(key))
	assert.Equal(t, 0, e.liveObjects())
}

func TestResourceCache_DefaultAppearanceOwnsEffect(t *testing.T) {
	e := newFakeEngine()
	c := NewResourceCache(e, nil, discardLogger())
	key := ResourceKey{Kind: ResourceAppearance, Highlighted: true, Transparent: true}

	h, err := c.Acquire(key)
	require.NoError(t, err)
	assert.Equal(t, 2, e.liveObjects())
	assert.Equal(t, HighlightedColor, e.values[Endpoint{Object: h.Object(), Property: "uniforms.u_color"}])
	assert.Equal(t, float32(0.4), e.values[Endpoint{Object: h.Object(), Property: "uniforms.u_alpha"}])

	h.Release()
	c.Sweep()
	assert.Equal(t, 0, e.liveObjects())
}

func TestResourceCache_BuildError(t *testing.T) {
	c := NewResourceCache(newFakeEngine(), func(Engine, ResourceKey) (Resource, error) {
		return Resource{}, errors.New("out of memory")
	}, discardLogger())

	_, err := c.Acquire(ResourceKey{Kind: ResourceIndices})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of memory")
	assert.Equal(t, 0, c.Len())
}

func TestResourceCache_ConcurrentAcquireBuildsOnce(t *testing.T) {
	var builds int32
	release := make(chan struct{})
	c := NewResourceCache(newFakeEngine(), func(Engine, ResourceKey) (Resource, error) {
		atomic.AddInt32(&builds, 1)
		<-release
		return Resource{Primary: 7}, nil
	}, discardLogger())
	key := ResourceKey{Kind: ResourceIndices}

	const workers = 16
	var wg sync.WaitGroup
	var started sync.WaitGroup
	handles := make([]*ResourceHandle, workers)
	errs := make([]error, workers)
	started.Add(workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			started.Done()
			handles[i], errs[i] = c.Acquire(key)
		}(i)
	}
	started.Wait()
	close(release)
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ObjectID(7), handles[i].Object())
	}
	assert.Equal(t, workers+1, c.RefCount(key))
	assert.Equal(t, int32(1), atomic.LoadInt32(&builds))
	assert.Equal(t, 1, c.Len())
}

func TestResourceCache_ReleaseOfEvictedEntryPanics(t *testing.T) {
	c := NewResourceCache(newFakeEngine(), nil, discardLogger())
	h, err := c.Acquire(ResourceKey{Kind: ResourceIndices})
	require.NoError(t, err)
	c.Close()

	assert.PanicsWithValue(t, InvariantError{Msg: "release of unheld resource indices"}, func() {
		h.Release()
	})
}
