package buffers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkennedy/peercache"
	"github.com/rkennedy/peercache/buffers"
)

func TestAllocateUpToCapacity(t *testing.T) {
	p := buffers.New(2)

	a := p.AllocateBuffer("a")
	require.NotNil(t, a)
	assert.Len(t, a, peercache.BlockSize)

	b := p.AllocateBuffer("b")
	require.NotNil(t, b)
	assert.Equal(t, 2, p.InUse())

	assert.Nil(t, p.AllocateBuffer("c"))
}

func TestFreeBufferReclaimsSlot(t *testing.T) {
	p := buffers.New(1)

	buf := p.AllocateBuffer("a")
	require.NotNil(t, buf)
	require.Nil(t, p.AllocateBuffer("b"))

	p.FreeBuffer(buf)
	assert.Equal(t, 0, p.InUse())

	again := p.AllocateBuffer("a")
	assert.NotNil(t, again)
}

func TestAllocateBufferIsZeroed(t *testing.T) {
	p := buffers.New(1)

	buf := p.AllocateBuffer("a")
	for i := range buf {
		buf[i] = 0xAA
	}
	p.FreeBuffer(buf)

	again := p.AllocateBuffer("a")
	for _, b := range again {
		assert.EqualValues(t, 0, b)
	}
}

func TestFreeMultipleBuffers(t *testing.T) {
	p := buffers.New(3)

	a := p.AllocateBuffer("a")
	b := p.AllocateBuffer("b")
	c := p.AllocateBuffer("c")
	require.Equal(t, 3, p.InUse())

	p.FreeMultipleBuffers([][]byte{a, b, c})
	assert.Equal(t, 0, p.InUse())
}
