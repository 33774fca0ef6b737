package hashcheck_test

import (
	"crypto/sha1"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rkennedy/peercache/hashcheck"
)

func TestComputeFromBlocksMatchesDirectHash(t *testing.T) {
	block0 := make([]byte, 16*1024)
	block1 := make([]byte, 16*1024)
	for i := range block0 {
		block0[i] = byte(i)
	}
	for i := range block1 {
		block1[i] = byte(255 - i)
	}

	full := append(append([]byte(nil), block0...), block1[:100]...)
	expected := sha1.Sum(full)

	actual := hashcheck.ComputeFromBlocks([][]byte{block0, block1}, uint32(len(full)))
	assert.Equal(t, expected, actual)
}

func TestVerify(t *testing.T) {
	a := sha1.Sum([]byte("hello"))
	b := sha1.Sum([]byte("world"))

	assert.True(t, hashcheck.Verify(a, a))
	assert.False(t, hashcheck.Verify(a, b))
}

func TestPoolRunsTaskAsynchronously(t *testing.T) {
	pool := hashcheck.NewPool(2)
	defer pool.Close()

	done := make(chan [20]byte, 1)
	pool.Submit(hashcheck.Task{
		Compute: func() ([20]byte, error) {
			return sha1.Sum([]byte("async")), nil
		},
		Done: func(hash [20]byte, err error) {
			require.NoError(t, err)
			done <- hash
		},
	})

	select {
	case got := <-done:
		assert.Equal(t, sha1.Sum([]byte("async")), got)
	case <-time.After(time.Second):
		t.Fatal("task never completed")
	}
}
