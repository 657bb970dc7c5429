// Package recycle contains pool of reusable byte chunks.
// Connection handlers take read buffer from pool and return it after connection close.
package recycle

import (
	"fmt"
	"sync"
)

const minDefChunkSize = 1 << 4
const maxDefChunkSize = 1 << 16

var DefaultChunkSizes = func() (sz []int) {
	for chSz := minDefChunkSize; chSz <= maxDefChunkSize; chSz *= 2 {
		sz = append(sz, chSz)
	}
	return
}()

type Pool struct {
	chunkSizes []int
	chunkPools []sync.Pool
}

func NewPool() *Pool {
	return NewPoolSizes(DefaultChunkSizes)
}

// NewPoolSizes creates new pool, which produce chunks with sizes described in chunkSizes.
// chunkSizes should be sorted.
func NewPoolSizes(chunkSizes []int) *Pool {
	if chunkSizes == nil {
		chunkSizes = DefaultChunkSizes[:]
	}
	for i := 0; i < len(chunkSizes); i++ {
		size := chunkSizes[i]
		if size <= 0 {
			panic("non positive size")
		}
		if i != 0 && chunkSizes[i-1] >= size {
			panic("sizes unsorted or have duplicates")
		}
	}
	chunkPools := make([]sync.Pool, len(chunkSizes))
	for i := range chunkSizes {
		size := chunkSizes[i]
		chunkPools[i].New = func() interface{} {
			return make([]byte, size)
		}
	}
	return &Pool{
		chunkSizes: chunkSizes,
		chunkPools: chunkPools,
	}
}

// Chunk returns slice of len size. Chunks larger than MaxChunkSize are not pooled.
// Returned chunk content is undefined.
func (p *Pool) Chunk(size int) []byte {
	if p.isGCChunkSize(size) {
		return make([]byte, size)
	}
	// O(n) but len(chunkSizes) should be <= 30 normally.
	for i := range p.chunkSizes {
		if size <= p.chunkSizes[i] {
			return p.chunkPools[i].Get().([]byte)[:size]
		}
	}
	panic("unreachable")
}

// Recycle returns chunk got from Chunk into pool. Chunk must not be used after that.
func (p *Pool) Recycle(chunk []byte) {
	size := cap(chunk)
	if p.isGCChunkSize(size) {
		// Garbage, that should be collected by GC.
		return
	}
	for i := range p.chunkSizes {
		if size == p.chunkSizes[i] {
			p.chunkPools[i].Put(chunk[:size])
			return
		}
	}
	panic(fmt.Sprintf("unexpected chunk size: %v", size))
}

func (p *Pool) MinChunkSize() int {
	return p.chunkSizes[0]
}

func (p *Pool) MaxChunkSize() int {
	return p.chunkSizes[len(p.chunkSizes)-1]
}

// Too small and too large chunks are left for GC.
func (p *Pool) isGCChunkSize(size int) bool {
	return size <= p.MinChunkSize()/2 || size > p.MaxChunkSize()
}
