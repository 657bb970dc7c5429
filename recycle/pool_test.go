package recycle

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Pool create", func() {
	var p *Pool
	var chunkSizes []int

	Context("nil chunkSizes", func() {
		BeforeEach(func() {
			p = NewPoolSizes(nil)
			chunkSizes = nil
		})
		It("use defaults", func() {
			Expect(p.chunkSizes).To(Equal(DefaultChunkSizes))
		})
	})

	Context("invalid configuration", func() {
		JustBeforeEach(func() {
			Expect(func() {
				NewPoolSizes(chunkSizes)
			}).Should(Panic())
		})
		Context("when chunk sizes are unsorted", func() {
			BeforeEach(func() {
				chunkSizes = []int{1 << 10, 1 << 8}
			})
			It("creation panics", func() {})
		})

		Context("when chunk sizes have duplicates", func() {
			BeforeEach(func() {
				chunkSizes = []int{1 << 8, 1 << 10, 1 << 10}
			})
			It("creation panics", func() {})
		})

		Context("when chunk size is not positive", func() {
			BeforeEach(func() {
				chunkSizes = []int{0, 1 << 10}
			})
			It("creation panics", func() {})
		})
	})
})

var _ = Describe("chunk requested", func() {
	var p *Pool
	BeforeEach(func() {
		p = NewPoolSizes([]int{1 << 6, 1 << 8, 1 << 10})
	})

	DescribeChunk := func(size, expectedCap int) {
		It("has requested len and pooled cap", func() {
			ch := p.Chunk(size)
			Expect(ch).To(HaveLen(size))
			Expect(cap(ch)).To(Equal(expectedCap))
			p.Recycle(ch)
		})
	}
	Context("small", func() { DescribeChunk(1<<4, 1<<4) })
	Context("min", func() { DescribeChunk(1<<6, 1<<6) })
	Context("between", func() { DescribeChunk(1<<6+1, 1<<8) })
	Context("max", func() { DescribeChunk(1<<10, 1<<10) })
	Context("too large", func() { DescribeChunk(1<<10+1, 1<<10+1) })

	It("recycle of foreign chunk panics", func() {
		Expect(func() { p.Recycle(make([]byte, 100)) }).To(Panic())
	})
})
