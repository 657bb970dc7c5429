package store

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("queue", func() {
	var q *queue
	BeforeEach(func() {
		q = newQueue()
	})
	AfterEach(func() {
		q.ExpectInvariantsOk()
	})
	testNode := func(key string) *node { return &node{key: key} }

	It("init", func() {
		Expect(q.empty()).To(BeTrue())
		Expect(q.pop()).To(BeNil())
	})

	It("push multi", func() {
		q.push(testNode("a"))
		q.push(testNode("b"))
		Expect(q.keys()).To(Equal([]string{"a", "b"}))
	})

	It("pop in push order", func() {
		for _, k := range []string{"a", "b", "c"} {
			q.push(testNode(k))
		}
		Expect(q.pop().key).To(Equal("a"))
		Expect(q.pop().key).To(Equal("b"))
		Expect(q.keys()).To(Equal([]string{"c"}))
	})

	It("remove from middle", func() {
		a, b, c := testNode("a"), testNode("b"), testNode("c")
		for _, n := range []*node{a, b, c} {
			q.push(n)
		}
		q.remove(b)
		Expect(b.owner).To(BeNil())
		Expect(q.keys()).To(Equal([]string{"a", "c"}))
	})

	It("move to tail", func() {
		a, b := testNode("a"), testNode("b")
		q.push(a)
		q.push(b)
		q.moveToTail(a)
		Expect(q.keys()).To(Equal([]string{"b", "a"}))
		Expect(q.len).To(Equal(2))
	})

	It("remove of not owned node panics", func() {
		Expect(func() { q.remove(testNode("x")) }).To(Panic())
	})
})
