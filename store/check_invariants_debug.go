//go:build debug

// Gomega should not be dependency in non-debug build.

package store

import (
	"errors"
	"log"

	"github.com/facebookgo/stackerr"
	. "github.com/onsi/gomega"
)

var _ = func() (_ struct{}) {
	RegisterFailHandler(GomegaFailHandler)
	return
}()

func GomegaFailHandler(message string, callerSkip ...int) {
	skip := 1
	if len(callerSkip) > 0 {
		skip += callerSkip[0]
	}
	log.Fatal("FATAL: invariants are broken:", stackerr.WrapSkip(errors.New(message), skip))
}

func (q *queue) checkInvariants() {
	Expect(q.fakeHead.prev).To(BeNil())
	Expect(q.fakeTail.next).To(BeNil())
	Expect(q.fakeHead.owner).To(BeNil())
	Expect(q.fakeTail.owner).To(BeNil())
	var actualLen int
	for n := q.head(); !q.end(n); n = n.next {
		actualLen++
		Expect(n.prev.next).To(BeIdenticalTo(n))
		Expect(n.owner).To(BeIdenticalTo(q))
	}
	Expect(q.tail().next).To(BeIdenticalTo(q.fakeTail))
	Expect(actualLen).To(Equal(q.len))
}

func (s *Store) checkInvariants() {
	s.queue.checkInvariants()
	for n := s.queue.head(); !s.queue.end(n); n = n.next {
		tn, ok := s.table[n.key]
		Expect(ok).To(BeTrue(), n.key, "no table ref to item")
		Expect(tn).To(BeIdenticalTo(n), "table refs to another node")
	}
	ExpectWithOffset(1, s.queue.len).To(Equal(len(s.table)), "too many items in table")
	ExpectWithOffset(1, s.queue.len).To(BeNumerically("<=", s.capacity), "capacity overflow")
}
