package store

import (
	"fmt"

	"github.com/skipor/kvserver/protocol"
)

// Pre and post conditions (Invariants) for queue methods:
// * queue owns nodes between fakeHead and fakeTail.
// * {fakeHead, all owned nodes, fakeTail} are correct doubly linked list.
// * all nodes owned by queue have field node.owner equal to &queue
// * queue.len equal number of owned nodes.
type queue struct {
	len int

	// Fake nodes. Real nodes are between them.
	// nil <- fakeHead <-> node_0 <-> ... <-> node_(n-1) <-> fakeTail -> nil
	// Such structure prevent nil checks in code.

	// fakeHead is bottom of queue. fakeHead.next is earliest added item.
	fakeHead *node

	// fakeTail is top of queue. All new added before fakeTail.
	fakeTail *node
}

// For debug output.
const fakeHeadKey = " !HEAD! "
const fakeTailKey = " !TAIL! "

func newQueue() *queue {
	q := &queue{}
	q.fakeHead, q.fakeTail = &node{key: fakeHeadKey}, &node{key: fakeTailKey}
	link(q.fakeHead, q.fakeTail)
	return q
}

func (q *queue) push(n *node) {
	n.owner = q
	q.len++
	link(q.tail(), n)
	link(n, q.fakeTail)
}

// pop detaches and returns earliest pushed node, or nil if queue is empty.
func (q *queue) pop() *node {
	if q.empty() {
		return nil
	}
	n := q.head()
	q.remove(n)
	return n
}

func (q *queue) remove(n *node) {
	if n.owner != q {
		panic(fmt.Sprintf("remove of not owned node %#v", n))
	}
	link(n.prev, n.next)
	n.prev, n.next, n.owner = nil, nil, nil
	q.len--
}

// moveToTail makes n latest pushed node.
func (q *queue) moveToTail(n *node) {
	q.remove(n)
	q.push(n)
}

func (q *queue) head() *node      { return q.fakeHead.next }
func (q *queue) tail() *node      { return q.fakeTail.prev }
func (q *queue) end(n *node) bool { return n == q.fakeTail }
func (q *queue) empty() bool      { return q.len == 0 }

type node struct {
	// key is protocol.Key of stored key.
	key   string
	Key   protocol.Value
	Value protocol.Value
	owner *queue
	prev  *node
	next  *node
}

func link(a, b *node) { a.next, b.prev = b, a }

func (n *node) GoString() string {
	key := func(n *node) interface{} {
		if n == nil {
			return nil
		}
		return n.key
	}
	return fmt.Sprintf("{Key:%v, Value:%v, owner:%p, prev:%v, next:%v}",
		n.Key, n.Value, n.owner, key(n.prev), key(n.next))
}

var _ fmt.GoStringer = (*node)(nil)
