// Package workerpool provides fixed size pool of goroutines executing
// commands from shared unbounded queue.
//
// Worker runs task to completion and is not available to pool meanwhile.
// Server submits whole connection serving as one task, so pool of N workers
// serves at most N connections concurrently, and others wait in queue.
package workerpool

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/facebookgo/stackerr"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/skipor/kvserver/log"
)

var (
	ErrClosed       = errors.New("work queue is closed")
	ErrNonPositiveN = errors.New("workers number should be positive")
	ErrTerminated   = errors.New("pool is already terminated")
	errQueueDrained = errors.New("work queue closed without shutdown command")
	errTaskPanicked = errors.New("task panicked")
)

// Command is Task or Shutdown.
type Command interface {
	command()
}

// Task is unit of work. It is run by single worker to completion.
type Task func()

type shutdown struct{}

// Shutdown command makes worker that received it exit.
var Shutdown Command = shutdown{}

func (Task) command()     {}
func (shutdown) command() {}

type Pool struct {
	log     log.Logger
	n       int
	queue   *queue
	workers errgroup.Group
	busy    int32 // Atomic.

	terminated int32 // Atomic.
}

// New starts n workers waiting for commands.
func New(l log.Logger, n int) (*Pool, error) {
	if n <= 0 {
		return nil, stackerr.Wrap(ErrNonPositiveN)
	}
	p := &Pool{
		log:   l,
		n:     n,
		queue: newQueue(),
	}
	for id := 0; id < n; id++ {
		w := &worker{
			Pool: p,
			log:  l.WithFields(log.Fields{"worker": id}),
		}
		p.workers.Go(w.loop)
	}
	l.Debugf("Started %v workers.", n)
	return p, nil
}

// Send enqueues command. It fails only if pool queue is closed.
// Failed send is not retried.
func (p *Pool) Send(cmd Command) error {
	if cmd == nil {
		panic("nil command")
	}
	return p.queue.push(cmd)
}

func (p *Pool) Submit(t Task) error {
	return p.Send(t)
}

// Terminate sends Shutdown for every worker and waits until all of them exit.
// Busy workers exit only after they finish current task, so Terminate can block as long
// as longest running task. First worker failure is returned.
func (p *Pool) Terminate() error {
	if !atomic.CompareAndSwapInt32(&p.terminated, 0, 1) {
		return stackerr.Wrap(ErrTerminated)
	}
	p.log.Debug("Terminating pool.")
	shutdowns := make([]Command, p.n)
	for i := range shutdowns {
		shutdowns[i] = Shutdown
	}
	// Tasks can't be sent after shutdowns, so no task is left in queue without worker.
	err := p.queue.close(shutdowns...)
	if err != nil {
		return errors.Wrap(err, "shutdown send failed")
	}
	err = p.workers.Wait()
	if err != nil {
		return errors.Wrap(err, "worker join failed")
	}
	p.log.Debug("Pool terminated.")
	return nil
}

// Size returns number of workers.
func (p *Pool) Size() int { return p.n }

// Busy returns number of workers running task now.
func (p *Pool) Busy() int { return int(atomic.LoadInt32(&p.busy)) }

// Pending returns number of commands waiting in queue.
func (p *Pool) Pending() int { return p.queue.len() }

type worker struct {
	*Pool
	log log.Logger
}

func (w *worker) loop() error {
	for {
		cmd, err := w.queue.pop()
		if err != nil {
			// Queue is closed only after Shutdown for every worker was sent,
			// so there is nothing left to wait for.
			w.log.Error("Receive error: ", err)
			return stackerr.Wrap(errQueueDrained)
		}
		switch cmd := cmd.(type) {
		case Task:
			w.run(cmd)
		case shutdown:
			w.log.Debug("Shutting down.")
			return nil
		default:
			panic(fmt.Sprintf("unexpected command %T", cmd))
		}
	}
}

// run executes task. Task panic is logged and the task is abandoned, worker goes on.
func (w *worker) run(t Task) {
	atomic.AddInt32(&w.busy, 1)
	defer atomic.AddInt32(&w.busy, -1)
	defer func() {
		if r := recover(); r != nil {
			w.log.Errorf("%v: %v\n%s", errTaskPanicked, r, debug.Stack())
		}
	}()
	w.log.Debug("Running task.")
	t()
}

// queue is unbounded multi-consumer FIFO of commands.
type queue struct {
	mu       sync.Mutex
	nonEmpty *sync.Cond
	commands []Command
	closed   bool
}

func newQueue() *queue {
	q := &queue{}
	q.nonEmpty = sync.NewCond(&q.mu)
	return q
}

func (q *queue) push(cmd Command) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return stackerr.Wrap(ErrClosed)
	}
	q.commands = append(q.commands, cmd)
	q.nonEmpty.Signal()
	return nil
}

// pop blocks until there is command in queue. Commands pushed before close
// are still delivered after it.
func (q *queue) pop() (Command, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.commands) == 0 {
		if q.closed {
			return nil, stackerr.Wrap(ErrClosed)
		}
		q.nonEmpty.Wait()
	}
	cmd := q.commands[0]
	q.commands[0] = nil
	q.commands = q.commands[1:]
	return cmd, nil
}

// close pushes last commands and closes queue for new ones.
func (q *queue) close(last ...Command) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return stackerr.Wrap(ErrClosed)
	}
	q.commands = append(q.commands, last...)
	q.closed = true
	q.nonEmpty.Broadcast()
	return nil
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.commands)
}
