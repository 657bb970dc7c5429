package kvserver

import (
	"net"
	"os"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/skipor/kvserver/audit"
	"github.com/skipor/kvserver/client"
	"github.com/skipor/kvserver/internal/util"
	"github.com/skipor/kvserver/log"
	"github.com/skipor/kvserver/protocol"
	"github.com/skipor/kvserver/testutil"
)

var _ = Describe("Server", func() {
	var (
		conf          Config
		s             *Server
		ln            net.Listener
		serveFinished chan struct{}
		clients       []*client.Client
	)
	BeforeEach(func() {
		conf = Config{
			Workers:  2,
			Capacity: 2,
		}
		clients = nil
		serveFinished = make(chan struct{})
	})
	JustBeforeEach(func() {
		var err error
		s, err = NewServer(log.NewLogger(log.DebugLevel, GinkgoWriter), conf)
		Expect(err).To(BeNil())
		ln, err = net.Listen("tcp", "127.0.0.1:0")
		Expect(err).To(BeNil())
		go func() {
			defer GinkgoRecover()
			err := s.Serve(ln)
			Expect(util.Unwrap(err)).To(Equal(ErrServerClosed))
			close(serveFinished)
		}()
	})
	AfterEach(func() {
		for _, c := range clients {
			c.Close()
		}
		if !s.isClosed() {
			Expect(s.Close()).To(Succeed())
		}
		Eventually(serveFinished).Should(BeClosed())
	})
	Dial := func() *client.Client {
		c, err := client.DialTimeout(ln.Addr().String(), time.Second)
		ExpectWithOffset(1, err).To(BeNil())
		clients = append(clients, c)
		return c
	}

	It("ping", func() {
		Expect(Dial().Ping()).To(Succeed())
	})

	It("get what added", func() {
		c := Dial()
		Expect(c.Add(protocol.String("a"), protocol.Int(1))).To(Succeed())
		v, err := c.Get(protocol.String("a"))
		Expect(err).To(BeNil())
		ExpectValueEqual(v, protocol.Int(1))
	})

	It("data shared between connections", func() {
		Expect(Dial().Add(protocol.String("a"), protocol.String("x"))).To(Succeed())
		v, err := Dial().Get(protocol.String("a"))
		Expect(err).To(BeNil())
		ExpectValueEqual(v, protocol.String("x"))
	})

	It("capacity", func() {
		c := Dial()
		for _, k := range []string{"a", "b", "c"} {
			Expect(c.Add(protocol.String(k), protocol.String(k))).To(Succeed())
		}
		v, err := c.Get(protocol.String("a"))
		Expect(err).To(BeNil())
		ExpectValueEqual(v, protocol.Null{})
		v, err = c.Get(protocol.String("c"))
		Expect(err).To(BeNil())
		ExpectValueEqual(v, protocol.String("c"))
	})

	It("delete absent", func() {
		Expect(Dial().Delete(protocol.String("nope"))).To(Succeed())
	})

	It("unknown command", func() {
		res, err := Dial().Raw([]byte("FOO"))
		Expect(err).To(BeNil())
		Expect(string(res)).To(Equal("-" + UnsupportedOperationMessage + "\r\n"))
	})

	It("connections over workers number wait", func() {
		first, second := Dial(), Dial()
		Expect(first.Ping()).To(Succeed())
		Expect(second.Ping()).To(Succeed())
		Eventually(s.pool.Busy).Should(Equal(2))

		third := Dial()
		done := make(chan struct{})
		go func() {
			defer GinkgoRecover()
			defer close(done)
			Expect(third.Ping()).To(Succeed())
		}()
		Consistently(done, 0.2).ShouldNot(BeClosed())
		Expect(s.pool.Pending()).To(Equal(1))

		first.Close()
		Eventually(done).Should(BeClosed())
	})

	It("metrics", func() {
		c := Dial()
		Expect(c.Ping()).To(Succeed())
		Expect(c.Ping()).To(Succeed())
		Expect(s.Metrics.Accepted.Count()).To(BeEquivalentTo(1))
		Eventually(s.Metrics.Requests.Count).Should(BeEquivalentTo(2))
		Expect(s.Metrics.Registry.Get("workers.busy")).NotTo(BeNil())
	})

	Context("audit file", func() {
		BeforeEach(func() {
			conf.Audit = audit.Config{Name: testutil.TmpFileName()}
		})
		AfterEach(func() {
			os.Remove(conf.Audit.Name)
		})
		It("records operations", func() {
			c := Dial()
			Expect(c.Add(protocol.String("a"), protocol.Int(1))).To(Succeed())
			_, err := c.Get(protocol.String("a"))
			Expect(err).To(BeNil())
			Expect(c.Ping()).To(Succeed())
			Eventually(func() ([]byte, error) {
				return os.ReadFile(conf.Audit.Name)
			}).Should(And(
				ContainSubstring("\tAdd\t"),
				ContainSubstring("\tGet\t"),
				Not(ContainSubstring("\tPing\t")),
			))
		})
	})

	It("close twice", func() {
		Expect(s.Close()).To(Succeed())
		Eventually(serveFinished).Should(BeClosed())
		err := s.Close()
		Expect(util.Unwrap(err)).To(Equal(ErrServerClosed))
	})

	It("serve after close", func() {
		Expect(s.Close()).To(Succeed())
		Eventually(serveFinished).Should(BeClosed())
		other, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).To(BeNil())
		err = s.Serve(other)
		Expect(util.Unwrap(err)).To(Equal(ErrServerClosed))
	})
})

var _ = Describe("NewServer", func() {
	It("non positive capacity", func() {
		_, err := NewServer(log.Nop(), Config{})
		Expect(err).To(HaveOccurred())
	})
	It("audit file open error", func() {
		_, err := NewServer(log.Nop(), Config{Capacity: 1, Audit: audit.Config{Name: "/no/such/dir/audit"}})
		Expect(err).To(HaveOccurred())
	})
})
