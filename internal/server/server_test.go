package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gbytes"

	"github.com/kushalsai-01/resolvecache/internal/cache"
	rcerrors "github.com/kushalsai-01/resolvecache/internal/errors"
)

const ReadTimeout = 1

type client struct {
	conn net.Conn
	out  *Buffer
}

func dial(addr string) *client {
	nc, err := net.Dial("tcp", addr)
	Expect(err).NotTo(HaveOccurred())
	out := NewBuffer()
	go func() {
		io.Copy(out, nc)
		out.Close()
	}()
	return &client{conn: nc, out: out}
}

func (c *client) Send(line string) {
	_, err := io.WriteString(c.conn, line+Separator)
	Expect(err).NotTo(HaveOccurred())
}

func (c *client) Expect(pattern string) {
	EventuallyWithOffset(1, c.out, ReadTimeout).Should(Say(pattern))
}

var _ = Describe("Server", func() {
	var (
		c        *cache.Cache
		calls    atomic.Int64
		resolver cache.Resolver
		srv      *Server
		cancel   context.CancelFunc
		done     chan error
		addr     string
		cl       *client
	)

	BeforeEach(func() {
		calls.Store(0)
		resolver = cache.ResolverFunc(func(_ context.Context, key string) (string, error) {
			calls.Add(1)
			switch key {
			case "down.example":
				return "", errors.New("upstream down")
			case "missing.example":
				return "", fmt.Errorf("%w: %s", rcerrors.ErrNotFound, key)
			case "multiline.example":
				return "1.2.3.4\r\nEND", nil
			}
			return "10.0.0." + fmt.Sprint(len(key)), nil
		})
	})

	JustBeforeEach(func() {
		var err error
		c, err = cache.New(cache.Config{
			Capacity:       2,
			TTL:            time.Minute,
			SweepInterval:  time.Hour,
			ResolveTimeout: time.Second,
		}, cache.WithLogger(slog.New(slog.NewTextHandler(GinkgoWriter, nil))))
		Expect(err).NotTo(HaveOccurred())

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		addr = ln.Addr().String()

		srv = &Server{
			ConnMeta: ConnMeta{Cache: c, Resolver: resolver},
			Log:      slog.New(slog.NewTextHandler(GinkgoWriter, &slog.HandlerOptions{Level: slog.LevelDebug})),
		}
		var ctx context.Context
		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan error, 1)
		go func() {
			defer GinkgoRecover()
			done <- srv.Serve(ctx, ln)
		}()
		cl = dial(addr)
	})

	AfterEach(func() {
		cancel()
		Eventually(done, ReadTimeout).Should(Receive(BeNil()))
		Expect(c.Close()).To(Succeed())
	})

	It("reports a miss then a hit", func() {
		cl.Send("resolve google.com")
		cl.Expect(`MISS 10\.0\.0\.10` + SeparatorPattern)
		cl.Send("resolve google.com")
		cl.Expect(`HIT 10\.0\.0\.10` + SeparatorPattern)
		Expect(calls.Load()).To(BeEquivalentTo(1))
	})

	It("evicts the least recently used key", func() {
		cl.Send("resolve a")
		cl.Expect("MISS")
		cl.Send("resolve bb")
		cl.Expect("MISS")
		cl.Send("resolve a")
		cl.Expect("HIT")
		cl.Send("resolve ccc")
		cl.Expect("MISS")
		cl.Send("size")
		cl.Expect("SIZE 2" + SeparatorPattern)
		cl.Send("resolve bb")
		cl.Expect("MISS")
	})

	It("removes keys", func() {
		cl.Send("resolve a")
		cl.Expect("MISS")
		cl.Send("remove a")
		cl.Expect(RemovedPattern)
		cl.Send("remove a")
		cl.Expect(RemovedPattern)
		cl.Send("size")
		cl.Expect("SIZE 0" + SeparatorPattern)
	})

	It("reports stats", func() {
		cl.Send("resolve a")
		cl.Expect("MISS")
		cl.Send("resolve a")
		cl.Expect("HIT")
		cl.Send("stats")
		cl.Expect(`STAT hits 1` + SeparatorPattern)
		cl.Expect(`STAT misses 1` + SeparatorPattern)
		cl.Expect(`STAT failures 0` + SeparatorPattern)
		cl.Expect(`STAT evictions 0` + SeparatorPattern)
		cl.Expect(`STAT expirations 0` + SeparatorPattern)
		cl.Expect(`STAT size 1` + SeparatorPattern)
		cl.Expect(`STAT hit_rate 0\.5000` + SeparatorPattern)
		cl.Expect(`STAT avg_latency_ms [\d.]+` + SeparatorPattern)
		cl.Expect(EndPattern)
	})

	Context("upstream failure", func() {
		It("answers with a server error and keeps the connection", func() {
			cl.Send("resolve down.example")
			cl.Expect(ServerErrorPattern)
			cl.Send("resolve missing.example")
			cl.Expect(ServerErrorPattern)
			cl.Send("size")
			cl.Expect("SIZE 0" + SeparatorPattern)
		})

		It("never splits a multi-line value into several responses", func() {
			valueErr := "^" + ServerErrorResponse + " " + ErrInvalidValue.Error() + SeparatorPattern
			cl.Send("resolve multiline.example")
			cl.Expect(valueErr)
			// Served from the cache the second time, still rejected.
			cl.Send("resolve multiline.example")
			cl.Expect(valueErr)
			cl.Send("size")
			cl.Expect("^SIZE 1" + SeparatorPattern)
			Expect(calls.Load()).To(BeEquivalentTo(1))
		})
	})

	Context("bad input", func() {
		It("answers unknown commands with ERROR", func() {
			cl.Send("get a")
			cl.Expect(ErrorPattern)
		})
		It("answers bad arguments with CLIENT_ERROR", func() {
			cl.Send("resolve")
			cl.Expect(ClientErrorPattern)
			cl.Send("resolve a b")
			cl.Expect(ClientErrorPattern)
			cl.Send("resolve " + strings.Repeat("k", MaxKeySize+1))
			cl.Expect(ClientErrorPattern)
			cl.Send("size now")
			cl.Expect(ClientErrorPattern)
			Expect(calls.Load()).To(BeZero())
		})
	})

	It("closes the connection on quit", func() {
		cl.Send("quit")
		Eventually(cl.out.Closed, ReadTimeout).Should(BeTrue())
	})

	It("serves concurrent clients", func() {
		other := dial(addr)
		defer other.conn.Close()
		cl.Send("resolve shared.example")
		other.Send("resolve shared.example")
		cl.Expect(`(HIT|MISS) 10\.0\.0\.14`)
		other.Expect(`(HIT|MISS) 10\.0\.0\.14`)
		Expect(calls.Load()).To(BeEquivalentTo(1))
	})

	It("closes open connections on shutdown", func() {
		cl.Send("size")
		cl.Expect("SIZE 0")
		cancel()
		Eventually(done, ReadTimeout).Should(Receive(BeNil()))
		Eventually(cl.out.Closed, ReadTimeout).Should(BeTrue())
		// AfterEach expects a value on done.
		done <- nil
	})
})
