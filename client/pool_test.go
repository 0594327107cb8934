package client_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/mariuswilms/beanstalk/client"
	"github.com/mariuswilms/beanstalk/internal/testserver"
)

var _ = Describe("Pool", func() {
	var (
		ctx   context.Context
		srv   *testserver.Server
		pool  *client.Pool
		dials int
	)

	BeforeEach(func() {
		ctx = context.Background()
		srv = startServer(testserver.Options{})
		dials = 0

		pool = &client.Pool{
			Dial: func(ctx context.Context) (*client.Conn, error) {
				dials++
				return client.Dial(ctx, client.Options{Host: srv.Host(), Port: srv.Port()})
			},
			MaxIdle:   1,
			MaxActive: 2,
		}
	})

	AfterEach(func() {
		Expect(pool.Close()).To(Succeed())
		Expect(srv.Close()).To(Succeed())
	})

	It("reuses returned connections", func() {
		conn, err := pool.Get(ctx)
		Expect(err).To(Succeed())
		Expect(pool.Put(conn)).To(Succeed())
		Expect(pool.IdleCount()).To(Equal(1))

		again, err := pool.Get(ctx)
		Expect(err).To(Succeed())
		Expect(again).To(BeIdenticalTo(conn))
		Expect(dials).To(Equal(1))
		Expect(pool.Put(again)).To(Succeed())
	})

	It("closes connections beyond MaxIdle", func() {
		a, err := pool.Get(ctx)
		Expect(err).To(Succeed())
		b, err := pool.Get(ctx)
		Expect(err).To(Succeed())
		Expect(pool.ActiveCount()).To(Equal(2))

		Expect(pool.Put(a)).To(Succeed())
		Expect(pool.Put(b)).To(Succeed())

		Expect(pool.IdleCount()).To(Equal(1))
		Expect(pool.ActiveCount()).To(Equal(1))
		Expect(a.Connected()).To(BeFalse())
	})

	It("refuses more than MaxActive connections", func() {
		a, err := pool.Get(ctx)
		Expect(err).To(Succeed())
		b, err := pool.Get(ctx)
		Expect(err).To(Succeed())

		_, err = pool.Get(ctx)
		Expect(errors.Is(err, client.ErrPoolExhausted)).To(BeTrue())

		Expect(pool.Put(a)).To(Succeed())
		Expect(pool.Put(b)).To(Succeed())
	})

	It("waits for a connection when Wait is set", func() {
		pool.Wait = true
		pool.MaxActive = 1

		a, err := pool.Get(ctx)
		Expect(err).To(Succeed())

		got := make(chan *client.Conn, 1)
		go func() {
			defer GinkgoRecover()

			c, err := pool.Get(ctx)
			Expect(err).To(Succeed())
			got <- c
		}()

		Consistently(got, 100*time.Millisecond).ShouldNot(Receive())
		Expect(pool.Put(a)).To(Succeed())

		var c *client.Conn
		Eventually(got).Should(Receive(&c))
		Expect(c).To(BeIdenticalTo(a))
		Expect(pool.Put(c)).To(Succeed())
	})

	It("drops disconnected connections", func() {
		conn, err := pool.Get(ctx)
		Expect(err).To(Succeed())
		Expect(conn.Disconnect()).To(Succeed())

		Expect(pool.Put(conn)).To(Succeed())
		Expect(pool.IdleCount()).To(Equal(0))
		Expect(pool.ActiveCount()).To(Equal(0))
	})

	It("refuses Get once closed", func() {
		Expect(pool.Close()).To(Succeed())

		_, err := pool.Get(ctx)
		Expect(err).To(HaveOccurred())
	})
})
