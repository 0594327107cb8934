package client_test

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/mariuswilms/beanstalk/client"
	"github.com/mariuswilms/beanstalk/internal/testserver"
	"github.com/mariuswilms/beanstalk/protocol"
)

func itoa(n int) string {
	return strconv.Itoa(n)
}

func startServer(options testserver.Options) *testserver.Server {
	srv := testserver.New(options)
	Expect(srv.Start(context.Background())).To(Succeed())

	return srv
}

func dialServer(srv *testserver.Server) *client.Conn {
	conn, err := client.Dial(context.Background(), client.Options{
		Host:           srv.Host(),
		Port:           srv.Port(),
		ConnectTimeout: time.Second,
		ReadTimeout:    5 * time.Second,
	})
	Expect(err).To(Succeed())

	return conn
}

var _ = Describe("Conn against a server", func() {
	var (
		ctx  context.Context
		srv  *testserver.Server
		conn *client.Conn
	)

	BeforeEach(func() {
		ctx = context.Background()
		srv = startServer(testserver.Options{})
		conn = dialServer(srv)
	})

	AfterEach(func() {
		conn.Close()
		Expect(srv.Close()).To(Succeed())
	})

	Describe("job lifecycle", func() {
		It("puts, reserves and deletes", func() {
			id, err := conn.Put(ctx, []byte("hello"), 1024, 0, time.Minute)
			Expect(err).To(Succeed())

			job, err := conn.Reserve(ctx)
			Expect(err).To(Succeed())
			Expect(job.ID).To(Equal(id))
			Expect(string(job.Body)).To(Equal("hello"))

			Expect(conn.Delete(ctx, id)).To(Succeed())

			err = conn.Delete(ctx, id)
			Expect(errors.Is(err, protocol.ErrNotFound)).To(BeTrue())
		})

		for _, size := range []int{8192 + 4, 8192 * 4} {
			size := size

			It("round trips a body of "+itoa(size)+" bytes", func() {
				body := bytes.Repeat([]byte("0123456789"), size/10+1)[:size]

				id, err := conn.Put(ctx, body, 0, 0, time.Minute)
				Expect(err).To(Succeed())

				job, err := conn.Reserve(ctx)
				Expect(err).To(Succeed())
				Expect(job.ID).To(Equal(id))
				Expect(job.Body).To(Equal(body))
			})
		}

		It("round trips bodies that contain CRLF", func() {
			body := []byte("line one\r\nline two\r\n")

			_, err := conn.Put(ctx, body, 0, 0, time.Minute)
			Expect(err).To(Succeed())

			job, err := conn.ReserveWithTimeout(ctx, 0)
			Expect(err).To(Succeed())
			Expect(job.Body).To(Equal(body))
		})

		It("releases, buries and kicks", func() {
			id, err := conn.Put(ctx, []byte("x"), 10, 0, time.Minute)
			Expect(err).To(Succeed())

			_, err = conn.Reserve(ctx)
			Expect(err).To(Succeed())
			Expect(conn.Touch(ctx, id)).To(Succeed())
			Expect(conn.Release(ctx, id, 20, 0)).To(Succeed())

			_, err = conn.Reserve(ctx)
			Expect(err).To(Succeed())
			Expect(conn.Bury(ctx, id, 30)).To(Succeed())

			job, err := conn.PeekBuried(ctx)
			Expect(err).To(Succeed())
			Expect(job.ID).To(Equal(id))

			stats, err := conn.StatsJob(ctx, id)
			Expect(err).To(Succeed())
			state, _ := stats.Get("state")
			Expect(protocol.ParseJobState(state.Raw)).To(Equal(protocol.StateBuried))
			pri, _ := stats.Int("pri")
			Expect(pri).To(BeEquivalentTo(30))

			n, err := conn.Kick(ctx, 5)
			Expect(err).To(Succeed())
			Expect(n).To(Equal(1))

			job, err = conn.PeekReady(ctx)
			Expect(err).To(Succeed())
			Expect(job.ID).To(Equal(id))
		})

		It("kicks a single delayed job", func() {
			id, err := conn.Put(ctx, []byte("later"), 0, time.Hour, time.Minute)
			Expect(err).To(Succeed())

			job, err := conn.PeekDelayed(ctx)
			Expect(err).To(Succeed())
			Expect(job.ID).To(Equal(id))

			Expect(conn.KickJob(ctx, id)).To(Succeed())

			_, err = conn.PeekDelayed(ctx)
			Expect(errors.Is(err, protocol.ErrNotFound)).To(BeTrue())
		})

		It("refuses to touch a job it does not hold", func() {
			id, err := conn.Put(ctx, []byte("x"), 0, 0, time.Minute)
			Expect(err).To(Succeed())

			err = conn.Touch(ctx, id)
			Expect(err).To(HaveOccurred())
			Expect(conn.Connected()).To(BeTrue())
		})

		It("refuses bodies over the server limit and stays usable", func() {
			small := startServer(testserver.Options{MaxJobSize: 1024})
			defer small.Close()

			c := dialServer(small)
			defer c.Close()

			_, err := c.Put(ctx, make([]byte, 2048), 0, 0, time.Minute)
			Expect(errors.Is(err, protocol.ErrJobTooBig)).To(BeTrue())
			Expect(protocol.StatusOf(err)).To(Equal(protocol.StatusJobTooBig))
			Expect(c.Connected()).To(BeTrue())

			id, err := c.Put(ctx, make([]byte, 1024), 0, 0, time.Minute)
			Expect(err).To(Succeed())

			job, err := c.ReserveWithTimeout(ctx, 0)
			Expect(err).To(Succeed())
			Expect(job.ID).To(Equal(id))
			Expect(job.Body).To(HaveLen(1024))

			_, err = c.ReserveWithTimeout(ctx, 0)
			Expect(errors.Is(err, protocol.ErrTimedOut)).To(BeTrue())
		})
	})

	Describe("tubes", func() {
		It("uses the same tube twice", func() {
			for i := 0; i < 2; i++ {
				name, err := conn.Use(ctx, "emails")
				Expect(err).To(Succeed())
				Expect(name).To(Equal("emails"))
			}

			used, err := conn.ListTubeUsed(ctx)
			Expect(err).To(Succeed())
			Expect(used).To(Equal("emails"))
		})

		It("counts watched tubes", func() {
			n, err := conn.Watch(ctx, "a")
			Expect(err).To(Succeed())
			Expect(n).To(Equal(2))

			n, err = conn.Watch(ctx, "a")
			Expect(err).To(Succeed())
			Expect(n).To(Equal(2))

			watched, err := conn.ListTubesWatched(ctx)
			Expect(err).To(Succeed())
			Expect(watched).To(Equal([]string{"default", "a"}))

			n, err = conn.Ignore(ctx, "default")
			Expect(err).To(Succeed())
			Expect(n).To(Equal(1))

			_, err = conn.Ignore(ctx, "a")
			Expect(errors.Is(err, protocol.ErrNotIgnored)).To(BeTrue())
		})

		It("lists tubes", func() {
			_, err := conn.Use(ctx, "emails")
			Expect(err).To(Succeed())

			tubes, err := conn.ListTubes(ctx)
			Expect(err).To(Succeed())
			Expect(tubes).To(ConsistOf("default", "emails"))
		})

		It("counts urgent jobs per tube", func() {
			_, err := conn.Use(ctx, "urgent")
			Expect(err).To(Succeed())

			for i := 0; i < 2; i++ {
				_, err := conn.Put(ctx, []byte("now"), 0, 0, time.Minute)
				Expect(err).To(Succeed())
			}
			_, err = conn.Put(ctx, []byte("later"), protocol.DefaultPriority, 0, time.Minute)
			Expect(err).To(Succeed())

			stats, err := conn.StatsTube(ctx, "urgent")
			Expect(err).To(Succeed())

			urgent, ok := stats.Int("current-jobs-urgent")
			Expect(ok).To(BeTrue())
			Expect(urgent).To(BeEquivalentTo(2))

			ready, _ := stats.Int("current-jobs-ready")
			Expect(ready).To(BeEquivalentTo(3))
		})

		It("pauses a tube", func() {
			Expect(conn.PauseTube(ctx, "default", time.Minute)).To(Succeed())

			stats, err := conn.StatsTube(ctx, "default")
			Expect(err).To(Succeed())
			pause, _ := stats.Int("pause")
			Expect(pause).To(BeEquivalentTo(60))

			err = conn.PauseTube(ctx, "missing", time.Minute)
			Expect(errors.Is(err, protocol.ErrNotFound)).To(BeTrue())
		})

		It("reports server stats", func() {
			_, err := conn.Put(ctx, []byte("x"), 0, 0, time.Minute)
			Expect(err).To(Succeed())

			stats, err := conn.Stats(ctx)
			Expect(err).To(Succeed())

			puts, ok := stats.Int("cmd-put")
			Expect(ok).To(BeTrue())
			Expect(puts).To(BeEquivalentTo(1))

			connections, _ := stats.Int("current-connections")
			Expect(connections).To(BeEquivalentTo(1))
		})
	})

	Describe("reserve", func() {
		It("times out after the given number of seconds", func() {
			start := time.Now()

			_, err := conn.ReserveWithTimeout(ctx, time.Second)
			Expect(errors.Is(err, protocol.ErrTimedOut)).To(BeTrue())
			Expect(time.Since(start)).To(BeNumerically(">=", 900*time.Millisecond))
			Expect(time.Since(start)).To(BeNumerically("<", 3*time.Second))
			Expect(conn.Connected()).To(BeTrue())
		})

		It("is woken by a put on another connection", func() {
			producer := dialServer(srv)
			defer producer.Close()

			reserved := make(chan *client.Job, 1)
			go func() {
				defer GinkgoRecover()

				job, err := conn.Reserve(ctx)
				Expect(err).To(Succeed())
				reserved <- job
			}()

			Consistently(reserved, 200*time.Millisecond).ShouldNot(Receive())

			id, err := producer.Put(ctx, []byte("wake up"), 0, 0, time.Minute)
			Expect(err).To(Succeed())

			var job *client.Job
			Eventually(reserved, 2*time.Second).Should(Receive(&job))
			Expect(job.ID).To(Equal(id))
			Expect(string(job.Body)).To(Equal("wake up"))
		})

		It("puts a reservation back when its connection goes away", func() {
			id, err := conn.Put(ctx, []byte("x"), 0, 0, time.Minute)
			Expect(err).To(Succeed())
			_, err = conn.Reserve(ctx)
			Expect(err).To(Succeed())

			Expect(conn.Disconnect()).To(Succeed())

			other := dialServer(srv)
			defer other.Close()

			job, err := other.ReserveWithTimeout(ctx, 2*time.Second)
			Expect(err).To(Succeed())
			Expect(job.ID).To(Equal(id))
		})
	})

	Describe("connection state", func() {
		It("fails fast after Disconnect and recovers with Connect", func() {
			Expect(conn.Disconnect()).To(Succeed())

			_, err := conn.Stats(ctx)
			Expect(errors.Is(err, client.ErrNotConnected)).To(BeTrue())

			Expect(conn.Connect(ctx)).To(Succeed())

			_, err = conn.Stats(ctx)
			Expect(err).To(Succeed())
		})

		It("disconnects when the server goes away", func() {
			Expect(srv.Close()).To(Succeed())

			_, err := conn.Stats(ctx)
			Expect(err).To(HaveOccurred())

			var connErr client.ConnError
			Expect(errors.As(err, &connErr)).To(BeTrue())
			Expect(conn.Connected()).To(BeFalse())
		})
	})
})
