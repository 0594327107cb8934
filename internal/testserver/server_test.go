package testserver_test

import (
	"bufio"
	"context"
	"io"
	"net"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/mariuswilms/beanstalk/internal/testserver"
)

var _ = Describe("Server", func() {
	var (
		srv  *testserver.Server
		conn net.Conn
		r    *bufio.Reader
	)

	send := func(data string) string {
		_, err := conn.Write([]byte(data))
		Expect(err).To(Succeed())

		line, err := r.ReadString('\n')
		Expect(err).To(Succeed())
		return line
	}

	BeforeEach(func() {
		srv = testserver.New(testserver.Options{MaxJobSize: 16})
		Expect(srv.Start(context.Background())).To(Succeed())

		var err error
		conn, err = net.Dial("tcp", srv.Addr())
		Expect(err).To(Succeed())
		r = bufio.NewReader(conn)
	})

	AfterEach(func() {
		conn.Close()
		Expect(srv.Close()).To(Succeed())
	})

	It("listens on a free port", func() {
		Expect(srv.Port()).NotTo(BeZero())
		Expect(srv.Host()).To(Equal("127.0.0.1"))
	})

	It("inserts and reserves jobs", func() {
		Expect(send("put 0 0 10 5\r\nhello\r\n")).To(Equal("INSERTED 1\r\n"))
		Expect(send("reserve\r\n")).To(Equal("RESERVED 1 5\r\n"))

		body := make([]byte, 7)
		_, err := io.ReadFull(r, body)
		Expect(err).To(Succeed())
		Expect(string(body)).To(Equal("hello\r\n"))

		Expect(send("delete 1\r\n")).To(Equal("DELETED\r\n"))
		Expect(send("delete 1\r\n")).To(Equal("NOT_FOUND\r\n"))
	})

	It("refuses bodies over the limit", func() {
		Expect(send("put 0 0 10 20\r\n01234567890123456789\r\n")).To(Equal("JOB_TOO_BIG\r\n"))
		Expect(send("list-tube-used\r\n")).To(Equal("USING default\r\n"))
	})

	It("wants CRLF after a body", func() {
		Expect(send("put 0 0 10 2\r\nhiXX")).To(Equal("EXPECTED_CRLF\r\n"))
	})

	It("rejects unknown commands and bad arguments", func() {
		Expect(send("frobnicate\r\n")).To(Equal("UNKNOWN_COMMAND\r\n"))
		Expect(send("delete x\r\n")).To(Equal("BAD_FORMAT\r\n"))
		Expect(send("watch\r\n")).To(Equal("BAD_FORMAT\r\n"))
	})

	It("times out reservations", func() {
		start := time.Now()
		Expect(send("reserve-with-timeout 0\r\n")).To(Equal("TIMED_OUT\r\n"))
		Expect(time.Since(start)).To(BeNumerically("<", time.Second))
	})

	It("serves stats as yaml", func() {
		Expect(send("stats-tube missing\r\n")).To(Equal("NOT_FOUND\r\n"))

		line := send("list-tubes\r\n")
		Expect(line).To(Equal("OK 14\r\n"))

		body := make([]byte, 16)
		_, err := io.ReadFull(r, body)
		Expect(err).To(Succeed())
		Expect(string(body)).To(Equal("---\n- default\n\r\n"))
	})

	It("closes the connection on quit", func() {
		_, err := conn.Write([]byte("quit\r\n"))
		Expect(err).To(Succeed())

		_, err = r.ReadString('\n')
		Expect(err).To(MatchError(io.EOF))
	})
})
