package protocol_test

import (
	"bytes"
	"errors"
	"strings"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/mariuswilms/beanstalk/protocol"
)

var _ = Describe("Writer", func() {
	Describe("Encode", func() {
		It("appends the body length to put and frames the body", func() {
			cmd := protocol.Put(1024, 0, time.Minute, []byte("hello"))
			Expect(string(cmd.Encode())).To(Equal("put 1024 0 60 5\r\nhello\r\n"))
		})

		It("frames an empty put body", func() {
			cmd := protocol.Put(0, 0, time.Second, nil)
			Expect(string(cmd.Encode())).To(Equal("put 0 0 1 0\r\n\r\n"))
		})

		It("never looks inside the body", func() {
			body := []byte("a\r\nb\r\n")
			cmd := protocol.Put(1, 2*time.Second, 3*time.Second, body)
			Expect(string(cmd.Encode())).To(Equal("put 1 2 3 6\r\na\r\nb\r\n\r\n"))
		})

		It("truncates durations to whole seconds", func() {
			cmd := protocol.Put(5, 1500*time.Millisecond, 90*time.Second, []byte("x"))
			Expect(string(cmd.Encode())).To(HavePrefix("put 5 1 90 1\r\n"))
		})

		It("sends the maximum priority unchanged", func() {
			cmd := protocol.Put(protocol.MaxPriority, 0, 0, []byte("x"))
			Expect(string(cmd.Encode())).To(HavePrefix("put 4294967295 0 0 1\r\n"))
		})

		It("encodes commands without arguments", func() {
			Expect(string(protocol.Reserve().Encode())).To(Equal("reserve\r\n"))
			Expect(string(protocol.StatsCmd().Encode())).To(Equal("stats\r\n"))
			Expect(string(protocol.ListTubes().Encode())).To(Equal("list-tubes\r\n"))
			Expect(string(protocol.ListTubeUsed().Encode())).To(Equal("list-tube-used\r\n"))
			Expect(string(protocol.ListTubesWatched().Encode())).To(Equal("list-tubes-watched\r\n"))
			Expect(string(protocol.PeekReady().Encode())).To(Equal("peek-ready\r\n"))
			Expect(string(protocol.PeekDelayed().Encode())).To(Equal("peek-delayed\r\n"))
			Expect(string(protocol.PeekBuried().Encode())).To(Equal("peek-buried\r\n"))
			Expect(string(protocol.Quit().Encode())).To(Equal("quit\r\n"))
		})

		It("encodes job commands", func() {
			Expect(string(protocol.Delete(42).Encode())).To(Equal("delete 42\r\n"))
			Expect(string(protocol.Release(42, 10, 5*time.Second).Encode())).To(Equal("release 42 10 5\r\n"))
			Expect(string(protocol.Bury(42, 10).Encode())).To(Equal("bury 42 10\r\n"))
			Expect(string(protocol.Touch(42).Encode())).To(Equal("touch 42\r\n"))
			Expect(string(protocol.Peek(42).Encode())).To(Equal("peek 42\r\n"))
			Expect(string(protocol.KickJob(42).Encode())).To(Equal("kick-job 42\r\n"))
			Expect(string(protocol.StatsJob(42).Encode())).To(Equal("stats-job 42\r\n"))
		})

		It("encodes reserve-with-timeout in seconds", func() {
			Expect(string(protocol.ReserveWithTimeout(0).Encode())).To(Equal("reserve-with-timeout 0\r\n"))
			Expect(string(protocol.ReserveWithTimeout(3 * time.Second).Encode())).To(Equal("reserve-with-timeout 3\r\n"))
			Expect(string(protocol.ReserveWithTimeout(-time.Second).Encode())).To(Equal("reserve-with-timeout 0\r\n"))
		})

		It("sends a negative kick bound as 0", func() {
			Expect(string(protocol.Kick(-3).Encode())).To(Equal("kick 0\r\n"))
			Expect(string(protocol.Kick(7).Encode())).To(Equal("kick 7\r\n"))
		})

		It("encodes tube commands", func() {
			cmd, err := protocol.Use("emails")
			Expect(err).To(Succeed())
			Expect(string(cmd.Encode())).To(Equal("use emails\r\n"))

			cmd, err = protocol.Watch("emails")
			Expect(err).To(Succeed())
			Expect(string(cmd.Encode())).To(Equal("watch emails\r\n"))

			cmd, err = protocol.Ignore("emails")
			Expect(err).To(Succeed())
			Expect(string(cmd.Encode())).To(Equal("ignore emails\r\n"))

			cmd, err = protocol.StatsTube("emails")
			Expect(err).To(Succeed())
			Expect(string(cmd.Encode())).To(Equal("stats-tube emails\r\n"))

			cmd, err = protocol.PauseTube("emails", 30*time.Second)
			Expect(err).To(Succeed())
			Expect(string(cmd.Encode())).To(Equal("pause-tube emails 30\r\n"))
		})

		It("refuses tube names that would break the line", func() {
			_, err := protocol.Use("two words")
			Expect(errors.Is(err, protocol.ErrInvalidTubeName)).To(BeTrue())

			_, err = protocol.Watch("")
			Expect(errors.Is(err, protocol.ErrInvalidTubeName)).To(BeTrue())

			_, err = protocol.Ignore("tab\there")
			Expect(errors.Is(err, protocol.ErrInvalidTubeName)).To(BeTrue())

			_, err = protocol.StatsTube("new\r\nline")
			Expect(errors.Is(err, protocol.ErrInvalidTubeName)).To(BeTrue())
		})
	})

	Describe("CheckTubeName", func() {
		It("accepts names up to 200 bytes", func() {
			Expect(protocol.CheckTubeName("default")).To(Succeed())
			Expect(protocol.CheckTubeName(strings.Repeat("a", 200))).To(Succeed())
		})

		It("rejects longer names", func() {
			err := protocol.CheckTubeName(strings.Repeat("a", 201))
			Expect(err).To(MatchError(ContainSubstring("limit is 200")))
			Expect(errors.Is(err, protocol.ErrInvalidTubeName)).To(BeTrue())
		})
	})

	Describe("WriteCommand", func() {
		It("writes the encoded command", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.WriteCommand(w, protocol.Touch(9))).To(Succeed())
			Expect(w.String()).To(Equal("touch 9\r\n"))
		})
	})

	Describe("WriteReply", func() {
		It("joins the status and fields with single spaces", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.WriteReply(w, protocol.StatusInserted, "12")).To(Succeed())
			Expect(w.String()).To(Equal("INSERTED 12\r\n"))
		})

		It("ends in \r\n", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.WriteReply(w, protocol.StatusDeleted)).To(Succeed())
			Expect(w.String()).To(Equal("DELETED\r\n"))
		})
	})

	Describe("WriteReplyBody", func() {
		It("appends the body length and frames the body", func() {
			w := bytes.NewBuffer([]byte{})

			Expect(protocol.WriteReplyBody(w, protocol.StatusReserved, []byte("hi"), "3")).To(Succeed())
			Expect(w.String()).To(Equal("RESERVED 3 2\r\nhi\r\n"))
		})
	})
})
