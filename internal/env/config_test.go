package env

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
	"github.com/sethvargo/go-envconfig"
	"go.uber.org/zap/zapcore"
)

var _ = Describe("Config", func() {
	It("falls back to the defaults", func() {
		conf, err := loadConfig(context.Background(), envconfig.MapLookuper(map[string]string{}))
		Expect(err).To(Succeed())

		Expect(conf.Host).To(Equal("127.0.0.1"))
		Expect(conf.Port).To(Equal(11300))
		Expect(conf.ConnectTimeout).To(Equal(time.Second))
		Expect(conf.ReadTimeout).To(BeZero())
		Expect(conf.Persistent).To(BeFalse())
		Expect(conf.LogLevel).To(Equal("info"))
	})

	It("reads BEANSTALK_ variables", func() {
		conf, err := loadConfig(context.Background(), envconfig.MapLookuper(map[string]string{
			"BEANSTALK_HOST":            "queue.internal",
			"BEANSTALK_PORT":            "11301",
			"BEANSTALK_PERSISTENT":      "true",
			"BEANSTALK_CONNECT_TIMEOUT": "250ms",
			"BEANSTALK_READ_TIMEOUT":    "3s",
			"BEANSTALK_TRACE":           "true",
			"BEANSTALK_LOG_LEVEL":       "debug",
		}))
		Expect(err).To(Succeed())

		Expect(conf.Host).To(Equal("queue.internal"))
		Expect(conf.Port).To(Equal(11301))
		Expect(conf.Persistent).To(BeTrue())
		Expect(conf.ConnectTimeout).To(Equal(250 * time.Millisecond))
		Expect(conf.ReadTimeout).To(Equal(3 * time.Second))
		Expect(conf.Trace).To(BeTrue())
		Expect(conf.LogLevel).To(Equal("debug"))
	})

	It("rejects malformed values", func() {
		_, err := loadConfig(context.Background(), envconfig.MapLookuper(map[string]string{
			"BEANSTALK_PORT": "eleven",
		}))
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("MakeLogger", func() {
	It("builds a logger at the given level", func() {
		log, err := MakeLogger("warn")
		Expect(err).To(Succeed())
		Expect(log.Core().Enabled(zapcore.InfoLevel)).To(BeFalse())
		Expect(log.Core().Enabled(zapcore.WarnLevel)).To(BeTrue())
	})

	It("rejects unknown levels", func() {
		_, err := MakeLogger("loud")
		Expect(err).To(HaveOccurred())
	})
})
