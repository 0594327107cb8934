package env

import (
	"context"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Host           string        `env:"BEANSTALK_HOST,default=127.0.0.1"`
	Port           int           `env:"BEANSTALK_PORT,default=11300"`
	Persistent     bool          `env:"BEANSTALK_PERSISTENT"`
	ConnectTimeout time.Duration `env:"BEANSTALK_CONNECT_TIMEOUT,default=1s"`
	ReadTimeout    time.Duration `env:"BEANSTALK_READ_TIMEOUT"`
	Trace          bool          `env:"BEANSTALK_TRACE"`
	LogLevel       string        `env:"BEANSTALK_LOG_LEVEL,default=info"`
	DebugHTTP      bool          `env:"BEANSTALK_DEBUG_HTTP"`
}

// LoadConfig reads .env.local, if there is one, and then the environment.
func LoadConfig(ctx context.Context) (*Config, error) {
	return loadConfig(ctx, envconfig.OsLookuper())
}

func loadConfig(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := envconfig.ProcessWith(ctx, &config, lookuper); err != nil {
		return nil, err
	}

	return &config, nil
}
