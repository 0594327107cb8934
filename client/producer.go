package client

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mariuswilms/beanstalk/protocol"
)

// Put puts a job into the used tube with priority pri and TTR ttr, and
// returns the id of the new job. If delay is nonzero, the server waits that
// long before putting the job into the ready queue.
//
// A job the server had to bury because it ran out of memory still has an
// id, so that case is returned as success.
func (c *Conn) Put(ctx context.Context, body []byte, pri uint32, delay, ttr time.Duration) (uint64, error) {
	resp, err := c.do(ctx, protocol.Put(pri, delay, ttr, body))
	if err != nil {
		return 0, err
	}

	id, err := c.field(resp, protocol.PUT, 0)
	if err != nil {
		return 0, err
	}

	if resp.Status == protocol.StatusBuried {
		c.log.Warn("Job was buried on insert", zap.Uint64("id", id))
	}

	return id, nil
}

// Use sets the tube later puts go into, and returns the tube name the
// server confirmed.
func (c *Conn) Use(ctx context.Context, tube string) (string, error) {
	cmd, err := protocol.Use(tube)
	if err != nil {
		return "", c.fail(string(protocol.USE), err)
	}

	resp, err := c.do(ctx, cmd)
	if err != nil {
		return "", err
	}

	name, err := resp.String(0)
	if err != nil {
		return "", c.fail(string(protocol.USE), err)
	}

	return name, nil
}

// Choose is Use.
func (c *Conn) Choose(ctx context.Context, tube string) (string, error) {
	return c.Use(ctx, tube)
}

// PauseTube stops reservations from tube for delay.
func (c *Conn) PauseTube(ctx context.Context, tube string, delay time.Duration) error {
	cmd, err := protocol.PauseTube(tube, delay)
	if err != nil {
		return c.fail(string(protocol.PAUSETUBE), err)
	}

	_, err = c.do(ctx, cmd)
	return err
}
