package client

import (
	"context"
	"time"

	"github.com/mariuswilms/beanstalk/protocol"
)

// Job is a job as returned by reserve and peek.
type Job struct {
	ID   uint64
	Body []byte
}

func (c *Conn) job(ctx context.Context, cmd *protocol.Command) (*Job, error) {
	resp, err := c.do(ctx, cmd)
	if err != nil {
		return nil, err
	}

	id, err := c.field(resp, cmd.Verb, 0)
	if err != nil {
		return nil, err
	}

	return &Job{ID: id, Body: resp.Body}, nil
}

// Reserve waits until a job is ready in one of the watched tubes and
// reserves it. It blocks for as long as it takes; cancel ctx to give up,
// which closes the connection.
//
// Typically, a client will reserve a job, perform some work, then delete
// the job with Delete.
func (c *Conn) Reserve(ctx context.Context) (*Job, error) {
	return c.job(ctx, protocol.Reserve())
}

// ReserveWithTimeout is Reserve, but the server gives up after timeout and
// the error wraps protocol.ErrTimedOut. A timeout of zero returns at once.
//
// If a job reserved by this connection is about to exceed its TTR the error
// wraps protocol.ErrDeadlineSoon instead.
func (c *Conn) ReserveWithTimeout(ctx context.Context, timeout time.Duration) (*Job, error) {
	return c.job(ctx, protocol.ReserveWithTimeout(timeout))
}

// Delete deletes the given job.
func (c *Conn) Delete(ctx context.Context, id uint64) error {
	_, err := c.do(ctx, protocol.Delete(id))
	return err
}

// Release tells the server to perform the following actions:
// set the priority of the given job to pri, remove it from the list of
// jobs reserved by c, wait delay seconds, then place the job in the
// ready queue, which makes it available for reservation by any client.
//
// The server may bury the job instead; that is still a success.
func (c *Conn) Release(ctx context.Context, id uint64, pri uint32, delay time.Duration) error {
	_, err := c.do(ctx, protocol.Release(id, pri, delay))
	return err
}

// Bury places the given job in a holding area in the job's tube and
// sets its priority to pri. The job will not be scheduled again until it
// has been kicked; see also the documentation of Kick.
func (c *Conn) Bury(ctx context.Context, id uint64, pri uint32) error {
	_, err := c.do(ctx, protocol.Bury(id, pri))
	return err
}

// Touch resets the reservation timer for the given job.
// It is an error if the job isn't currently reserved by c.
func (c *Conn) Touch(ctx context.Context, id uint64) error {
	_, err := c.do(ctx, protocol.Touch(id))
	return err
}

// Watch adds tube to the watch list and returns the number of tubes now
// watched.
func (c *Conn) Watch(ctx context.Context, tube string) (int, error) {
	cmd, err := protocol.Watch(tube)
	if err != nil {
		return 0, c.fail(string(protocol.WATCH), err)
	}

	return c.count(ctx, cmd)
}

// Ignore removes tube from the watch list and returns the number of tubes
// still watched. Ignoring the last watched tube fails with
// protocol.ErrNotIgnored.
func (c *Conn) Ignore(ctx context.Context, tube string) (int, error) {
	cmd, err := protocol.Ignore(tube)
	if err != nil {
		return 0, c.fail(string(protocol.IGNORE), err)
	}

	return c.count(ctx, cmd)
}

func (c *Conn) count(ctx context.Context, cmd *protocol.Command) (int, error) {
	resp, err := c.do(ctx, cmd)
	if err != nil {
		return 0, err
	}

	n, err := resp.Int(0)
	if err != nil {
		return 0, c.fail(string(cmd.Verb), err)
	}

	return n, nil
}
