package client

import (
	"context"

	"github.com/mariuswilms/beanstalk/protocol"
)

// Peek gets a copy of the specified job from the server.
func (c *Conn) Peek(ctx context.Context, id uint64) (*Job, error) {
	return c.job(ctx, protocol.Peek(id))
}

// PeekReady gets a copy of the job at the front of the used tube's ready
// queue.
func (c *Conn) PeekReady(ctx context.Context) (*Job, error) {
	return c.job(ctx, protocol.PeekReady())
}

// PeekDelayed gets a copy of the delayed job in the used tube that is next
// to become ready.
func (c *Conn) PeekDelayed(ctx context.Context) (*Job, error) {
	return c.job(ctx, protocol.PeekDelayed())
}

// PeekBuried gets a copy of the job in the used tube's holding area that
// would be kicked next.
func (c *Conn) PeekBuried(ctx context.Context) (*Job, error) {
	return c.job(ctx, protocol.PeekBuried())
}

// Kick moves up to bound jobs of the used tube into the ready queue and
// returns how many were moved. Buried jobs are kicked if there are any,
// delayed jobs otherwise.
func (c *Conn) Kick(ctx context.Context, bound int) (int, error) {
	return c.count(ctx, protocol.Kick(bound))
}

// KickJob moves a single buried or delayed job into the ready queue.
func (c *Conn) KickJob(ctx context.Context, id uint64) error {
	_, err := c.do(ctx, protocol.KickJob(id))
	return err
}

func (c *Conn) stats(ctx context.Context, cmd *protocol.Command) (*protocol.Stats, error) {
	resp, err := c.do(ctx, cmd)
	if err != nil {
		return nil, err
	}

	return protocol.DecodeStats(resp.Body), nil
}

// StatsJob retrieves statistics about the given job.
func (c *Conn) StatsJob(ctx context.Context, id uint64) (*protocol.Stats, error) {
	return c.stats(ctx, protocol.StatsJob(id))
}

// StatsTube retrieves statistics about tube.
func (c *Conn) StatsTube(ctx context.Context, tube string) (*protocol.Stats, error) {
	cmd, err := protocol.StatsTube(tube)
	if err != nil {
		return nil, c.fail(string(protocol.STATSTUBE), err)
	}

	return c.stats(ctx, cmd)
}

// Stats retrieves global statistics from the server.
func (c *Conn) Stats(ctx context.Context) (*protocol.Stats, error) {
	return c.stats(ctx, protocol.StatsCmd())
}

// ListTubes returns the names of the tubes that currently exist on the
// server.
func (c *Conn) ListTubes(ctx context.Context) ([]string, error) {
	stats, err := c.stats(ctx, protocol.ListTubes())
	if err != nil {
		return nil, err
	}

	return stats.Values(), nil
}

// ListTubesWatched returns the names of the tubes c watches.
func (c *Conn) ListTubesWatched(ctx context.Context) ([]string, error) {
	stats, err := c.stats(ctx, protocol.ListTubesWatched())
	if err != nil {
		return nil, err
	}

	return stats.Values(), nil
}

// ListTubeUsed returns the name of the tube c puts into.
func (c *Conn) ListTubeUsed(ctx context.Context) (string, error) {
	resp, err := c.do(ctx, protocol.ListTubeUsed())
	if err != nil {
		return "", err
	}

	name, err := resp.String(0)
	if err != nil {
		return "", c.fail(string(protocol.LISTTUBEUSED), err)
	}

	return name, nil
}
