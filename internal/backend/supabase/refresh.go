package supabase

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AutoRefresh refreshes the session whenever it is within the refresh margin of expiry,
// checking every interval until ctx is done. A rejected refresh token signs the user out;
// transport failures are retried on the next tick.
func (c *Client) AutoRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			c.refreshIfDue(ctx)
		}
	}
}

// refreshIfDue performs one auto-refresh check.
func (c *Client) refreshIfDue(ctx context.Context) {
	s, err := c.current(ctx)
	if err != nil {
		c.logger.Warn("auto-refresh: load session", zap.Error(err))
		return
	}
	if s == nil || s.RefreshToken == "" || !s.Expired(c.now(), c.margin) {
		return
	}
	if _, err := c.refresh(ctx, s.RefreshToken); err != nil {
		if isRejected(err) {
			c.logger.Warn("auto-refresh rejected, signing out", zap.Error(err))
			if err := c.expire(ctx, "refresh rejected"); err != nil {
				c.logger.Error("clear session", zap.Error(err))
			}
			return
		}
		c.logger.Warn("auto-refresh failed, will retry", zap.Error(err))
	}
}
