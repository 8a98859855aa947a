// Package ratelimit caps how many album exports albumzip starts per hour.
//
// The hosting service throttles accounts that request too many zip exports in
// a short time. Besides the fixed pause between albums, a token bucket can
// limit the hourly volume:
//
//	limiter := ratelimit.ForAlbumsPerHour(cfg.RateLimit.AlbumsPerHour)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
//
// A non-positive hourly cap yields Unlimited, which never blocks.
package ratelimit
