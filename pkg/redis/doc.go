// Package redis connects to the Redis server used for shared upload status.
//
// Config is populated from the environment (REDIS_URL and friends) by the
// config package. Connect retries until the server answers a PING:
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
// Healthcheck wraps a client into a func(context.Context) error probe.
package redis
