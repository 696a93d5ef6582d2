// Package redis connects to the redis server that backs the shared credential
// store (credstore.RedisBackend). It is used by kiosk and multi-device
// deployments where several client processes share one session.
//
//	client, err := redis.Connect(ctx, cfg.Redis)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	backend := credstore.NewRedisBackend(client)
//
// Errors wrap the go-redis cause with errors.Join so both the sentinel and the
// driver error can be matched with errors.Is.
package redis
