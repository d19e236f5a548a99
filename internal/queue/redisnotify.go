/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package queue

import (
	"context"

	"github.com/go-redis/redis/v8"
)

const wakeupChannel = "docfleet:queue:wakeup"

// RedisNotifier publishes and subscribes to a wakeup pub/sub channel so
// multiple docfleetd processes sharing one Postgres store can notify each
// other when a new job is enqueued, instead of each process waiting out its
// own poll interval. Purely an optimization: the poll loop still runs, so a
// dropped pub/sub message only costs latency, not correctness.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier connects to addr.
func NewRedisNotifier(addr string) *RedisNotifier {
	return &RedisNotifier{client: redis.NewClient(&redis.Options{Addr: addr})}
}

func (n *RedisNotifier) Notify(ctx context.Context) error {
	return n.client.Publish(ctx, wakeupChannel, "wake").Err()
}

func (n *RedisNotifier) Subscribe(ctx context.Context) (<-chan struct{}, func()) {
	sub := n.client.Subscribe(ctx, wakeupChannel)
	out := make(chan struct{}, 1)

	go func() {
		ch := sub.Channel()
		for range ch {
			select {
			case out <- struct{}{}:
			default:
			}
		}
		close(out)
	}()

	return out, func() { sub.Close() }
}

// Close releases the underlying Redis client.
func (n *RedisNotifier) Close() error {
	return n.client.Close()
}
