// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package queue

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TestPublish verifies events land on the list as JSON with id and timestamp
// filled in. Set TEST_REDIS_URL to run it.
func TestPublish(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse redis url: %v", err)
	}
	rdb := redis.NewClient(opts)
	defer rdb.Close()

	ctx := context.Background()
	queueName := "rfqdesk-test-" + uuid.NewString()
	defer rdb.Del(ctx, queueName)

	p := NewPublisher(rdb, queueName)
	if err := p.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := p.Publish(ctx, Event{Type: EventStageClassified, MessageID: "m1", Stage: "initial_rfq"}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	raw, err := rdb.RPop(ctx, queueName).Result()
	if err != nil {
		t.Fatalf("RPop: %v", err)
	}
	var got Event
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.ID == "" || got.At.IsZero() {
		t.Errorf("id/at not filled: %+v", got)
	}
	if got.Type != EventStageClassified || got.Stage != "initial_rfq" {
		t.Errorf("event = %+v", got)
	}
}
