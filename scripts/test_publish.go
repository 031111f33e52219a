//go:build ignore
// +build ignore

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RescaleRequestEvent struct {
	RunID      uuid.UUID `json:"run_id"`
	Indicators []string  `json:"indicators"`
}

func main() {
	redisAddr := flag.String("redis", "localhost:6379", "Redis address for streams")
	indicators := flag.String("indicators", "CAR,BLIS", "comma separated indicator codes")
	waitFor := flag.Duration("wait", 60*time.Second, "how long to wait for results")
	flag.Parse()

	client := redis.NewClient(&redis.Options{
		Addr: *redisAddr,
	})
	defer client.Close()

	ctx := context.Background()

	// Проверка подключения
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	event := RescaleRequestEvent{
		RunID:      uuid.New(),
		Indicators: strings.Split(*indicators, ","),
	}

	data, err := json.Marshal(event)
	if err != nil {
		log.Fatalf("Failed to marshal event: %v", err)
	}

	result, err := client.XAdd(ctx, &redis.XAddArgs{
		Stream: "stream:rescale:request",
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		log.Fatalf("Failed to publish event: %v", err)
	}

	fmt.Printf("Event published\n")
	fmt.Printf("   Stream: stream:rescale:request\n")
	fmt.Printf("   Message ID: %s\n", result)
	fmt.Printf("   Run ID: %s\n", event.RunID)
	fmt.Printf("   Indicators: %s\n", strings.Join(event.Indicators, ", "))

	fmt.Printf("\nWaiting for results in stream:rescale:done...\n")

	pending := make(map[string]struct{}, len(event.Indicators))
	for _, ind := range event.Indicators {
		pending[ind] = struct{}{}
	}

	timeout := time.After(*waitFor)
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	lastID := "0"
	for {
		select {
		case <-timeout:
			fmt.Printf("Timeout, %d indicators without result\n", len(pending))
			return
		case <-ticker.C:
			results, err := client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{"stream:rescale:done", lastID},
				Count:   100,
				Block:   -1,
			}).Result()
			if err != nil && err != redis.Nil {
				continue
			}

			for _, stream := range results {
				for _, msg := range stream.Messages {
					lastID = msg.ID

					dataStr, ok := msg.Values["data"].(string)
					if !ok {
						continue
					}

					var response map[string]interface{}
					if err := json.Unmarshal([]byte(dataStr), &response); err != nil {
						continue
					}
					if response["run_id"] != event.RunID.String() {
						continue
					}

					ind, _ := response["indicator"].(string)
					delete(pending, ind)

					prettyJSON, _ := json.MarshalIndent(response, "", "  ")
					fmt.Printf("%s\n", prettyJSON)
				}
			}

			if len(pending) == 0 {
				fmt.Println("All indicators done")
				return
			}
		}
	}
}
