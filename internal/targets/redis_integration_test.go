//go:build integration

package targets

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"rosterwatch/pkg/testutil/containers"
)

func TestRedisQueueIntegration(t *testing.T) {
	rc := containers.NewRedisContainer(t)

	suite.Run(t, &QueueSuite{newQueue: func(t *testing.T) Queue {
		if err := rc.FlushAll(t.Context()); err != nil {
			t.Fatalf("flush redis: %v", err)
		}
		q, err := NewRedisQueue(rc.Client, "")
		if err != nil {
			t.Fatalf("new redis queue: %v", err)
		}
		return q
	}})
}
