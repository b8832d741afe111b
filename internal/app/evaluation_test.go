package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/config"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

func TestBuildGateway_NoProviders(t *testing.T) {
	t.Parallel()
	_, err := BuildGateway(context.Background(), config.Config{})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestBuildGateway_SecondaryOnly(t *testing.T) {
	t.Parallel()
	gw, err := BuildGateway(context.Background(), config.Config{
		OpenRouterAPIKey: "k", OpenRouterBaseURL: "http://127.0.0.1:1", AIRequestTimeout: time.Second,
		AIBreakerThreshold: 3, AIBreakerCooldown: time.Second,
	})
	require.NoError(t, err)
	assert.NotNil(t, gw)
}

func TestBuildOrchestrator(t *testing.T) {
	t.Parallel()
	gen := &gatedGen{release: make(chan struct{}), started: make(chan struct{}), reply: replyFor}
	o, err := BuildOrchestrator(config.Config{AppEnv: "test"}, newMemRepo(), gen)
	require.NoError(t, err)
	assert.NotNil(t, o)
}
