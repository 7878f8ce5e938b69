package common_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssrl-px/interceptor/models/common"
)

func TestNewContextFromConfig(t *testing.T) {
	config := &common.Config{
		Host: "bl121",
		Port: "8121",
	}
	ctx := common.NewContextFromConfig(config)
	require.NotNil(t, ctx)
	assert.Same(t, config, ctx.Config)
	assert.NotNil(t, ctx.Logger)

	// Blank service endpoints leave the clients nil.
	assert.Nil(t, ctx.RedisClient)
	assert.Nil(t, ctx.ArchiveClient)
}

func TestNewContextWithRedis(t *testing.T) {
	config := &common.Config{RedisURL: "localhost:6379"}
	ctx := common.NewContextFromConfig(config)
	assert.NotNil(t, ctx.RedisClient)
}
