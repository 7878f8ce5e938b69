package common

import (
	"github.com/op/go-logging"

	"github.com/ssrl-px/interceptor/network"
	"github.com/ssrl-px/interceptor/util/logger"
)

// Context carries the shared pieces every process needs: config,
// logger, and clients for the result store and the record archive.
// Clients for services the config leaves blank are nil; callers
// check before use.
type Context struct {
	Config        *Config
	Logger        *logging.Logger
	RedisClient   *network.RedisClient
	ArchiveClient *network.MinioClient
}

// NewContext builds a Context from the environment-selected config.
// It panics if config or the archive client cannot be set up; a
// beamline process that cannot read its config has nothing to fall
// back on.
func NewContext() *Context {
	config := NewConfig()
	return NewContextFromConfig(config)
}

// NewContextFromConfig is NewContext with an injected config, for
// tests and for processes that assemble config from flags.
func NewContextFromConfig(config *Config) *Context {
	_logger := getLogger(config)
	return &Context{
		Config:        config,
		Logger:        _logger,
		RedisClient:   getRedisClient(config),
		ArchiveClient: getArchiveClient(config),
	}
}

func getLogger(config *Config) *logging.Logger {
	_logger, _ := logger.InitLogger(config.LogDir, config.LogLevel)
	return _logger
}

func getRedisClient(config *Config) *network.RedisClient {
	if config.RedisURL == "" {
		return nil
	}
	return network.NewRedisClient(
		config.RedisURL,
		config.RedisPassword,
		config.RedisDefaultDB)
}

func getArchiveClient(config *Config) *network.MinioClient {
	if config.ArchiveEndpoint == "" {
		return nil
	}
	client, err := network.NewMinioClient(
		config.ArchiveEndpoint,
		config.ArchiveKey,
		config.ArchiveSecret,
		config.ArchiveBucket,
		config.ArchiveUseSSL)
	if err != nil {
		panic(err)
	}
	return client
}
