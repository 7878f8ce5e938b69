package network

import (
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v7"

	"github.com/ssrl-px/interceptor/models/data"
)

// RedisClient stores per-frame results and per-run stats so the
// monitor and post-run tools can read back a run without replaying
// the stream. Results live in a hash per run.
type RedisClient struct {
	client *redis.Client
}

func NewRedisClient(address, password string, db int) *RedisClient {
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr:     address,
			Password: password,
			DB:       db,
		}),
	}
}

func (c *RedisClient) Ping() (string, error) {
	return c.client.Ping().Result()
}

func runKey(series int) string {
	return "run:" + strconv.Itoa(series)
}

// ResultSave writes one frame result into the run's hash.
func (c *RedisClient) ResultSave(result *data.Result) error {
	jsonData, err := result.ToJSON()
	if err != nil {
		return err
	}
	field := fmt.Sprintf("frame:%d", result.FrameIdx)
	_, err = c.client.HSet(runKey(result.Series), field, string(jsonData)).Result()
	return err
}

// ResultGet reads one frame result back.
func (c *RedisClient) ResultGet(series, frame int) (*data.Result, error) {
	field := fmt.Sprintf("frame:%d", frame)
	jsonData, err := c.client.HGet(runKey(series), field).Result()
	if err != nil {
		return nil, fmt.Errorf("ResultGet (%d, %d): %s", series, frame, err.Error())
	}
	return data.ResultFromJSON([]byte(jsonData))
}

// ResultCount returns the number of frame results stored for a run.
func (c *RedisClient) ResultCount(series int) (int64, error) {
	n, err := c.client.HLen(runKey(series)).Result()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// RunStatsSave stores a JSON stats snapshot for a run. The tracker
// produces the snapshot; this client does not interpret it.
func (c *RedisClient) RunStatsSave(series int, statsJSON string) error {
	_, err := c.client.Set("stats:"+strconv.Itoa(series), statsJSON, 0).Result()
	return err
}

// RunStatsGet reads a run's stats snapshot.
func (c *RedisClient) RunStatsGet(series int) (string, error) {
	return c.client.Get("stats:" + strconv.Itoa(series)).Result()
}

// RunDelete drops a run's results and stats.
func (c *RedisClient) RunDelete(series int) error {
	_, err := c.client.Del(runKey(series), "stats:"+strconv.Itoa(series)).Result()
	return err
}
