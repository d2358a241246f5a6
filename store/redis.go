package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ladder-trader-go/infrastructure/logger"
)

// 键名约定。候选名单按交易日落盘，:latest 永远指向最近一次发布。
const (
	credentialsKey     = "dhan:credentials"
	candidatesKeyFmt   = "dhan:premarket:candidates:%s" // YYYYMMDD
	candidatesLatest   = "dhan:premarket:candidates:latest"
	credentialClientID = "client_id"
	credentialToken    = "access_token"
)

var istZone = time.FixedZone("IST", 5*3600+30*60)

// Candidate 盘前筛选写入的候选股。
type Candidate struct {
	Symbol     string  `json:"symbol"`
	LTP        float64 `json:"ltp"`
	PrevClose  float64 `json:"prev_close"`
	ChangePct  float64 `json:"change_pct"`
	TurnoverCr float64 `json:"turnover_cr"`
}

// Credentials 券商会话凭据。
type Credentials struct {
	ClientID    string
	AccessToken string
}

// RedisStore 凭据与盘前候选名单的共享存储。
type RedisStore struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisStore 连接 redis 并 ping 验证。
func NewRedisStore(addr, password string, db int, log *logger.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client, log: log}, nil
}

// LoadCredentials 从 hash 读取券商凭据。
func (s *RedisStore) LoadCredentials(ctx context.Context) (Credentials, error) {
	vals, err := s.client.HGetAll(ctx, credentialsKey).Result()
	if err != nil {
		return Credentials{}, fmt.Errorf("load credentials: %w", err)
	}
	c := Credentials{ClientID: vals[credentialClientID], AccessToken: vals[credentialToken]}
	if c.ClientID == "" || c.AccessToken == "" {
		return Credentials{}, fmt.Errorf("credentials missing in %s", credentialsKey)
	}
	return c, nil
}

// SaveCredentials 写入券商凭据。
func (s *RedisStore) SaveCredentials(ctx context.Context, c Credentials) error {
	err := s.client.HSet(ctx, credentialsKey,
		credentialClientID, c.ClientID,
		credentialToken, c.AccessToken,
	).Err()
	if err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

// SaveCandidates 按当日（IST）写入候选名单并刷新 :latest。
// 过期时间设到当日 IST 收盘日终，隔日自动清理。
func (s *RedisStore) SaveCandidates(ctx context.Context, candidates []Candidate) error {
	raw, err := json.Marshal(candidates)
	if err != nil {
		return fmt.Errorf("marshal candidates: %w", err)
	}

	now := time.Now().In(istZone)
	key := fmt.Sprintf(candidatesKeyFmt, now.Format("20060102"))
	eod := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, istZone)
	ttl := time.Until(eod)
	if ttl <= 0 {
		ttl = time.Minute
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, key, raw, ttl)
	pipe.Set(ctx, candidatesLatest, raw, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save candidates: %w", err)
	}
	s.log.Info("premarket candidates saved",
		zap.String("key", key), zap.Int("count", len(candidates)))
	return nil
}

// LoadCandidates 优先读当日键，缺失时回退 :latest。
func (s *RedisStore) LoadCandidates(ctx context.Context) ([]Candidate, error) {
	now := time.Now().In(istZone)
	key := fmt.Sprintf(candidatesKeyFmt, now.Format("20060102"))

	raw, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		raw, err = s.client.Get(ctx, candidatesLatest).Bytes()
	}
	if err == redis.Nil {
		return nil, fmt.Errorf("no premarket candidates published")
	}
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}

	var out []Candidate
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode candidates: %w", err)
	}
	return out, nil
}

// Close 关闭连接。
func (s *RedisStore) Close() error {
	return s.client.Close()
}
