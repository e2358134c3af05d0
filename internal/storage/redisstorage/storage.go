package redisstorage

import (
	"context"
	"time"

	"github.com/denismitr/lemonrest/internal/data"
	"github.com/denismitr/lemonrest/internal/storage"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
)

const DefaultKey = "lemonrest:items"

type Options struct {
	Addr        string
	Password    string
	DB          int
	Key         string
	DialTimeout time.Duration
}

// RedisStorage keeps the whole collection as one json array value.
type RedisStorage struct {
	client *redis.Client
	key    string
}

// Open connects to redis and checks the connection with a ping.
func Open(ctx context.Context, opts Options) (*RedisStorage, error) {
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:        opts.Addr,
		Password:    opts.Password,
		DB:          opts.DB,
		DialTimeout: opts.DialTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(storage.ErrStorageFailed, "could not reach redis at %s: %s", opts.Addr, err.Error())
	}

	return New(client, opts.Key), nil
}

func New(client *redis.Client, key string) *RedisStorage {
	if key == "" {
		key = DefaultKey
	}

	return &RedisStorage{client: client, key: key}
}

func (s *RedisStorage) Key() string {
	return s.key
}

func (s *RedisStorage) Load(ctx context.Context) ([]*data.Record, error) {
	b, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return make([]*data.Record, 0), nil
	}

	if err != nil {
		return nil, errors.Wrapf(storage.ErrStorageFailed, "could not get %s: %s", s.key, err.Error())
	}

	records, err := storage.Decode(b)
	if err != nil {
		return nil, errors.Wrapf(err, "redis key %s", s.key)
	}

	return records, nil
}

func (s *RedisStorage) Save(ctx context.Context, records []*data.Record) error {
	b, err := storage.Encode(records, false)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, s.key, b, 0).Err(); err != nil {
		return errors.Wrapf(storage.ErrStorageFailed, "could not set %s: %s", s.key, err.Error())
	}

	return nil
}

func (s *RedisStorage) Close() error {
	if err := s.client.Close(); err != nil {
		return errors.Wrap(storage.ErrClosed, err.Error())
	}
	return nil
}
