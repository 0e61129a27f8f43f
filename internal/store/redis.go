package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "linktally:"

// Creating a link is a check-and-set on the link hash so a taken id is
// reported instead of overwritten.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], 'short_id', ARGV[1], 'original_url', ARGV[2],
	'total_clicks', '0', 'unique_clicks', '0', 'created_at', ARGV[3], 'updated_at', ARGV[3])
local seq = redis.call('INCR', KEYS[3])
redis.call('ZADD', KEYS[2], seq, ARGV[1])
return 1
`)

// Returns -1 for a missing link, 1 for a first-seen visitor, 0 otherwise.
var visitScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return -1
end
redis.call('HINCRBY', KEYS[1], 'total_clicks', 1)
redis.call('HSET', KEYS[1], 'updated_at', ARGV[3])
if redis.call('SADD', KEYS[2], ARGV[1]) == 1 then
	redis.call('HINCRBY', KEYS[1], 'unique_clicks', 1)
	redis.call('RPUSH', KEYS[3], ARGV[2])
	return 1
end
return 0
`)

type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

// OpenRedis connects and pings so a bad address fails at startup.
func OpenRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedis(rdb), nil
}

func linkKey(id string) string       { return keyPrefix + "link:" + id }
func visitorSetKey(id string) string { return keyPrefix + "link:" + id + ":visitor_ids" }
func visitorLogKey(id string) string { return keyPrefix + "link:" + id + ":visitors" }

const (
	indexKey = keyPrefix + "links"
	seqKey   = keyPrefix + "links:seq"
)

func (s *Redis) Create(ctx context.Context, link ShortLink) error {
	ok, err := createScript.Run(ctx, s.rdb,
		[]string{linkKey(link.ShortID), indexKey, seqKey},
		link.ShortID, link.OriginalURL, link.CreatedAt.UTC().Format(time.RFC3339Nano)).Int64()
	if err != nil {
		return err
	}
	if ok == 0 {
		return ErrConflict
	}
	return nil
}

func (s *Redis) Get(ctx context.Context, shortID string) (ShortLink, error) {
	var (
		fields *redis.StringStringMapCmd
		log    *redis.StringSliceCmd
	)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		fields = pipe.HGetAll(ctx, linkKey(shortID))
		log = pipe.LRange(ctx, visitorLogKey(shortID), 0, -1)
		return nil
	})
	if err != nil {
		return ShortLink{}, err
	}
	if len(fields.Val()) == 0 {
		return ShortLink{}, ErrNotFound
	}
	return decodeLink(fields.Val(), log.Val())
}

func (s *Redis) List(ctx context.Context) ([]ShortLink, error) {
	ids, err := s.rdb.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	res := make([]ShortLink, 0, len(ids))
	for _, id := range ids {
		l, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, nil
}

func (s *Redis) RecordVisit(ctx context.Context, v Visit) (bool, error) {
	entry, err := json.Marshal(Visitor{VisitorID: v.VisitorID, City: v.City})
	if err != nil {
		return false, err
	}
	res, err := visitScript.Run(ctx, s.rdb,
		[]string{linkKey(v.ShortID), visitorSetKey(v.ShortID), visitorLogKey(v.ShortID)},
		v.VisitorID, string(entry), v.Ts.UTC().Format(time.RFC3339Nano)).Int64()
	if err != nil {
		return false, fmt.Errorf("record visit: %w", err)
	}
	switch res {
	case -1:
		return false, ErrNotFound
	case 1:
		return true, nil
	default:
		return false, nil
	}
}

func (s *Redis) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *Redis) Close() error {
	return s.rdb.Close()
}

func decodeLink(fields map[string]string, log []string) (ShortLink, error) {
	out := ShortLink{
		ShortID:        fields["short_id"],
		OriginalURL:    fields["original_url"],
		VisitorDetails: make([]Visitor, 0, len(log)),
	}
	var err error
	if out.TotalClicks, err = strconv.ParseInt(fields["total_clicks"], 10, 64); err != nil {
		return ShortLink{}, fmt.Errorf("decode total_clicks: %w", err)
	}
	if out.UniqueClicks, err = strconv.ParseInt(fields["unique_clicks"], 10, 64); err != nil {
		return ShortLink{}, fmt.Errorf("decode unique_clicks: %w", err)
	}
	if out.CreatedAt, err = time.Parse(time.RFC3339Nano, fields["created_at"]); err != nil {
		return ShortLink{}, fmt.Errorf("decode created_at: %w", err)
	}
	if out.UpdatedAt, err = time.Parse(time.RFC3339Nano, fields["updated_at"]); err != nil {
		return ShortLink{}, fmt.Errorf("decode updated_at: %w", err)
	}
	for _, raw := range log {
		var v Visitor
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return ShortLink{}, fmt.Errorf("decode visitor: %w", err)
		}
		out.VisitorDetails = append(out.VisitorDetails, v)
	}
	return out, nil
}

var _ Store = (*Redis)(nil)
