package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"visa-portal/internal/common/logger"
	"visa-portal/internal/models"
	"visa-portal/internal/store"
)

var ErrMeetingNotFound = errors.New("meeting not found")

// MeetingResolver maps the meeting name used in import files to a meeting.
type MeetingResolver interface {
	ResolveByName(ctx context.Context, name string) (*models.Meeting, error)
}

type StoreMeetingResolver struct {
	meetings store.MeetingStore
}

func NewStoreMeetingResolver(meetings store.MeetingStore) *StoreMeetingResolver {
	return &StoreMeetingResolver{meetings: meetings}
}

func (r *StoreMeetingResolver) ResolveByName(ctx context.Context, name string) (*models.Meeting, error) {
	m, err := r.meetings.GetByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrMeetingNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// CachedMeetingResolver keeps name lookups in Redis for the length of an
// import. Misses are never cached, so a meeting created mid-import becomes
// visible on the next row.
type CachedMeetingResolver struct {
	redis  *redis.Client
	next   MeetingResolver
	ttl    time.Duration
	logger logger.Logger
}

func NewCachedMeetingResolver(client *redis.Client, next MeetingResolver, ttl time.Duration, log logger.Logger) *CachedMeetingResolver {
	return &CachedMeetingResolver{
		redis:  client,
		next:   next,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "meeting-resolver"}),
	}
}

func meetingCacheKey(name string) string {
	return "meeting:name:" + name
}

func (r *CachedMeetingResolver) ResolveByName(ctx context.Context, name string) (*models.Meeting, error) {
	key := meetingCacheKey(name)
	if val, err := r.redis.Get(ctx, key).Result(); err == nil {
		var m models.Meeting
		if err := json.Unmarshal([]byte(val), &m); err == nil {
			return &m, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		r.logger.Debug("meeting cache read failed", map[string]interface{}{
			"meetingName": name,
			"error":       err.Error(),
		})
	}

	m, err := r.next.ResolveByName(ctx, name)
	if err != nil {
		return nil, err
	}

	data, _ := json.Marshal(m)
	if err := r.redis.Set(ctx, key, data, r.ttl).Err(); err != nil {
		r.logger.Debug("meeting cache write failed", map[string]interface{}{
			"meetingName": name,
			"error":       err.Error(),
		})
	}
	return m, nil
}
