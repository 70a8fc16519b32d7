package clientconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sentinel/internal/constants"
	"sentinel/internal/logger"
	"sentinel/pkg/errors"
)

// Provider exposes typed config views backed by Mongo with a Redis
// cache in front. Watermarks bypass the cache since they change every
// poll cycle.
type Provider struct {
	repo   Repository
	cache  *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewProvider(repo Repository, cache *redis.Client, ttlSeconds int, log logger.Logger) *Provider {
	ttl := time.Duration(ttlSeconds) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Provider{
		repo:   repo,
		cache:  cache,
		ttl:    ttl,
		logger: log,
	}
}

func (p *Provider) MetaAPI(ctx context.Context, clientID string) (*MetaAPI, error) {
	var out MetaAPI
	if err := p.load(ctx, clientID, TypeMetaAPI, &out); err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.ErrMissingConfig.
				WithDetail("client_id", clientID).
				WithDetail("config_type", TypeMetaAPI)
		}
		return nil, err
	}
	return &out, nil
}

func (p *Provider) ResponseTemplates(ctx context.Context, clientID string) (*ResponseTemplates, error) {
	var out ResponseTemplates
	if err := p.load(ctx, clientID, TypeResponseTemplates, &out); err != nil {
		if !errors.IsNotFound(err) {
			return nil, err
		}
	}
	applyTemplateDefaults(&out)
	return &out, nil
}

func (p *Provider) ClassificationRules(ctx context.Context, clientID string) (*ClassificationRules, error) {
	var out ClassificationRules
	if err := p.load(ctx, clientID, TypeClassificationRules, &out); err != nil {
		if !errors.IsNotFound(err) {
			return nil, err
		}
	}
	applyClassificationDefaults(&out)
	return &out, nil
}

func (p *Provider) ModerationRules(ctx context.Context, clientID string) (*ModerationRules, error) {
	var out ModerationRules
	if err := p.load(ctx, clientID, TypeModerationRules, &out); err != nil {
		if !errors.IsNotFound(err) {
			return nil, err
		}
	}
	applyModerationDefaults(&out)
	return &out, nil
}

func (p *Provider) Notifications(ctx context.Context, clientID string) (*Notifications, error) {
	var out Notifications
	if err := p.load(ctx, clientID, TypeNotifications, &out); err != nil {
		if errors.IsNotFound(err) {
			return &Notifications{}, nil
		}
		return nil, err
	}
	return &out, nil
}

// Watermark returns the client's last successful poll time, zero when
// the client has never been polled.
func (p *Provider) Watermark(ctx context.Context, clientID string) (time.Time, error) {
	cfg, err := p.repo.Get(ctx, clientID, TypeIngestionState)
	if err != nil {
		if errors.IsNotFound(err) {
			return time.Time{}, nil
		}
		return time.Time{}, err
	}

	var state IngestionState
	if err := decodeData(cfg.Data, &state); err != nil {
		return time.Time{}, fmt.Errorf("failed to decode ingestion state: %w", err)
	}

	return state.LastPolledAt, nil
}

func (p *Provider) SetWatermark(ctx context.Context, clientID string, t time.Time) error {
	data, err := encodeData(IngestionState{LastPolledAt: t.UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode ingestion state: %w", err)
	}

	return p.repo.Upsert(ctx, &ClientConfig{
		ClientID:   clientID,
		ConfigType: TypeIngestionState,
		Active:     true,
		Data:       data,
	})
}

func (p *Provider) ListActiveMetaClients(ctx context.Context) ([]string, error) {
	return p.repo.ListActiveClients(ctx, TypeMetaAPI)
}

// Invalidate drops the cached entry for one config document.
func (p *Provider) Invalidate(ctx context.Context, clientID, configType string) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Del(ctx, cacheKey(clientID, configType)).Err(); err != nil {
		p.logger.WarnwCtx(ctx, "Failed to invalidate config cache",
			"error", err,
			"client_id", clientID,
			"config_type", configType,
		)
	}
}

func (p *Provider) load(ctx context.Context, clientID, configType string, out interface{}) error {
	key := cacheKey(clientID, configType)

	if p.cache != nil {
		cached, err := p.cache.Get(ctx, key).Bytes()
		if err == nil {
			if jsonErr := json.Unmarshal(cached, out); jsonErr == nil {
				return nil
			}
		} else if err != redis.Nil {
			p.logger.WarnwCtx(ctx, "Config cache read failed, falling back to MongoDB",
				"error", err,
				"client_id", clientID,
				"config_type", configType,
			)
		}
	}

	cfg, err := p.repo.Get(ctx, clientID, configType)
	if err != nil {
		return err
	}

	if err := decodeData(cfg.Data, out); err != nil {
		return fmt.Errorf("failed to decode %s config: %w", configType, err)
	}

	if p.cache != nil {
		if body, err := json.Marshal(out); err == nil {
			if err := p.cache.Set(ctx, key, body, p.ttl).Err(); err != nil {
				p.logger.WarnwCtx(ctx, "Config cache write failed",
					"error", err,
					"client_id", clientID,
					"config_type", configType,
				)
			}
		}
	}

	return nil
}

func cacheKey(clientID, configType string) string {
	return constants.CacheKeyPrefixConfig + clientID + ":" + configType
}

func decodeData(data map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func encodeData(in interface{}) (map[string]interface{}, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	var data map[string]interface{}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, err
	}
	return data, nil
}
