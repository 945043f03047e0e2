package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/citycast/server/internal/repository/catalog"
)

func (r repo) getShowKey(showId string) string {
	return "catalog:show:" + showId
}

func (r repo) SetShow(ctx context.Context, params *catalog.SetShowParams) error {
	data, err := json.Marshal(params.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal show steps: %w", err)
	}

	showKey := r.getShowKey(params.ShowId)
	pipe := r.rc.TxPipeline()
	pipe.Set(ctx, showKey, data, 0)
	pipe.Expire(ctx, showKey, r.expireDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set show: %w", err)
	}

	return nil
}

func (r repo) GetShowSteps(ctx context.Context, showId string) ([]catalog.ShowStep, error) {
	data, err := r.rc.Get(ctx, r.getShowKey(showId)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, catalog.ErrShowNotFound
		}
		return nil, fmt.Errorf("failed to get show: %w", err)
	}

	var steps []catalog.ShowStep
	if err := json.Unmarshal(data, &steps); err != nil {
		return nil, fmt.Errorf("failed to unmarshal show steps: %w", err)
	}

	return steps, nil
}
