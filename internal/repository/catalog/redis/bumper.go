package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/citycast/server/internal/repository/catalog"
)

func (r repo) getBumpersKey(flavor string) string {
	return "catalog:bumpers:" + flavor
}

func (r repo) SetBumpers(ctx context.Context, params *catalog.SetBumpersParams) error {
	data, err := json.Marshal(params.Bumpers)
	if err != nil {
		return fmt.Errorf("failed to marshal bumpers: %w", err)
	}

	bumpersKey := r.getBumpersKey(params.Flavor)
	pipe := r.rc.TxPipeline()
	pipe.Set(ctx, bumpersKey, data, 0)
	pipe.Expire(ctx, bumpersKey, r.expireDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set bumpers: %w", err)
	}

	return nil
}

func (r repo) GetBumpers(ctx context.Context, flavor string) ([]catalog.Bumper, error) {
	data, err := r.rc.Get(ctx, r.getBumpersKey(flavor)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get bumpers: %w", err)
	}

	var bumpers []catalog.Bumper
	if err := json.Unmarshal(data, &bumpers); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bumpers: %w", err)
	}

	return bumpers, nil
}
