package redis

import (
	"context"
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/citycast/server/internal/repository/catalog"
)

func (r repo) getItemKey(itemId string) string {
	return "catalog:item:" + itemId
}

func (r repo) getItemIdsKey() string {
	return "catalog:items"
}

func (r repo) getDeniedIdsKey() string {
	return "catalog:denied:ids"
}

func (r repo) getDeniedCategoriesKey() string {
	return "catalog:denied:categories"
}

func (r repo) SetItem(ctx context.Context, params *catalog.SetItemParams) error {
	pipe := r.rc.TxPipeline()

	itemKey := r.getItemKey(params.Item.Id)
	pipe.HSet(ctx, itemKey, params.Item)
	pipe.Expire(ctx, itemKey, r.expireDuration)
	pipe.SAdd(ctx, r.getItemIdsKey(), params.Item.Id)
	pipe.Expire(ctx, r.getItemIdsKey(), r.expireDuration)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set item: %w", err)
	}

	return nil
}

func (r repo) GetItem(ctx context.Context, itemId string) (catalog.Item, error) {
	itemKey := r.getItemKey(itemId)
	res, err := r.rc.Exists(ctx, itemKey).Result()
	if err != nil {
		return catalog.Item{}, fmt.Errorf("failed to check if item exists: %w", err)
	}
	if res == 0 {
		return catalog.Item{}, catalog.ErrItemNotFound
	}

	var item catalog.Item
	if err := r.rc.HGetAll(ctx, itemKey).Scan(&item); err != nil {
		return catalog.Item{}, fmt.Errorf("failed to get item: %w", err)
	}

	return item, nil
}

func (r repo) RemoveItem(ctx context.Context, itemId string) error {
	pipe := r.rc.TxPipeline()
	pipe.Del(ctx, r.getItemKey(itemId))
	pipe.SRem(ctx, r.getItemIdsKey(), itemId)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove item: %w", err)
	}

	return nil
}

func (r repo) GetItemIds(ctx context.Context) ([]string, error) {
	ids, err := r.rc.SMembers(ctx, r.getItemIdsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get item ids: %w", err)
	}

	return ids, nil
}

func (r repo) SetDenyList(ctx context.Context, params *catalog.SetDenyListParams) error {
	pipe := r.rc.TxPipeline()

	pipe.Del(ctx, r.getDeniedIdsKey())
	if len(params.Ids) > 0 {
		pipe.SAdd(ctx, r.getDeniedIdsKey(), params.Ids)
	}
	pipe.Del(ctx, r.getDeniedCategoriesKey())
	if len(params.Categories) > 0 {
		pipe.SAdd(ctx, r.getDeniedCategoriesKey(), params.Categories)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to set deny list: %w", err)
	}

	return nil
}

// RandomCandidate picks a random eligible item. Editorial deny lists are
// applied unconditionally. The category and id exclusions are dropped in
// turn when honouring them would leave nothing to play; a same-category
// or even same-item repeat beats silence.
func (r repo) RandomCandidate(ctx context.Context, params *catalog.RandomCandidateParams) (*catalog.Item, error) {
	ids, err := r.rc.SMembers(ctx, r.getItemIdsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get item ids: %w", err)
	}
	deniedIds, err := r.rc.SMembers(ctx, r.getDeniedIdsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get denied ids: %w", err)
	}
	deniedCategories, err := r.rc.SMembers(ctx, r.getDeniedCategoriesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get denied categories: %w", err)
	}

	var eligible []catalog.Item
	var sameCategory []catalog.Item
	var lastResort []catalog.Item
	for _, id := range ids {
		if slices.Contains(deniedIds, id) {
			continue
		}

		item, err := r.GetItem(ctx, id)
		if err != nil {
			if err == catalog.ErrItemNotFound {
				continue
			}
			return nil, err
		}
		if slices.Contains(deniedCategories, item.Category) {
			continue
		}

		lastResort = append(lastResort, item)
		if id == params.ExcludeId {
			continue
		}
		sameCategory = append(sameCategory, item)
		if params.ExcludeCategory == "" || item.Category != params.ExcludeCategory {
			eligible = append(eligible, item)
		}
	}

	if len(eligible) == 0 {
		eligible = sameCategory
	}
	if len(eligible) == 0 {
		eligible = lastResort
	}
	if len(eligible) == 0 {
		return nil, nil
	}

	item := eligible[r.randInt(len(eligible))]
	return &item, nil
}
