package storage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rl1809/pos-register/internal/core/domain"
)

const productKeyPrefix = "product:"

var decrementStockScript = redis.NewScript(`
local key = KEYS[1]
local quantity = tonumber(ARGV[1])

local current = redis.call('HGET', key, 'stock')
if not current then
	return 0
end

current = tonumber(current)
if current >= quantity then
	redis.call('HINCRBY', key, 'stock', -quantity)
	return 1
end

return 0
`)

var incrementStockScript = redis.NewScript(`
local key = KEYS[1]

if redis.call('EXISTS', key) == 0 then
	return -1
end

return redis.call('HINCRBY', key, 'stock', tonumber(ARGV[1]))
`)

// RedisAdapter keeps each product as a hash (name, price, stock) so several
// register hosts can share one stock pool. Stock changes run as Lua scripts
// and are atomic per product.
type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func productKey(productID string) string {
	return productKeyPrefix + productID
}

func (r *RedisAdapter) FindProduct(ctx context.Context, productID string) (*domain.Product, error) {
	fields, err := r.client.HGetAll(ctx, productKey(productID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}

	price, err := decimal.NewFromString(fields["price"])
	if err != nil {
		return nil, fmt.Errorf("parse price of %s: %w", productID, err)
	}
	stock, err := strconv.Atoi(fields["stock"])
	if err != nil {
		return nil, fmt.Errorf("parse stock of %s: %w", productID, err)
	}

	return &domain.Product{
		ID:        productID,
		Name:      fields["name"],
		UnitPrice: price,
		Stock:     stock,
	}, nil
}

func (r *RedisAdapter) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	result, err := decrementStockScript.Run(ctx, r.client, []string{productKey(productID)}, quantity).Int()
	if err != nil {
		return false, err
	}

	return result == 1, nil
}

func (r *RedisAdapter) IncrementStock(ctx context.Context, productID string, quantity int) error {
	result, err := incrementStockScript.Run(ctx, r.client, []string{productKey(productID)}, quantity).Int64()
	if err != nil {
		return err
	}
	if result < 0 {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	return nil
}

func (r *RedisAdapter) SaveProduct(ctx context.Context, p domain.Product) error {
	return r.client.HSet(ctx, productKey(p.ID),
		"name", p.Name,
		"price", p.UnitPrice.String(),
		"stock", p.Stock,
	).Err()
}

// SyncProducts copies name and price of every given product into Redis in
// one MULTI/EXEC block. Stock is only written for products Redis does not
// hold yet, so live counts survive a restart.
func (r *RedisAdapter) SyncProducts(ctx context.Context, products []domain.Product) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, p := range products {
			key := productKey(p.ID)
			pipe.HSetNX(ctx, key, "stock", p.Stock)
			pipe.HSet(ctx, key,
				"name", p.Name,
				"price", p.UnitPrice.String(),
			)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sync products: %w", err)
	}
	return nil
}
