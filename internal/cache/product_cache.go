package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Skrewild/shop/internal/models"
	"github.com/Skrewild/shop/internal/repository"
)

const (
	catalogKey  = "products:available"
	notFoundVal = "notfound"
)

// CachedProductRepository is a read-through cache over the catalog.
// Cache failures always fall back to the database; a miss on a missing
// product is negatively cached for a short window.
type CachedProductRepository struct {
	realRepo repository.ProductRepository
	redis    *redis.Client
	ttl      time.Duration
}

func NewCachedProductRepository(realRepo repository.ProductRepository, redis *redis.Client) *CachedProductRepository {
	return &CachedProductRepository{
		realRepo: realRepo,
		redis:    redis,
		ttl:      5 * time.Minute,
	}
}

func (c *CachedProductRepository) GetByID(ctx context.Context, id int) (*models.Product, error) {
	key := fmt.Sprintf("product:%d", id)

	data, err := c.redis.Get(ctx, key).Bytes()

	switch {
	case err == nil:
		if string(data) == notFoundVal {
			return nil, repository.ErrNotFound
		}

		var product models.Product
		if err := json.Unmarshal(data, &product); err != nil {
			log.Printf("Failed to unmarshal cached product (continuing with DB): %v", err)
			break
		}

		return &product, nil

	case errors.Is(err, redis.Nil):

	default:
		log.Printf("Redis error (continuing with DB): %v", err)
	}

	product, err := c.realRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			if setErr := c.redis.Set(ctx, key, notFoundVal, 1*time.Minute).Err(); setErr != nil {
				log.Printf("Failed to cache notfound: %v", setErr)
			}
		}
		return nil, err
	}

	jsonData, err := json.Marshal(product)
	if err != nil {
		log.Printf("Failed to marshal product: %v", err)
		return product, nil
	}

	if err := c.redis.Set(ctx, key, jsonData, c.ttl).Err(); err != nil {
		log.Printf("Failed to cache product: %v", err)
	}

	return product, nil
}

func (c *CachedProductRepository) GetAvailable(ctx context.Context) ([]models.Product, error) {
	data, err := c.redis.Get(ctx, catalogKey).Bytes()

	switch {
	case err == nil:
		var products []models.Product
		if err := json.Unmarshal(data, &products); err != nil {
			log.Printf("Failed to unmarshal cached catalog (continuing with DB): %v", err)
			break
		}
		return products, nil

	case errors.Is(err, redis.Nil):

	default:
		log.Printf("Redis error (continuing with DB): %v", err)
	}

	products, err := c.realRepo.GetAvailable(ctx)
	if err != nil {
		return nil, err
	}

	jsonData, err := json.Marshal(products)
	if err != nil {
		log.Printf("Failed to marshal catalog: %v", err)
		return products, nil
	}

	if err := c.redis.Set(ctx, catalogKey, jsonData, c.ttl).Err(); err != nil {
		log.Printf("Failed to cache catalog: %v", err)
	}

	return products, nil
}

func (c *CachedProductRepository) Create(ctx context.Context, product *models.Product) error {
	if err := c.realRepo.Create(ctx, product); err != nil {
		return err
	}
	c.invalidate(ctx, product.ID)
	return nil
}

func (c *CachedProductRepository) Update(ctx context.Context, product *models.Product) error {
	if err := c.realRepo.Update(ctx, product); err != nil {
		return err
	}
	c.invalidate(ctx, product.ID)
	return nil
}

func (c *CachedProductRepository) SoftDelete(ctx context.Context, id int) error {
	if err := c.realRepo.SoftDelete(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, id)
	return nil
}

func (c *CachedProductRepository) invalidate(ctx context.Context, productID int) {
	productKey := fmt.Sprintf("product:%d", productID)

	if err := c.redis.Del(ctx, productKey).Err(); err != nil {
		log.Printf("Failed to delete product cache %s: %v", productKey, err)
	}

	if err := c.redis.Del(ctx, catalogKey).Err(); err != nil {
		log.Printf("Failed to delete catalog cache: %v", err)
	}
}
