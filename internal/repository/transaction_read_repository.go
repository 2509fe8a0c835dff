package repository

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/tradepost/transaction-service/internal/readmodel"
	"github.com/tradepost/transaction-service/shared/metrics"
	"github.com/tradepost/transaction-service/shared/models"
	sharedredis "github.com/tradepost/transaction-service/shared/redis"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const transactionViewKeyPrefix = "transaction:view:"

// transactionViewTTL bounds how long a view written after a concurrent
// invalidation can outlive the write that invalidated it.
const transactionViewTTL = 5 * time.Minute

type viewCache interface {
	Get(ctx context.Context, key string) (*models.TransactionView, bool)
	Set(ctx context.Context, key string, value *models.TransactionView)
	Delete(ctx context.Context, key string)
	DeletePrefix(ctx context.Context, prefix string)
}

// TransactionReadRepository serves enriched transaction views composed by the
// read model. Single views are cached in Redis when a client is configured.
type TransactionReadRepository struct {
	composer readmodel.Composer
	cache    viewCache
	metrics  *metrics.Metrics
}

// NewTransactionReadRepository accepts a nil redisClient, which disables caching.
func NewTransactionReadRepository(composer readmodel.Composer, redisClient *goredis.Client, m *metrics.Metrics) *TransactionReadRepository {
	r := &TransactionReadRepository{composer: composer, metrics: m}
	if redisClient != nil {
		r.cache = sharedredis.NewViewCache[models.TransactionView](redisClient, transactionViewTTL)
	}
	return r
}

// GetByID returns the enriched view of one transaction, trying Redis first.
func (r *TransactionReadRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.TransactionView, error) {
	key := transactionViewKeyPrefix + id.Hex()
	if r.cache != nil {
		if view, ok := r.cache.Get(ctx, key); ok {
			r.metrics.CacheHit()
			return view, nil
		}
		r.metrics.CacheMiss()
	}

	views, err := r.compose(ctx, bson.M{"_id": id})
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, models.ErrTransactionNotFound
	}
	view := &views[0]

	if r.cache != nil {
		r.cache.Set(ctx, key, view)
	}
	return view, nil
}

// List returns every enriched transaction in store order. Results are not cached.
func (r *TransactionReadRepository) List(ctx context.Context) ([]models.TransactionView, error) {
	return r.compose(ctx, nil)
}

// InvalidateTransactionView drops the cached view after a write.
func (r *TransactionReadRepository) InvalidateTransactionView(ctx context.Context, id primitive.ObjectID) {
	if r.cache != nil {
		r.cache.Delete(ctx, transactionViewKeyPrefix+id.Hex())
	}
}

// InvalidateAllViews drops every cached view; used when joined account, user
// or post data changes upstream.
func (r *TransactionReadRepository) InvalidateAllViews(ctx context.Context) {
	if r.cache != nil {
		r.cache.DeletePrefix(ctx, transactionViewKeyPrefix)
	}
}

func (r *TransactionReadRepository) compose(ctx context.Context, filter bson.M) ([]models.TransactionView, error) {
	docs, err := r.composer.Compose(ctx, readmodel.Transactions(filter))
	if err != nil {
		return nil, fmt.Errorf("failed to compose transactions: %w", err)
	}
	views := make([]models.TransactionView, len(docs))
	for i, doc := range docs {
		views[i] = models.TransactionView(doc)
	}
	return views, nil
}
