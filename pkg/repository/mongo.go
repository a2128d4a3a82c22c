package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/example/icecreamshop/pkg/config"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository struct {
	client   *mongo.Client
	database *mongo.Database
	config   *config.MongoDBConfig
}

func NewMongoRepository(ctx context.Context, cfg *config.MongoDBConfig) (*MongoRepository, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	repo := &MongoRepository{
		client:   client,
		database: client.Database(cfg.Database),
		config:   cfg,
	}

	// History is always read per entity, newest first
	_, err = repo.collection().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "entity_type", Value: 1},
			{Key: "entity_id", Value: 1},
			{Key: "created_at", Value: -1},
		},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create audit index: %w", err)
	}

	return repo, nil
}

func (m *MongoRepository) collection() *mongo.Collection {
	return m.database.Collection(m.config.Collection)
}

func (m *MongoRepository) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoRepository) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// AuditEntityOrder tags audit entries that describe an order.
const AuditEntityOrder = "order"

// AuditLog is one recorded change to a domain entity.
type AuditLog struct {
	ID         string    `bson:"_id,omitempty" json:"id"`
	Service    string    `bson:"service" json:"service"`
	Action     string    `bson:"action" json:"action"`
	EntityType string    `bson:"entity_type" json:"entity_type"`
	EntityID   string    `bson:"entity_id" json:"entity_id"`
	Data       bson.M    `bson:"data" json:"data"`
	CreatedAt  time.Time `bson:"created_at" json:"created_at"`
}

func (m *MongoRepository) CreateAuditLog(ctx context.Context, log *AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	_, err := m.collection().InsertOne(ctx, log)
	return err
}

func (m *MongoRepository) GetAuditLogs(ctx context.Context, entityType, entityID string, limit int64) ([]*AuditLog, error) {
	filter := bson.M{"entity_type": entityType, "entity_id": entityID}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)

	cursor, err := m.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	logs := make([]*AuditLog, 0)
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}

	return logs, nil
}
