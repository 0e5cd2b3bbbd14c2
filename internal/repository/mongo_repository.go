package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// cartDocument is the stored shape; prices are kept as decimal strings.
type cartDocument struct {
	SessionID string         `bson:"session_id"`
	Lines     []lineDocument `bson:"lines"`
	UpdatedAt time.Time      `bson:"updated_at"`
}

type lineDocument struct {
	ProductID      string `bson:"product_id"`
	Name           string `bson:"name"`
	UnitPrice      string `bson:"unit_price"`
	Quantity       int    `bson:"quantity"`
	ImageRef       string `bson:"image_ref"`
	AvailableStock int    `bson:"available_stock"`
}

type MongoCartRepository struct {
	collection *mongo.Collection
}

func NewMongoCartRepository(db *mongo.Database) *MongoCartRepository {
	return &MongoCartRepository{
		collection: db.Collection("carts"),
	}
}

func (m *MongoCartRepository) Load(ctx context.Context, sessionID string) ([]domain.CartLine, error) {
	var doc cartDocument

	err := m.collection.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	lines := make([]domain.CartLine, len(doc.Lines))
	for i, l := range doc.Lines {
		price, err := decimal.NewFromString(l.UnitPrice)
		if err != nil {
			return nil, fmt.Errorf("invalid unit price for product %s: %w", l.ProductID, err)
		}
		lines[i] = domain.CartLine{
			ProductID:      l.ProductID,
			Name:           l.Name,
			UnitPrice:      price,
			Quantity:       l.Quantity,
			ImageRef:       l.ImageRef,
			AvailableStock: l.AvailableStock,
		}
	}
	return lines, nil
}

func (m *MongoCartRepository) Save(ctx context.Context, sessionID string, lines []domain.CartLine) error {
	doc := cartDocument{
		SessionID: sessionID,
		Lines:     make([]lineDocument, len(lines)),
		UpdatedAt: time.Now(),
	}
	for i, l := range lines {
		doc.Lines[i] = lineDocument{
			ProductID:      l.ProductID,
			Name:           l.Name,
			UnitPrice:      l.UnitPrice.String(),
			Quantity:       l.Quantity,
			ImageRef:       l.ImageRef,
			AvailableStock: l.AvailableStock,
		}
	}

	opts := options.Replace().SetUpsert(true)
	_, err := m.collection.ReplaceOne(ctx, bson.M{"session_id": sessionID}, doc, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}
	return nil
}

func (m *MongoCartRepository) Delete(ctx context.Context, sessionID string) error {
	_, err := m.collection.DeleteOne(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

func (m *MongoCartRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(CartRetention.Seconds())),
		},
	}

	_, err := m.collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
