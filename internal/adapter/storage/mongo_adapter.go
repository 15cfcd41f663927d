package storage

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/granasat/partledger/internal/core/domain"
)

// MongoAdapter archives invariant audit reports.
type MongoAdapter struct {
	client   *mongo.Client
	dbName   string
	collName string
}

// NewMongoAdapter connects to MongoDB and verifies the connection.
func NewMongoAdapter(ctx context.Context, uri string, dbName string) (*MongoAdapter, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoAdapter{
		client:   client,
		dbName:   dbName,
		collName: "audit_reports",
	}, nil
}

// SaveReport stores one audit report.
func (m *MongoAdapter) SaveReport(ctx context.Context, report domain.AuditReport) error {
	collection := m.client.Database(m.dbName).Collection(m.collName)
	_, err := collection.InsertOne(ctx, report)
	if err != nil {
		return fmt.Errorf("failed to insert audit report: %w", err)
	}
	return nil
}

// Close closes the MongoDB connection.
func (m *MongoAdapter) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
