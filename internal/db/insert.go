package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/radheshyamgupta01/TLF-sub000/internal/models"
)

// InsertOne inserts a document, generating a fresh ID on every attempt so that
// a duplicate-key collision on _id is retried with a new ID via Try.
func InsertOne(ctx context.Context, collection *mongo.Collection, doc models.IBase) (models.IBase, error) {
	operation := func() error {
		doc.GenID()
		_, insertErr := collection.InsertOne(ctx, doc)
		return insertErr
	}

	if err := Try(operation); err != nil {
		return nil, fmt.Errorf("failed to insert into %s after multiple retries: %w", collection.Name(), err)
	}
	return doc, nil
}
