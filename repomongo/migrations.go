package repomongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type markerUp struct {
	Name string `bson:"name"`
}

type migration struct {
	run  func(ctx context.Context, db *mongo.Database) error
	name string
}

var migrations = []migration{
	{
		name: "index_name_migrations",
		run: func(ctx context.Context, db *mongo.Database) error {
			_, err := db.Collection(migrationsCollection).
				Indexes().
				CreateOne(ctx, mongo.IndexModel{
					Keys:    bson.M{"name": 1},
					Options: options.Index().SetUnique(true),
				})
			return err
		},
	},
	{
		name: "index_wallet_id_wallet_transactions",
		run: func(ctx context.Context, db *mongo.Database) error {
			_, err := db.Collection(transactionsCollection).
				Indexes().
				CreateOne(ctx, mongo.IndexModel{
					Keys: bson.D{{Key: "wallet_id", Value: 1}, {Key: "created_at", Value: 1}},
				})
			return err
		},
	},
}

// RunMigration runs every migration that has not run yet and marks it as done.
func (db DataBase) RunMigration(ctx context.Context) error {
	migrated := make([]string, 0, len(migrations))
	for _, m := range migrations {
		ok, err := db.checkExists(ctx, m.name)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		if err := m.run(ctx, &db.inner); err != nil {
			return fmt.Errorf("migration %s: %w", m.name, err)
		}
		migrated = append(migrated, m.name)
	}

	if len(migrated) == 0 {
		return nil
	}
	return db.saveMigrated(ctx, migrated)
}

func (db DataBase) checkExists(ctx context.Context, name string) (bool, error) {
	var m markerUp
	if err := db.inner.Collection(migrationsCollection).FindOne(ctx, bson.M{"name": name}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("failed to execute find query, %w", err)
	}
	return true, nil
}

func (db DataBase) saveMigrated(ctx context.Context, names []string) error {
	documents := make([]interface{}, 0, len(names))
	for _, name := range names {
		documents = append(documents, &markerUp{Name: name})
	}
	if _, err := db.inner.Collection(migrationsCollection).InsertMany(ctx, documents); err != nil {
		return fmt.Errorf("cannot save migrations marker up, %w", err)
	}
	return nil
}
