// Package store opens the configured persistence backend and exposes its repositories.
package store

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"todoapp/internal/config"
	"todoapp/internal/db"
	"todoapp/internal/logging"
	"todoapp/internal/repository"
)

// Store bundles the repositories of one backend.
type Store struct {
	Users  repository.UserRepository
	Tasks  repository.TaskRepository
	Driver string

	closeFn func(context.Context) error
}

// Open connects to the backend named by cfg.StorageDriver. SQL backends are
// migrated on open.
func Open(ctx context.Context, cfg *config.Config, log *logrus.Logger) (*Store, error) {
	switch cfg.StorageDriver {
	case config.DriverMySQL:
		gdb, err := db.NewMySQL(cfg.MySQLDSN, logging.GormLogger(log))
		if err != nil {
			return nil, err
		}
		return openGorm(gdb, cfg, log)
	case config.DriverSQLite:
		gdb, err := db.NewSQLite(cfg.SQLitePath, logging.GormLogger(log))
		if err != nil {
			return nil, err
		}
		return openGorm(gdb, cfg, log)
	case config.DriverMongo:
		mdb, err := db.NewMongo(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return FromMongo(mdb), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func openGorm(gdb *gorm.DB, cfg *config.Config, log *logrus.Logger) (*Store, error) {
	if err := db.Migrate(gdb, cfg.ResetDB, log); err != nil {
		return nil, err
	}
	s := FromGorm(gdb)
	s.Driver = cfg.StorageDriver
	return s, nil
}

// FromGorm builds a Store over an open, migrated GORM connection.
func FromGorm(gdb *gorm.DB) *Store {
	return &Store{
		Users: repository.NewUserRepository(gdb),
		Tasks: repository.NewTaskRepository(gdb),
		closeFn: func(context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	}
}

// FromMongo builds a Store over a Mongo database.
func FromMongo(mdb *mongo.Database) *Store {
	return &Store{
		Users:   repository.NewMongoUserRepository(mdb.Collection(db.UsersCollection)),
		Tasks:   repository.NewMongoTaskRepository(mdb.Collection(db.TasksCollection)),
		Driver:  config.DriverMongo,
		closeFn: mdb.Client().Disconnect,
	}
}

// Close releases the backend connection.
func (s *Store) Close(ctx context.Context) error {
	if s.closeFn == nil {
		return nil
	}
	return s.closeFn(ctx)
}
