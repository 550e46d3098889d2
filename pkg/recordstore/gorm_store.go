package recordstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// RecordModel is the GORM row backing one document. The full path is the
// primary key; the collection column exists so collection scans stay cheap.
type RecordModel struct {
	Path       string         `gorm:"primaryKey;size:512"`
	Collection string         `gorm:"index;size:128;not null"`
	Doc        datatypes.JSON `gorm:"not null"`
	UpdatedAt  time.Time      `gorm:"not null"`
}

func (RecordModel) TableName() string { return "records" }

// GormStore implements Store on Postgres via GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migration for the records table.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&RecordModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate records: %w", err)
	}
	return &GormStore{db: db}, nil
}

func (s *GormStore) Get(ctx context.Context, path string) (Document, bool, error) {
	if _, _, err := SplitPath(path); err != nil {
		return nil, false, err
	}
	var model RecordModel
	if err := s.db.WithContext(ctx).First(&model, "path = ?", path).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return Document(model.Doc), true, nil
}

func (s *GormStore) Set(ctx context.Context, path string, doc Document) error {
	collection, _, err := SplitPath(path)
	if err != nil {
		return err
	}
	model := RecordModel{
		Path:       path,
		Collection: collection,
		Doc:        datatypes.JSON(doc),
		UpdatedAt:  time.Now().UTC(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"collection", "doc", "updated_at"}),
	}).Create(&model).Error
}

func (s *GormStore) Delete(ctx context.Context, path string) error {
	if _, _, err := SplitPath(path); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(&RecordModel{}, "path = ?", path).Error
}

func (s *GormStore) List(ctx context.Context, prefix string) (map[string]Document, error) {
	collection, _, err := SplitPath(prefix)
	if err != nil {
		return nil, err
	}
	prefix = strings.Trim(prefix, "/")
	var models []RecordModel
	query := s.db.WithContext(ctx).Where("collection = ?", collection)
	if prefix != collection {
		query = query.Where("path LIKE ?", prefix+"/%")
	}
	if err := query.Order("path").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make(map[string]Document, len(models))
	for _, model := range models {
		key := strings.TrimPrefix(model.Path, prefix+"/")
		out[key] = Document(model.Doc)
	}
	return out, nil
}
