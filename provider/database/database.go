// Package database provides the MySQL-backed preference provider. Each
// preference is one row in the preferences table with its value stored
// as compact JSON text.
package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"prefs-manager/core/prefs"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// record is the GORM model for one stored preference.
type record struct {
	Key       string    `gorm:"column:pref_key;primaryKey;size:255"`
	Value     string    `gorm:"column:value;type:text"`
	Priority  int       `gorm:"column:priority"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (record) TableName() string { return "preferences" }

// Provider stores preferences in a relational table. Writes upsert on
// the key column; the updated_at column carries the record timestamp.
type Provider struct {
	name     string
	priority prefs.Priority
	db       *gorm.DB
}

// New returns a provider over the given connection. The schema is not
// touched until Initialize.
func New(name string, priority prefs.Priority, db *gorm.DB) *Provider {
	if name == "" {
		name = "database"
	}
	return &Provider{name: name, priority: priority, db: db}
}

func (p *Provider) Name() string             { return p.name }
func (p *Provider) Priority() prefs.Priority { return p.priority }

// Initialize migrates the preferences table.
func (p *Provider) Initialize(ctx context.Context) error {
	if err := p.db.WithContext(ctx).AutoMigrate(&record{}); err != nil {
		return fmt.Errorf("migrate preferences table: %w", err)
	}
	return nil
}

func (p *Provider) Get(ctx context.Context, key string) (prefs.Metadata, bool, error) {
	var row record
	err := p.db.WithContext(ctx).Where("pref_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return prefs.Metadata{}, false, nil
	}
	if err != nil {
		return prefs.Metadata{}, false, fmt.Errorf("query %s: %w", key, err)
	}

	md, err := p.toMetadata(row)
	if err != nil {
		return prefs.Metadata{}, false, err
	}
	return md, true, nil
}

func (p *Provider) GetAll(ctx context.Context) (map[string]prefs.Metadata, error) {
	var rows []record
	if err := p.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query preferences: %w", err)
	}

	out := make(map[string]prefs.Metadata, len(rows))
	for _, row := range rows {
		md, err := p.toMetadata(row)
		if err != nil {
			return nil, err
		}
		out[row.Key] = md
	}
	return out, nil
}

func (p *Provider) Set(ctx context.Context, key string, value prefs.Value) error {
	data, err := value.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}

	row := record{
		Key:       key,
		Value:     string(data),
		Priority:  int(p.priority),
		UpdatedAt: time.Now(),
	}
	err = p.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pref_key"}},
		UpdateAll: true,
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}

func (p *Provider) Has(ctx context.Context, key string) (bool, error) {
	var count int64
	err := p.db.WithContext(ctx).Model(&record{}).Where("pref_key = ?", key).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("count %s: %w", key, err)
	}
	return count > 0, nil
}

func (p *Provider) Delete(ctx context.Context, key string) (bool, error) {
	res := p.db.WithContext(ctx).Where("pref_key = ?", key).Delete(&record{})
	if res.Error != nil {
		return false, fmt.Errorf("delete %s: %w", key, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (p *Provider) Clear(ctx context.Context) error {
	err := p.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&record{}).Error
	if err != nil {
		return fmt.Errorf("clear preferences: %w", err)
	}
	return nil
}

func (p *Provider) toMetadata(row record) (prefs.Metadata, error) {
	value, err := prefs.ParseValue([]byte(row.Value))
	if err != nil {
		return prefs.Metadata{}, fmt.Errorf("parse %s: %w", row.Key, err)
	}
	return prefs.Metadata{
		Key:       row.Key,
		Value:     value,
		Priority:  p.priority,
		Source:    p.name,
		Timestamp: row.UpdatedAt,
	}, nil
}
