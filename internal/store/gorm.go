package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"dply/internal/model"
	"dply/pkg/logging"
)

// OpenPostgres connects to Postgres, runs the automatic migrations for the
// control-plane entities and returns a Store backed by gorm.
func OpenPostgres(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		// Surfaces unique-index violations as gorm.ErrDuplicatedKey so
		// translate can map them to the package sentinel.
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := db.AutoMigrate(
		&model.User{},
		&model.Environment{},
		&model.EnvironmentUser{},
		&model.Team{},
	); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logging.Info("store", "connected to postgres")
	return NewGormStore(db), nil
}

// NewGormStore wraps an existing gorm handle. Split from OpenPostgres so
// tests can supply their own connection.
func NewGormStore(db *gorm.DB) *Store {
	return &Store{
		Environments:     &gormEnvironments{db: db},
		EnvironmentUsers: &gormEnvironmentUsers{db: db},
		Teams:            &gormTeams{db: db},
		Users:            &gormUsers{db: db},
	}
}

type gormEnvironments struct {
	db *gorm.DB
}

func (r *gormEnvironments) Create(ctx context.Context, env *model.Environment) error {
	return translate(r.db.WithContext(ctx).Create(env).Error)
}

func (r *gormEnvironments) Save(ctx context.Context, env *model.Environment) error {
	return r.db.WithContext(ctx).Save(env).Error
}

func (r *gormEnvironments) FindByID(ctx context.Context, id uint) (*model.Environment, error) {
	var env model.Environment
	if err := r.db.WithContext(ctx).First(&env, id).Error; err != nil {
		return nil, translate(err)
	}
	return &env, nil
}

func (r *gormEnvironments) FindByName(ctx context.Context, name string) (*model.Environment, error) {
	var env model.Environment
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&env).Error; err != nil {
		return nil, translate(err)
	}
	return &env, nil
}

func (r *gormEnvironments) FindAll(ctx context.Context) ([]model.Environment, error) {
	var envs []model.Environment
	if err := r.db.WithContext(ctx).Order("id").Find(&envs).Error; err != nil {
		return nil, err
	}
	return envs, nil
}

func (r *gormEnvironments) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&model.Environment{}, id).Error
}

type gormEnvironmentUsers struct {
	db *gorm.DB
}

func (r *gormEnvironmentUsers) Create(ctx context.Context, binding *model.EnvironmentUser) error {
	return translate(r.db.WithContext(ctx).Create(binding).Error)
}

func (r *gormEnvironmentUsers) FindByUserID(ctx context.Context, userID uint) ([]model.EnvironmentUser, error) {
	var bindings []model.EnvironmentUser
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&bindings).Error; err != nil {
		return nil, err
	}
	return bindings, nil
}

type gormTeams struct {
	db *gorm.DB
}

func (r *gormTeams) Create(ctx context.Context, team *model.Team) error {
	return r.db.WithContext(ctx).Create(team).Error
}

func (r *gormTeams) Save(ctx context.Context, team *model.Team) error {
	return r.db.WithContext(ctx).Save(team).Error
}

func (r *gormTeams) FindByID(ctx context.Context, id uint) (*model.Team, error) {
	var team model.Team
	if err := r.db.WithContext(ctx).First(&team, id).Error; err != nil {
		return nil, translate(err)
	}
	return &team, nil
}

func (r *gormTeams) FindByEnvironmentID(ctx context.Context, envID uint) ([]model.Team, error) {
	var teams []model.Team
	if err := r.db.WithContext(ctx).Where("environment_id = ?", envID).Order("id").Find(&teams).Error; err != nil {
		return nil, err
	}
	return teams, nil
}

type gormUsers struct {
	db *gorm.DB
}

func (r *gormUsers) Create(ctx context.Context, user *model.User) error {
	return translate(r.db.WithContext(ctx).Create(user).Error)
}

func (r *gormUsers) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// translate maps gorm's sentinel errors onto the package sentinels so
// callers never depend on gorm.
func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}
