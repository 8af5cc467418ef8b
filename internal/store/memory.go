package store

import (
	"context"
	"sync"
	"time"

	"dply/internal/model"
)

// NewMemoryStore returns a Store backed by in-process maps. It implements
// the same contracts as the Postgres store and is used when no database is
// configured, and by the orchestrator tests.
func NewMemoryStore() *Store {
	m := &memory{
		environments: make(map[uint]model.Environment),
		bindings:     make(map[uint]model.EnvironmentUser),
		teams:        make(map[uint]model.Team),
		users:        make(map[uint]model.User),
	}
	return &Store{
		Environments:     (*memoryEnvironments)(m),
		EnvironmentUsers: (*memoryEnvironmentUsers)(m),
		Teams:            (*memoryTeams)(m),
		Users:            (*memoryUsers)(m),
	}
}

type memory struct {
	mu           sync.Mutex
	nextID       uint
	environments map[uint]model.Environment
	bindings     map[uint]model.EnvironmentUser
	teams        map[uint]model.Team
	users        map[uint]model.User
}

func (m *memory) id() uint {
	m.nextID++
	return m.nextID
}

type memoryEnvironments memory

func (m *memoryEnvironments) Create(ctx context.Context, env *model.Environment) error {
	mm := (*memory)(m)
	mm.mu.Lock()
	defer mm.mu.Unlock()
	// Uniqueness is enforced under the same lock as the insert, matching
	// the unique index the Postgres store relies on.
	for _, existing := range mm.environments {
		if existing.Name == env.Name {
			return ErrDuplicate
		}
	}
	env.ID = mm.id()
	env.CreatedAt = time.Now()
	env.UpdatedAt = env.CreatedAt
	mm.environments[env.ID] = *env
	return nil
}

func (m *memoryEnvironments) Save(ctx context.Context, env *model.Environment) error {
	mm := (*memory)(m)
	mm.mu.Lock()
	defer mm.mu.Unlock()
	env.UpdatedAt = time.Now()
	mm.environments[env.ID] = *env
	return nil
}

func (m *memoryEnvironments) FindByID(ctx context.Context, id uint) (*model.Environment, error) {
	mm := (*memory)(m)
	mm.mu.Lock()
	defer mm.mu.Unlock()
	env, ok := mm.environments[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &env, nil
}

func (m *memoryEnvironments) FindByName(ctx context.Context, name string) (*model.Environment, error) {
	mm := (*memory)(m)
	mm.mu.Lock()
	defer mm.mu.Unlock()
	for _, env := range mm.environments {
		if env.Name == name {
			e := env
			return &e, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memoryEnvironments) FindAll(ctx context.Context) ([]model.Environment, error) {
	mm := (*memory)(m)
	mm.mu.Lock()
	defer mm.mu.Unlock()
	envs := make([]model.Environment, 0, len(mm.environments))
	for _, env := range mm.environments {
		envs = append(envs, env)
	}
	return envs, nil
}

func (m *memoryEnvironments) Delete(ctx context.Context, id uint) error {
	mm := (*memory)(m)
	mm.mu.Lock()
	defer mm.mu.Unlock()
	delete(mm.environments, id)
	return nil
}

type memoryEnvironmentUsers memory

func (m *memoryEnvironmentUsers) Create(ctx context.Context, binding *model.EnvironmentUser) error {
	mm := (*memory)(m)
	mm.mu.Lock()
	defer mm.mu.Unlock()
	binding.ID = mm.id()
	binding.CreatedAt = time.Now()
	mm.bindings[binding.ID] = *binding
	return nil
}

func (m *memoryEnvironmentUsers) FindByUserID(ctx context.Context, userID uint) ([]model.EnvironmentUser, error) {
	mm := (*memory)(m)
	mm.mu.Lock()
	defer mm.mu.Unlock()
	var bindings []model.EnvironmentUser
	for _, b := range mm.bindings {
		if b.UserID == userID {
			bindings = append(bindings, b)
		}
	}
	return bindings, nil
}

type memoryTeams memory

func (m *memoryTeams) Create(ctx context.Context, team *model.Team) error {
	mm := (*memory)(m)
	mm.mu.Lock()
	defer mm.mu.Unlock()
	team.ID = mm.id()
	team.CreatedAt = time.Now()
	team.UpdatedAt = team.CreatedAt
	mm.teams[team.ID] = *team
	return nil
}

func (m *memoryTeams) Save(ctx context.Context, team *model.Team) error {
	mm := (*memory)(m)
	mm.mu.Lock()
	defer mm.mu.Unlock()
	team.UpdatedAt = time.Now()
	mm.teams[team.ID] = *team
	return nil
}

func (m *memoryTeams) FindByID(ctx context.Context, id uint) (*model.Team, error) {
	mm := (*memory)(m)
	mm.mu.Lock()
	defer mm.mu.Unlock()
	team, ok := mm.teams[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &team, nil
}

func (m *memoryTeams) FindByEnvironmentID(ctx context.Context, envID uint) ([]model.Team, error) {
	mm := (*memory)(m)
	mm.mu.Lock()
	defer mm.mu.Unlock()
	var teams []model.Team
	for _, t := range mm.teams {
		if t.EnvironmentID == envID {
			teams = append(teams, t)
		}
	}
	return teams, nil
}

type memoryUsers memory

func (m *memoryUsers) Create(ctx context.Context, user *model.User) error {
	mm := (*memory)(m)
	mm.mu.Lock()
	defer mm.mu.Unlock()
	for _, existing := range mm.users {
		if existing.Username == user.Username {
			return ErrDuplicate
		}
	}
	user.ID = mm.id()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	mm.users[user.ID] = *user
	return nil
}

func (m *memoryUsers) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	mm := (*memory)(m)
	mm.mu.Lock()
	defer mm.mu.Unlock()
	for _, u := range mm.users {
		if u.Username == username {
			user := u
			return &user, nil
		}
	}
	return nil, ErrNotFound
}
