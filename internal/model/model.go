// Package model defines the persisted entities of the control plane:
// environments, their user bindings, and teams.
package model

import "time"

// EnvironmentStatus is the lifecycle state of an environment.
// CREATING is persisted synchronously on create; PROVISIONING is entered
// when the background task starts; READY, FAILED and CANCELLED are terminal.
type EnvironmentStatus string

const (
	EnvironmentCreating     EnvironmentStatus = "CREATING"
	EnvironmentProvisioning EnvironmentStatus = "PROVISIONING"
	EnvironmentReady        EnvironmentStatus = "READY"
	EnvironmentFailed       EnvironmentStatus = "FAILED"
	EnvironmentCancelled    EnvironmentStatus = "CANCELLED"
	EnvironmentDeleting     EnvironmentStatus = "DELETING"
)

// Terminal reports whether the status is an end state of provisioning.
func (s EnvironmentStatus) Terminal() bool {
	switch s {
	case EnvironmentReady, EnvironmentFailed, EnvironmentCancelled:
		return true
	}
	return false
}

// EnvironmentRole is the role a user holds within an environment.
type EnvironmentRole string

const (
	RoleAdmin  EnvironmentRole = "ADMIN"
	RoleEditor EnvironmentRole = "EDITOR"
	RoleViewer EnvironmentRole = "VIEWER"
)

// TeamStatus mirrors the provisioning shape of environments for teams.
type TeamStatus string

const (
	TeamCreating TeamStatus = "CREATING"
	TeamReady    TeamStatus = "READY"
	TeamFailed   TeamStatus = "FAILED"
)

// User is an authenticated principal.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:128;not null" json:"username"`
	PasswordHash string    `gorm:"size:128" json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Environment is a provisioned, isolated Kubernetes-backed sandbox. Each
// environment maps to one ephemeral single-node cluster. KubeconfigRef is
// the serialized opaque handle to the encrypted kubeconfig blob and is set
// only once the environment has reached READY.
type Environment struct {
	ID            uint              `gorm:"primaryKey" json:"id"`
	Name          string            `gorm:"uniqueIndex;size:128;not null" json:"name"`
	Description   string            `gorm:"size:512" json:"description"`
	Status        EnvironmentStatus `gorm:"size:32;not null" json:"status"`
	KubeconfigRef string            `gorm:"size:256" json:"-"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// EnvironmentUser binds a user to an environment with a role. The
// (environment, user) pair is unique; the environment's creator becomes
// ADMIN implicitly on creation.
type EnvironmentUser struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	EnvironmentID uint            `gorm:"uniqueIndex:idx_env_user;not null" json:"environmentId"`
	UserID        uint            `gorm:"uniqueIndex:idx_env_user;not null" json:"userId"`
	Role          EnvironmentRole `gorm:"size:32;not null" json:"role"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// Team is a namespace-scoped subdivision of an environment. Name doubles as
// the Kubernetes namespace name inside the environment's cluster.
type Team struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Name          string     `gorm:"size:128;not null" json:"name"`
	EnvironmentID uint       `gorm:"index;not null" json:"environmentId"`
	Status        TeamStatus `gorm:"size:32;not null" json:"status"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}
