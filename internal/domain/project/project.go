// Package project defines the Project domain entity and its scrum membership.
package project

import (
	"time"

	"github.com/scrumix/scrumix/internal/domain"
	"github.com/scrumix/scrumix/internal/domain/user"
)

// Status is the lifecycle state of a project.
type Status string

const (
	StatusPlanning  Status = "planning"
	StatusActive    Status = "active"
	StatusOnHold    Status = "on_hold"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// ValidStatuses is the set of accepted project statuses.
var ValidStatuses = map[Status]bool{
	StatusPlanning:  true,
	StatusActive:    true,
	StatusOnHold:    true,
	StatusCompleted: true,
	StatusCancelled: true,
}

// Project is a scrum project owning sprints, backlogs, tasks, meetings and documentation.
type Project struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Status         Status     `json:"status"`
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	Color          string     `json:"color,omitempty"`
	Version        int        `json:"version"`
	LastActivityAt time.Time  `json:"last_activity_at"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// CreateRequest holds the fields needed to create a new project.
type CreateRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Color       string     `json:"color,omitempty"`
}

// UpdateRequest holds optional fields for a partial project update.
type UpdateRequest struct {
	Name        *string    `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *Status    `json:"status,omitempty"`
	StartDate   *time.Time `json:"start_date,omitempty"`
	EndDate     *time.Time `json:"end_date,omitempty"`
	Color       *string    `json:"color,omitempty"`
}

// Apply copies the set fields of r onto p.
func (r *UpdateRequest) Apply(p *Project) {
	if r.Name != nil {
		p.Name = *r.Name
	}
	if r.Description != nil {
		p.Description = *r.Description
	}
	if r.Status != nil {
		p.Status = *r.Status
	}
	if r.StartDate != nil {
		p.StartDate = r.StartDate
	}
	if r.EndDate != nil {
		p.EndDate = r.EndDate
	}
	if r.Color != nil {
		p.Color = *r.Color
	}
}

// Filter narrows a project listing.
type Filter struct {
	// MemberID restricts results to projects the user belongs to. Empty lists all.
	MemberID string
	Search   string
	Status   Status
	domain.Page
}

// MemberRole is the scrum role of a user inside a project.
type MemberRole string

const (
	RoleOwner        MemberRole = "owner"
	RoleProductOwner MemberRole = "product_owner"
	RoleScrumMaster  MemberRole = "scrum_master"
	RoleDeveloper    MemberRole = "developer"
)

// ValidMemberRoles is the set of accepted membership roles.
var ValidMemberRoles = map[MemberRole]bool{
	RoleOwner:        true,
	RoleProductOwner: true,
	RoleScrumMaster:  true,
	RoleDeveloper:    true,
}

// ManagerRoles may change project settings and planning artifacts.
var ManagerRoles = []MemberRole{RoleOwner, RoleProductOwner, RoleScrumMaster}

// Member links a user to a project with a scrum role.
type Member struct {
	ProjectID string        `json:"project_id"`
	UserID    string        `json:"user_id"`
	Role      MemberRole    `json:"role"`
	JoinedAt  time.Time     `json:"joined_at"`
	User      *user.Summary `json:"user,omitempty"`
}

// HasRole reports whether the member holds one of roles. An empty list matches any member.
func (m *Member) HasRole(roles ...MemberRole) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if m.Role == r {
			return true
		}
	}
	return false
}

// AddMemberRequest adds a user to a project.
type AddMemberRequest struct {
	UserID string     `json:"user_id"`
	Role   MemberRole `json:"role"`
}

// UpdateMemberRequest changes a member's role.
type UpdateMemberRequest struct {
	Role MemberRole `json:"role"`
}

// Stats aggregates the state of a project's planning artifacts.
type Stats struct {
	ProjectID         string         `json:"project_id"`
	BacklogByStatus   map[string]int `json:"backlog_by_status"`
	TaskByStatus      map[string]int `json:"task_by_status"`
	SprintByStatus    map[string]int `json:"sprint_by_status"`
	TotalStoryPoints  int            `json:"total_story_points"`
	CompletedPoints   int            `json:"completed_story_points"`
	MemberCount       int            `json:"member_count"`
	CompletionPercent float64        `json:"completion_percent"`
}
