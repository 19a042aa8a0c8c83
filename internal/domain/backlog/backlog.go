// Package backlog defines backlog items, their hierarchy and acceptance criteria.
package backlog

import (
	"encoding/json"
	"time"

	"github.com/scrumix/scrumix/internal/domain"
)

// Status is the workflow state of a backlog item.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusInReview   Status = "in_review"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

// ValidStatuses is the set of accepted backlog statuses.
var ValidStatuses = map[Status]bool{
	StatusTodo:       true,
	StatusInProgress: true,
	StatusInReview:   true,
	StatusDone:       true,
	StatusCancelled:  true,
}

// Priority orders backlog items.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

var priorityRank = map[Priority]int{
	PriorityCritical: 0,
	PriorityHigh:     1,
	PriorityMedium:   2,
	PriorityLow:      3,
}

// Rank returns the sort position of p; unknown priorities sort last.
func (p Priority) Rank() int {
	if r, ok := priorityRank[p]; ok {
		return r
	}
	return len(priorityRank)
}

// ItemType classifies a backlog item.
type ItemType string

const (
	TypeEpic  ItemType = "epic"
	TypeStory ItemType = "story"
	TypeBug   ItemType = "bug"
)

// ValidTypes is the set of accepted item types.
var ValidTypes = map[ItemType]bool{
	TypeEpic:  true,
	TypeStory: true,
	TypeBug:   true,
}

// Item is a unit of work in a project backlog. Items form a tree through
// ParentID; Level, Path and RootID are derived from the parent chain.
type Item struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	SprintID    *string    `json:"sprint_id"`
	ParentID    *string    `json:"parent_id"`
	RootID      string     `json:"root_id"`
	Level       int        `json:"level"`
	Path        string     `json:"path"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	ItemType    ItemType   `json:"item_type"`
	StoryPoints *int       `json:"story_points"`
	Label       string     `json:"label,omitempty"`
	AssigneeID  *string    `json:"assignee_id"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Points returns the item's story points, zero when unestimated.
func (i *Item) Points() int {
	if i.StoryPoints == nil {
		return 0
	}
	return *i.StoryPoints
}

// InSprint returns the item's sprint ID or "".
func (i *Item) InSprint() string {
	if i.SprintID == nil {
		return ""
	}
	return *i.SprintID
}

// Parent returns the item's parent ID or "".
func (i *Item) Parent() string {
	if i.ParentID == nil {
		return ""
	}
	return *i.ParentID
}

// StampCompletion sets or clears CompletedAt according to a status change from prev.
func (i *Item) StampCompletion(prev Status, now time.Time) {
	switch {
	case i.Status == StatusDone && prev != StatusDone:
		t := now.UTC()
		i.CompletedAt = &t
	case i.Status != StatusDone:
		i.CompletedAt = nil
	}
}

// CreateRequest holds the fields needed to create a backlog item.
type CreateRequest struct {
	ProjectID   string   `json:"project_id"`
	SprintID    *string  `json:"sprint_id,omitempty"`
	ParentID    *string  `json:"parent_id,omitempty"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      Status   `json:"status"`
	Priority    Priority `json:"priority"`
	ItemType    ItemType `json:"item_type"`
	StoryPoints *int     `json:"story_points,omitempty"`
	Label       string   `json:"label,omitempty"`
	AssigneeID  *string  `json:"assignee_id,omitempty"`
}

// Validate applies defaults and checks enum and range constraints.
func (r *CreateRequest) Validate() error {
	if r.Status == "" {
		r.Status = StatusTodo
	}
	if r.Priority == "" {
		r.Priority = PriorityMedium
	}
	if r.ItemType == "" {
		r.ItemType = TypeStory
	}
	if r.ProjectID == "" {
		return domain.Invalid("project_id is required")
	}
	if r.Title == "" {
		return domain.Invalid("title is required")
	}
	if len(r.Title) > 500 {
		return domain.Invalid("title exceeds 500 characters")
	}
	return validateEnums(r.Status, r.Priority, r.ItemType, r.StoryPoints)
}

// UpdateRequest holds optional fields for a partial backlog update.
// An empty string in ParentID, SprintID or AssigneeID clears the link;
// story_points: null clears the estimate.
type UpdateRequest struct {
	Title       *string      `json:"title,omitempty"`
	Description *string      `json:"description,omitempty"`
	Status      *Status      `json:"status,omitempty"`
	Priority    *Priority    `json:"priority,omitempty"`
	ItemType    *ItemType    `json:"item_type,omitempty"`
	StoryPoints PointsUpdate `json:"story_points"`
	Label       *string      `json:"label,omitempty"`
	SprintID    *string      `json:"sprint_id,omitempty"`
	ParentID    *string      `json:"parent_id,omitempty"`
	AssigneeID  *string      `json:"assignee_id,omitempty"`
}

// PointsUpdate distinguishes an absent story_points field from an explicit
// null, which clears the estimate.
type PointsUpdate struct {
	Set   bool
	Value *int
}

// SetPoints returns an update assigning n story points.
func SetPoints(n int) PointsUpdate { return PointsUpdate{Set: true, Value: &n} }

// ClearPoints returns an update removing the estimate.
func ClearPoints() PointsUpdate { return PointsUpdate{Set: true} }

func (p *PointsUpdate) UnmarshalJSON(data []byte) error {
	p.Set = true
	p.Value = nil
	if string(data) == "null" {
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return domain.Invalid("story_points must be an integer or null")
	}
	p.Value = &n
	return nil
}

func (p PointsUpdate) MarshalJSON() ([]byte, error) {
	if !p.Set || p.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*p.Value)
}

// Apply copies the set fields onto a copy of item and validates the result.
// Parent changes are not applied; the caller reparents through the tree.
func (r *UpdateRequest) Apply(item Item) (Item, error) {
	if r.Title != nil {
		if *r.Title == "" {
			return item, domain.Invalid("title cannot be empty")
		}
		item.Title = *r.Title
	}
	if r.Description != nil {
		item.Description = *r.Description
	}
	if r.Status != nil {
		item.Status = *r.Status
	}
	if r.Priority != nil {
		item.Priority = *r.Priority
	}
	if r.ItemType != nil {
		item.ItemType = *r.ItemType
	}
	if r.StoryPoints.Set {
		if r.StoryPoints.Value == nil {
			item.StoryPoints = nil
		} else {
			v := *r.StoryPoints.Value
			item.StoryPoints = &v
		}
	}
	if r.Label != nil {
		item.Label = *r.Label
	}
	if r.SprintID != nil {
		item.SprintID = optional(*r.SprintID)
	}
	if r.AssigneeID != nil {
		item.AssigneeID = optional(*r.AssigneeID)
	}
	return item, validateEnums(item.Status, item.Priority, item.ItemType, item.StoryPoints)
}

func validateEnums(s Status, p Priority, t ItemType, points *int) error {
	if !ValidStatuses[s] {
		return domain.Invalid("invalid status %q", s)
	}
	if _, ok := priorityRank[p]; !ok {
		return domain.Invalid("invalid priority %q", p)
	}
	if !ValidTypes[t] {
		return domain.Invalid("invalid item_type %q", t)
	}
	if points != nil && *points < 0 {
		return domain.Invalid("story_points must be >= 0")
	}
	return nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Filter narrows a backlog listing.
type Filter struct {
	ProjectID string
	Status    Status
	Priority  Priority
	ItemType  ItemType
	SprintID  string
	Search    string
	RootsOnly bool
	domain.Page
}

// Stats aggregates a project's backlog.
type Stats struct {
	ProjectID       string         `json:"project_id"`
	Total           int            `json:"total"`
	ByStatus        map[string]int `json:"by_status"`
	ByPriority      map[string]int `json:"by_priority"`
	ByType          map[string]int `json:"by_type"`
	TotalPoints     int            `json:"total_story_points"`
	CompletedPoints int            `json:"completed_story_points"`
	Unestimated     int            `json:"unestimated"`
}

// Criteria is an acceptance criterion of a backlog item.
type Criteria struct {
	ID        string    `json:"id"`
	BacklogID string    `json:"backlog_id"`
	Title     string    `json:"title"`
	IsMet     bool      `json:"is_met"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CriteriaRequest creates or updates an acceptance criterion.
type CriteriaRequest struct {
	Title *string `json:"title,omitempty"`
	IsMet *bool   `json:"is_met,omitempty"`
}
