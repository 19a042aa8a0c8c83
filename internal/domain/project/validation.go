package project

import (
	"regexp"
	"time"
	"unicode"

	"github.com/scrumix/scrumix/internal/domain"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ValidateCreateRequest validates the fields of a project creation request.
func ValidateCreateRequest(req *CreateRequest) error {
	if req.Status == "" {
		req.Status = StatusPlanning
	}
	if err := validateName(req.Name); err != nil {
		return err
	}
	if len(req.Description) > 2000 {
		return domain.Invalid("description exceeds 2000 characters")
	}
	if !ValidStatuses[req.Status] {
		return domain.Invalid("invalid status %q", req.Status)
	}
	if req.Color != "" && !colorPattern.MatchString(req.Color) {
		return domain.Invalid("color must be a hex value like #1a2b3c")
	}
	return validateDates(req.StartDate, req.EndDate)
}

// ValidateUpdateRequest validates the fields of a project update request.
func ValidateUpdateRequest(req UpdateRequest) error {
	if req.Name != nil {
		if err := validateName(*req.Name); err != nil {
			return err
		}
	}
	if req.Description != nil && len(*req.Description) > 2000 {
		return domain.Invalid("description exceeds 2000 characters")
	}
	if req.Status != nil && !ValidStatuses[*req.Status] {
		return domain.Invalid("invalid status %q", *req.Status)
	}
	if req.Color != nil && *req.Color != "" && !colorPattern.MatchString(*req.Color) {
		return domain.Invalid("color must be a hex value like #1a2b3c")
	}
	return nil
}

// ValidateDates checks the date range of a persisted project.
func (p *Project) ValidateDates() error {
	return validateDates(p.StartDate, p.EndDate)
}

// ValidateMemberRole rejects unknown membership roles.
func ValidateMemberRole(role MemberRole) error {
	if !ValidMemberRoles[role] {
		return domain.Invalid("invalid member role %q", role)
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return domain.Invalid("name is required")
	}
	if len(name) > 255 {
		return domain.Invalid("name exceeds 255 characters")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return domain.Invalid("name contains control characters")
		}
	}
	return nil
}

func validateDates(start, end *time.Time) error {
	if start != nil && end != nil && end.Before(*start) {
		return domain.Invalid("end_date must not be before start_date")
	}
	return nil
}
