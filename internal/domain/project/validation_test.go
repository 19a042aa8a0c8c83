package project

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/scrumix/scrumix/internal/domain"
)

func TestValidateCreateRequest(t *testing.T) {
	now := time.Now()
	earlier := now.Add(-time.Hour)

	tests := []struct {
		name    string
		req     CreateRequest
		wantErr bool
	}{
		{"valid minimal", CreateRequest{Name: "ScrumiX"}, false},
		{"valid full", CreateRequest{Name: "ScrumiX", Status: StatusActive, Color: "#12abEF", StartDate: &earlier, EndDate: &now}, false},
		{"empty name", CreateRequest{}, true},
		{"long name", CreateRequest{Name: strings.Repeat("x", 256)}, true},
		{"control chars", CreateRequest{Name: "bad\x00name"}, true},
		{"bad status", CreateRequest{Name: "p", Status: "archived"}, true},
		{"bad color", CreateRequest{Name: "p", Color: "red"}, true},
		{"end before start", CreateRequest{Name: "p", StartDate: &now, EndDate: &earlier}, true},
		{"long description", CreateRequest{Name: "p", Description: strings.Repeat("d", 2001)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			err := ValidateCreateRequest(&req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateCreateRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestValidateCreateRequest_DefaultsStatus(t *testing.T) {
	req := CreateRequest{Name: "p"}
	if err := ValidateCreateRequest(&req); err != nil {
		t.Fatal(err)
	}
	if req.Status != StatusPlanning {
		t.Fatalf("status = %q, want planning", req.Status)
	}
}

func TestValidateUpdateRequest(t *testing.T) {
	empty := ""
	bad := Status("nope")
	if err := ValidateUpdateRequest(UpdateRequest{Name: &empty}); err == nil {
		t.Fatal("expected error for empty name")
	}
	if err := ValidateUpdateRequest(UpdateRequest{Status: &bad}); err == nil {
		t.Fatal("expected error for bad status")
	}
	name := "renamed"
	if err := ValidateUpdateRequest(UpdateRequest{Name: &name}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMember_HasRole(t *testing.T) {
	m := Member{Role: RoleDeveloper}
	if !m.HasRole() {
		t.Fatal("empty role list should match any member")
	}
	if m.HasRole(ManagerRoles...) {
		t.Fatal("developer should not be a manager")
	}
	m.Role = RoleScrumMaster
	if !m.HasRole(ManagerRoles...) {
		t.Fatal("scrum master should be a manager")
	}
}
