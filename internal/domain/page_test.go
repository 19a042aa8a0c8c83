package domain

import (
	"errors"
	"testing"
)

func TestPage_Validate(t *testing.T) {
	tests := []struct {
		name    string
		page    Page
		wantErr bool
	}{
		{"default", DefaultPage(), false},
		{"max limit", Page{Skip: 10, Limit: MaxLimit}, false},
		{"zero limit", Page{Limit: 0}, true},
		{"limit too large", Page{Limit: MaxLimit + 1}, true},
		{"negative skip", Page{Skip: -1, Limit: 10}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.page.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("expected ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestPage_Window(t *testing.T) {
	p := Page{Skip: 2, Limit: 3}
	if s, e := p.Window(10); s != 2 || e != 5 {
		t.Errorf("Window(10) = %d,%d, want 2,5", s, e)
	}
	if s, e := p.Window(4); s != 2 || e != 4 {
		t.Errorf("Window(4) = %d,%d, want 2,4", s, e)
	}
	if s, e := p.Window(1); s != 1 || e != 1 {
		t.Errorf("Window(1) = %d,%d, want 1,1", s, e)
	}
}

func TestInvalid(t *testing.T) {
	err := Invalid("title is required")
	if !errors.Is(err, ErrValidation) {
		t.Fatal("expected errors.Is(err, ErrValidation)")
	}
	if err.Error() != "title is required" {
		t.Errorf("message = %q", err.Error())
	}

	var ve *ValidationError
	wrapped := errors.Join(errors.New("ctx"), Invalid("limit %d too large", 5000))
	if !errors.As(wrapped, &ve) || ve.Msg != "limit 5000 too large" {
		t.Errorf("errors.As failed, got %v", ve)
	}
}
