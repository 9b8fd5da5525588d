package notify

import (
	"errors"
	"testing"

	"github.com/dealerlink/lead-recovery/internal/domain"
)

func TestNormalizeE164(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "bare ten digits", input: "5551234567", want: "+15551234567"},
		{name: "formatted", input: "(555) 123-4567", want: "+15551234567"},
		{name: "leading one", input: "15551234567", want: "+15551234567"},
		{name: "already e164", input: "+15551234567", want: "+15551234567"},
		{name: "international", input: "+447911123456", want: "+447911123456"},
		{name: "too short", input: "12345", wantErr: true},
		{name: "empty", input: "  ", wantErr: true},
		{name: "letters only", input: "call me", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := NormalizeE164(tt.input)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrValidation) {
					t.Fatalf("NormalizeE164(%q) error = %v, want ErrValidation", tt.input, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("NormalizeE164(%q) unexpected error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Fatalf("NormalizeE164(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
