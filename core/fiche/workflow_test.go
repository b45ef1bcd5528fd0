package fiche

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusDraft, StatusPending, true},
		{StatusPending, StatusValidated, true},
		{StatusPending, StatusRejected, true},
		{StatusRejected, StatusPending, true},

		{StatusDraft, StatusValidated, false},
		{StatusDraft, StatusRejected, false},
		{StatusPending, StatusDraft, false},
		{StatusValidated, StatusPending, false},
		{StatusValidated, StatusDraft, false},
		{StatusValidated, StatusRejected, false},
		{StatusRejected, StatusValidated, false},
		{StatusRejected, StatusDraft, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+" -> "+string(tt.to), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestInvalidTransitionError(t *testing.T) {
	err := &InvalidTransitionError{From: StatusDraft, To: StatusValidated}
	want := "invalid fiche transition: draft -> validated"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
