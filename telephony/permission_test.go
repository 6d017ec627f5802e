package telephony_test

import (
	"context"
	"testing"

	"i4.energy/across/smsbridge/telephony"
)

func TestStaticPermissions(t *testing.T) {
	ctx := context.Background()

	granted := telephony.NewStaticPermissions(telephony.PermissionSendSMS)
	if got := granted.CheckSelfPermission(ctx, telephony.PermissionSendSMS); got != telephony.PermissionGranted {
		t.Errorf("expected granted, got %d", got)
	}

	none := telephony.NewStaticPermissions()
	if got := none.CheckSelfPermission(ctx, telephony.PermissionSendSMS); got != telephony.PermissionDenied {
		t.Errorf("expected denied, got %d", got)
	}
}

func TestCallerPermissions(t *testing.T) {
	fallback := telephony.NewStaticPermissions(telephony.PermissionSendSMS)

	tests := []struct {
		name     string
		checker  telephony.CallerPermissions
		ctx      context.Context
		expected telephony.PermissionStatus
	}{
		{
			name:     "Caller grant",
			ctx:      telephony.WithGrantedPermissions(context.Background(), []telephony.Permission{telephony.PermissionSendSMS}),
			expected: telephony.PermissionGranted,
		},
		{
			name:     "Caller without grant ignores fallback",
			checker:  telephony.CallerPermissions{Fallback: fallback},
			ctx:      telephony.WithGrantedPermissions(context.Background(), nil),
			expected: telephony.PermissionDenied,
		},
		{
			name:     "Anonymous uses fallback",
			checker:  telephony.CallerPermissions{Fallback: fallback},
			ctx:      context.Background(),
			expected: telephony.PermissionGranted,
		},
		{
			name:     "Anonymous without fallback",
			ctx:      context.Background(),
			expected: telephony.PermissionDenied,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.checker.CheckSelfPermission(tt.ctx, telephony.PermissionSendSMS); got != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, got)
			}
		})
	}
}
