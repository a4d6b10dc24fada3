package transport

import (
	"errors"
	"testing"
)

func TestJoinMulticastRejectsBadGroup(t *testing.T) {
	tests := []struct {
		name  string
		group string
	}{
		{"unicast address", "192.168.1.10"},
		{"not an address", "not-an-ip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := JoinMulticast(MulticastConfig{Group: tt.group})
			if !errors.Is(err, ErrJoinFailed) {
				t.Errorf("JoinMulticast(%q) error = %v, want ErrJoinFailed", tt.group, err)
			}
		})
	}
}

func TestJoinMulticastRejectsUnknownInterface(t *testing.T) {
	_, err := JoinMulticast(MulticastConfig{Interface: "does-not-exist-0"})
	if !errors.Is(err, ErrJoinFailed) {
		t.Errorf("JoinMulticast() error = %v, want ErrJoinFailed", err)
	}
}
