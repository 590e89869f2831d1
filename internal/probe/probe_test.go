package probe

import "testing"

func TestSplitHostPort(t *testing.T) {
	tests := []struct {
		address string
		host    string
		port    uint16
		wantErr bool
	}{
		{"pi.local:22", "pi.local", 22, false},
		{"pi.local", "pi.local", 22, false},
		{"192.168.1.20:2222", "192.168.1.20", 2222, false},
		{"pi.local:ssh", "", 0, true},
		{"pi.local:70000", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			host, port, err := splitHostPort(tt.address)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("splitHostPort(%q) = (%q, %d), want error", tt.address, host, port)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if host != tt.host || port != tt.port {
				t.Errorf("splitHostPort(%q) = (%q, %d), want (%q, %d)",
					tt.address, host, port, tt.host, tt.port)
			}
		})
	}
}
