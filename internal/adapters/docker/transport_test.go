package docker

import (
	"testing"

	"github.com/melih/lighthouse-dockerhost/internal/core/domain"
)

func TestParseEngineAddress(t *testing.T) {
	tests := []struct {
		address   string
		wantProto string
		wantAddr  string
		wantBase  string
	}{
		{"http://10.0.0.5:2375", "tcp", "10.0.0.5:2375", "http://10.0.0.5:2375"},
		{"https://engine.example.com:2376/", "tcp", "engine.example.com:2376", "https://engine.example.com:2376"},
		{"http://10.0.0.5:2375/v1.41", "tcp", "10.0.0.5:2375", "http://10.0.0.5:2375/v1.41"},
		{"tcp://10.0.0.5:2375", "tcp", "10.0.0.5:2375", "http://10.0.0.5:2375"},
		{"10.0.0.5:2375", "tcp", "10.0.0.5:2375", "http://10.0.0.5:2375"},
		{"unix:///var/run/docker.sock", "unix", "/var/run/docker.sock", "http://docker"},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			ep, err := parseEngineAddress(tt.address)
			if err != nil {
				t.Fatalf("parseEngineAddress failed: %v", err)
			}
			if ep.proto != tt.wantProto {
				t.Errorf("proto: expected %q, got %q", tt.wantProto, ep.proto)
			}
			if ep.addr != tt.wantAddr {
				t.Errorf("addr: expected %q, got %q", tt.wantAddr, ep.addr)
			}
			if got := ep.base.String(); got != tt.wantBase {
				t.Errorf("base: expected %q, got %q", tt.wantBase, got)
			}
		})
	}
}

func TestParseEngineAddressInvalid(t *testing.T) {
	for _, address := range []string{"", "   ", "ftp://host:21"} {
		if _, err := parseEngineAddress(address); !domain.IsValidation(err) {
			t.Errorf("%q: expected ValidationError, got %v", address, err)
		}
	}
}
