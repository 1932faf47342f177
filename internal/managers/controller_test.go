package managers

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/chrissnell/icewatch/pkg/config"
	"go.uber.org/zap"
)

func writeConfig(t *testing.T, yaml string) config.ConfigProvider {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	return config.NewYAMLProvider(path)
}

func TestNewControllerManager(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		want    int
		wantErr bool
	}{
		{"cache only", "fmi: {}\n", 1, false},
		{"rest and grpc", `
controllers:
  - type: rest
    rest:
      port: 18080
  - type: grpc
  - type: icingcache
    icingcache:
      refresh-interval: 10m
`, 3, false},
		{"unknown type", `
controllers:
  - type: wunderground
`, 0, true},
		{"bad cache interval", `
controllers:
  - type: icingcache
    icingcache:
      refresh-interval: often
`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var wg sync.WaitGroup
			cm, err := NewControllerManager(context.Background(), &wg, writeConfig(t, tt.yaml), zap.NewNop().Sugar())
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if err != nil {
				return
			}

			got := len(cm.(*controllerManager).controllers)
			if got != tt.want {
				t.Errorf("expected %d controllers, got %d", tt.want, got)
			}
		})
	}
}
