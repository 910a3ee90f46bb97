package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/coin-pulse/pkg/config"
	"github.com/sirupsen/logrus"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		wantErr bool
	}{
		{"text stdout", config.LoggingConfig{Level: "info", Format: "text", Output: "stdout"}, false},
		{"json stderr", config.LoggingConfig{Level: "debug", Format: "json", Output: "stderr"}, false},
		{"file", config.LoggingConfig{Level: "warn", Output: filepath.Join(t.TempDir(), "app.log")}, false},
		{"bad level", config.LoggingConfig{Level: "loud"}, true},
		{"bad format", config.LoggingConfig{Level: "info", Format: "xml"}, true},
		{"bad path", config.LoggingConfig{Level: "info", Output: filepath.Join(t.TempDir(), "missing", "app.log")}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(&tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	h := Middleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/v1/assets", nil))

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line %q: %v", buf.String(), err)
	}
	if line["status"] != float64(http.StatusBadGateway) || line["level"] != "warning" || line["path"] != "/api/v1/assets" {
		t.Errorf("log line = %v", line)
	}
}
