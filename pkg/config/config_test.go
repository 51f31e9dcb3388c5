package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCSV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty", in: "", want: nil},
		{name: "single", in: "kafka:9092", want: []string{"kafka:9092"}},
		{name: "trims and skips blanks", in: " a:1 , ,b:2,", want: []string{"a:1", "b:2"}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CSV(tt.in))
		})
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CANCELLATION_BLOCK_THRESHOLD", "")
	t.Setenv("SERVER_PORT", "not-a-number")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg := Load()

	assert.Equal(t, 3, cfg.CancellationBlockThreshold)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "products", cfg.ESIndex)
}

func TestLoad_ThresholdOverride(t *testing.T) {
	t.Setenv("CANCELLATION_BLOCK_THRESHOLD", "5")

	cfg := Load()

	assert.Equal(t, 5, cfg.CancellationBlockThreshold)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := Config{
		DatabaseURL:                "sqlite:file::memory:",
		JWTSecret:                  []byte("secret"),
		ServerPort:                 8080,
		JWTTTLMinutes:              60,
		CancellationBlockThreshold: 3,
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr []string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "missing secrets",
			mutate:  func(c *Config) { c.DatabaseURL = ""; c.JWTSecret = nil },
			wantErr: []string{"DATABASE_URL", "JWT_SECRET"},
		},
		{
			name:    "zero threshold",
			mutate:  func(c *Config) { c.CancellationBlockThreshold = 0 },
			wantErr: []string{"CANCELLATION_BLOCK_THRESHOLD"},
		},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.ServerPort = 70000 },
			wantErr: []string{"SERVER_PORT"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			for _, want := range tt.wantErr {
				assert.ErrorContains(t, err, want)
			}
		})
	}
}
