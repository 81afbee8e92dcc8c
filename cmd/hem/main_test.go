package main

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestParseFlagsDefaults(t *testing.T) {
	cfg, err := parseFlags(newFlagSet(), nil)
	require.NoError(t, err)
	assert.Equal(t, ":8421", cfg.Listen)
	assert.Equal(t, int64(512), cfg.MaxUploadMB)
	assert.False(t, cfg.Diag)
	assert.Empty(t, cfg.TuningFile)
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		check   func(t *testing.T, cfg Config)
	}{
		{
			name: "overrides",
			args: []string{"--listen", "127.0.0.1:9000", "--backend", "ffmpeg", "--diag"},
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, "127.0.0.1:9000", cfg.Listen)
				assert.Equal(t, "ffmpeg", cfg.Backend)
				assert.True(t, cfg.Diag)
			},
		},
		{name: "empty listen", args: []string{"--listen", ""}, wantErr: true},
		{name: "zero upload", args: []string{"--max-upload-mb", "0"}, wantErr: true},
		{name: "unknown flag", args: []string{"--port", "/dev/ttyUSB0"}, wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := parseFlags(newFlagSet(), tc.args)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tc.check(t, cfg)
		})
	}
}

func TestLogWriters(t *testing.T) {
	w := logWriters(Config{})
	assert.NotNil(t, w.Ops)
	assert.Nil(t, w.Diag)
	assert.Nil(t, w.Trace)

	w = logWriters(Config{Diag: true, Trace: true})
	assert.NotNil(t, w.Diag)
	assert.NotNil(t, w.Trace)
}

func TestLoadTuning(t *testing.T) {
	cfg, err := loadTuning("")
	require.NoError(t, err)
	assert.Equal(t, 8.0, cfg.GetSampleFPS())

	path := filepath.Join(t.TempDir(), "tuning.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sample_fps": 2}`), 0644))
	cfg, err = loadTuning(path)
	require.NoError(t, err)
	assert.Equal(t, 2.0, cfg.GetSampleFPS())

	_, err = loadTuning(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
