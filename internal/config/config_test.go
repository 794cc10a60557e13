package config

import (
	"os"
	"path/filepath"
	"testing"
)

// unsetEnv clears key for the duration of the test and restores it afterwards.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}

func TestLoad_DefaultWhenMissing(t *testing.T) {
	unsetEnv(t, EnvAccessToken)
	unsetEnv(t, EnvRemoteProvider)
	unsetEnv(t, EnvDebug)
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CheckpointEvery != 3 {
		t.Errorf("CheckpointEvery = %d, want 3", cfg.CheckpointEvery)
	}
	if cfg.SyncConcurrency != 1 {
		t.Errorf("SyncConcurrency = %d, want 1", cfg.SyncConcurrency)
	}
	if cfg.Remote.FolderName != "Vinotes" {
		t.Errorf("Remote.FolderName = %q, want %q", cfg.Remote.FolderName, "Vinotes")
	}
	if cfg.Remote.Provider != "" {
		t.Errorf("Remote.Provider = %q, want empty (offline)", cfg.Remote.Provider)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	unsetEnv(t, EnvRemoteProvider)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	data := `{"checkpoint_every": 10, "remote": {"provider": "webdav", "endpoint": "https://dav.example.com"}}`
	if err := os.WriteFile(configPath, []byte(data), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.CheckpointEvery != 10 {
		t.Errorf("CheckpointEvery = %d, want 10", cfg.CheckpointEvery)
	}
	if cfg.Remote.Provider != "webdav" {
		t.Errorf("Remote.Provider = %q, want webdav", cfg.Remote.Provider)
	}
	// Defaults survive a partial remote block
	if cfg.Remote.FolderName != "Vinotes" {
		t.Errorf("Remote.FolderName = %q, want default", cfg.Remote.FolderName)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_DotEnv(t *testing.T) {
	unsetEnv(t, EnvAccessToken)
	unsetEnv(t, EnvRemoteProvider)
	tmpDir := t.TempDir()

	env := "NOTEBOARD_ACCESS_TOKEN=from-dotenv\nNOTEBOARD_REMOTE_PROVIDER=memory\n"
	if err := os.WriteFile(filepath.Join(tmpDir, ".env"), []byte(env), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Remote.AccessToken != "from-dotenv" {
		t.Errorf("Remote.AccessToken = %q, want %q", cfg.Remote.AccessToken, "from-dotenv")
	}
	if cfg.Remote.Provider != "memory" {
		t.Errorf("Remote.Provider = %q, want memory", cfg.Remote.Provider)
	}
}

func TestLoad_EnvBeatsDotEnv(t *testing.T) {
	t.Setenv(EnvAccessToken, "from-env")
	tmpDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(tmpDir, ".env"), []byte("NOTEBOARD_ACCESS_TOKEN=from-dotenv\n"), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Remote.AccessToken != "from-env" {
		t.Errorf("Remote.AccessToken = %q, want %q", cfg.Remote.AccessToken, "from-env")
	}
}

func TestApplyEnv_Debug(t *testing.T) {
	t.Setenv(EnvDebug, "1")

	cfg := DefaultConfig()
	ApplyEnv(cfg)
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoad_DisabledTools(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"disabled_tools": ["note_delete", "sync_run"]}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.DisabledTools) != 2 {
		t.Fatalf("DisabledTools length = %d, want 2", len(cfg.DisabledTools))
	}
	if cfg.DisabledTools[0] != "note_delete" {
		t.Errorf("DisabledTools[0] = %q, want %q", cfg.DisabledTools[0], "note_delete")
	}
}

func TestMerge_ScalarOverride(t *testing.T) {
	base := &Config{CheckpointEvery: 3, DBMaxOpenConns: 5}
	overlay := &Config{CheckpointEvery: 7}

	result := Merge(base, overlay)

	if result.CheckpointEvery != 7 {
		t.Errorf("CheckpointEvery = %d, want 7 (overlay)", result.CheckpointEvery)
	}
	if result.DBMaxOpenConns != 5 {
		t.Errorf("DBMaxOpenConns = %d, want 5 (base, overlay is zero)", result.DBMaxOpenConns)
	}
}

func TestMerge_RemoteFields(t *testing.T) {
	base := &Config{Remote: Remote{FolderName: "Vinotes", TokenTTLMinutes: 60, RateLimit: 2}}
	overlay := &Config{Remote: Remote{Provider: "s3", Bucket: "notes"}}

	result := Merge(base, overlay)

	if result.Remote.Provider != "s3" || result.Remote.Bucket != "notes" {
		t.Errorf("Remote = %+v, want overlay provider and bucket", result.Remote)
	}
	if result.Remote.FolderName != "Vinotes" || result.Remote.TokenTTLMinutes != 60 {
		t.Errorf("Remote = %+v, want base folder and ttl", result.Remote)
	}
	if result.Remote.RateLimit != 2 {
		t.Errorf("Remote.RateLimit = %v, want 2", result.Remote.RateLimit)
	}
}

func TestMerge_BooleanOr(t *testing.T) {
	result := Merge(&Config{AutoPush: true}, &Config{})
	if !result.AutoPush {
		t.Errorf("AutoPush = false, want true (base)")
	}

	result = Merge(&Config{}, &Config{AllowUnsafePaths: true})
	if !result.AllowUnsafePaths {
		t.Errorf("AllowUnsafePaths = false, want true (overlay)")
	}
}

func TestMerge_ArrayDedupe(t *testing.T) {
	base := &Config{DisabledTools: []string{"note_delete", " sync_run "}}
	overlay := &Config{DisabledTools: []string{"sync_run", "folder_delete", ""}}

	result := Merge(base, overlay)

	want := []string{"note_delete", "sync_run", "folder_delete"}
	if len(result.DisabledTools) != len(want) {
		t.Fatalf("DisabledTools = %v, want %v", result.DisabledTools, want)
	}
	for i := range want {
		if result.DisabledTools[i] != want[i] {
			t.Errorf("DisabledTools[%d] = %q, want %q", i, result.DisabledTools[i], want[i])
		}
	}
}

func TestMergeStringSlice_Empty(t *testing.T) {
	if got := mergeStringSlice(nil, []string{" ", ""}); got != nil {
		t.Errorf("mergeStringSlice() = %v, want nil", got)
	}
}
