package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const llmYAML = `
roles:
  intent:
    provider: qwen
    model: qwen-turbo
    temperature: 0.3
  strategy:
    provider: qwen
    model: qwen-max
  analysis:
    provider: qwen
    model: qwen-plus
  evaluation:
    provider: qwen
    model: qwen-plus
  thinking_narrative:
    provider: qwen
    model: qwen-turbo
providers:
  qwen:
    base_url: https://dashscope.example.com/compatible-mode/v1
    api_key_env: DASHSCOPE_API_KEY
`

func writeConfigDir(t *testing.T, mainYAML string) string {
	t.Helper()
	dir := t.TempDir()
	if mainYAML != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "deepthink.yaml"), []byte(mainYAML), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "llm-providers.yaml"), []byte(llmYAML), 0o644))
	return dir
}

func TestInitialize_DefaultsApplied(t *testing.T) {
	dir := writeConfigDir(t, "")

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, cfg.Orchestrator.StepTimeout)
	assert.Equal(t, 4, cfg.Orchestrator.MaxParallelSteps)
	assert.Equal(t, 6, cfg.Orchestrator.MaxPlanSteps)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL)
	assert.Equal(t, []string{"campaign_plan"}, cfg.PluginsForTask("campaign_or_copy"))
	assert.Nil(t, cfg.PluginsForTask("unknown_task"))
}

func TestInitialize_UserOverridesMergedOverDefaults(t *testing.T) {
	dir := writeConfigDir(t, `
orchestrator:
  step_timeout: 30s
session:
  ttl: 48h
plugins:
  - name: bilibili_hotspot
    brain: analysis
    kind: scheduled
    schedule:
      interval_hours: 6
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Orchestrator.StepTimeout)
	assert.Equal(t, 48*time.Hour, cfg.Session.TTL)
	// Untouched defaults survive the merge
	assert.Equal(t, 6, cfg.Orchestrator.MaxPlanSteps)
	require.Len(t, cfg.Plugins, 1)
	assert.Equal(t, "bilibili_hotspot", cfg.Plugins[0].Name)
}

func TestInitialize_MissingLLMConfigFails(t *testing.T) {
	dir := t.TempDir()

	_, err := Initialize(context.Background(), dir)
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestInitialize_ScheduledPluginWithoutIntervalFails(t *testing.T) {
	dir := writeConfigDir(t, `
plugins:
  - name: weibo_hotspot
    brain: analysis
    kind: scheduled
`)

	_, err := Initialize(context.Background(), dir)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestLLMRegistry_Resolve(t *testing.T) {
	registry := NewLLMRegistry(
		map[string]*RoleConfig{
			"intent": {Provider: "qwen", Model: "qwen-turbo"},
		},
		map[string]*ProviderConfig{
			"qwen": {BaseURL: "https://example.com/v1", APIKeyEnv: "TEST_RESOLVE_KEY"},
		},
	)

	t.Run("missing API key env", func(t *testing.T) {
		os.Unsetenv("TEST_RESOLVE_KEY")
		_, _, _, err := registry.Resolve("intent")
		assert.ErrorIs(t, err, ErrAPIKeyMissing)
	})

	t.Run("resolves with key present", func(t *testing.T) {
		t.Setenv("TEST_RESOLVE_KEY", "sk-test")
		role, provider, key, err := registry.Resolve("intent")
		require.NoError(t, err)
		assert.Equal(t, "qwen-turbo", role.Model)
		assert.Equal(t, "https://example.com/v1", provider.BaseURL)
		assert.Equal(t, "sk-test", key)
	})

	t.Run("unknown role", func(t *testing.T) {
		_, _, _, err := registry.Resolve("nonexistent")
		assert.ErrorIs(t, err, ErrRoleNotFound)
	})
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_EXPAND_URL", "https://api.example.com")

	out := ExpandEnv([]byte("base_url: {{.TEST_EXPAND_URL}}/v1"))
	assert.Equal(t, "base_url: https://api.example.com/v1", string(out))

	// Literal $ is preserved — no collision with shell-style expansion
	out = ExpandEnv([]byte("pattern: price\\$[0-9]+"))
	assert.Equal(t, "pattern: price\\$[0-9]+", string(out))
}

func TestInitialize_UnsetEnvPlaceholderYieldsEmptyValue(t *testing.T) {
	os.Unsetenv("DEEPTHINK_TEST_REDIS_ADDR")
	dir := writeConfigDir(t, `
cache:
  redis_addr: "{{.DEEPTHINK_TEST_REDIS_ADDR}}"
`)

	cfg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	require.NotNil(t, cfg.Cache)
	// An unset variable must not leak its placeholder into the address;
	// callers decide between Redis and in-memory on emptiness.
	assert.Equal(t, "", cfg.Cache.RedisAddr)
}
