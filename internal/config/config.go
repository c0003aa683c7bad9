// Package config loads and defaults the tick runner's JSON configuration
// file, following the teacher's viper-load-then-default-fill pattern but
// reading JSON (per spec.md §6) instead of YAML.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/daydemir/tickrunner/internal/schema"
)

// Config is the runner's immutable-per-tick configuration.
type Config struct {
	WorkspaceDir string        `mapstructure:"workspace_dir"`
	Runner       RunnerConfig  `mapstructure:"runner"`
	PlannerCLI   PlannerCLI    `mapstructure:"planner_cli"`
	Models       Models        `mapstructure:"models"`
	Orchestrator Orchestrator  `mapstructure:"orchestrator"`
	Builder      BuilderConfig `mapstructure:"builder"`
	Scope        ScopeDefaults `mapstructure:"scope"`
	DiffLimits   DiffLimits    `mapstructure:"diff_limits"`
	Verification Verification  `mapstructure:"verification"`
	Budgets      BudgetsConfig `mapstructure:"budgets"`
	History      HistoryConfig `mapstructure:"history"`
}

type CrashCleanup struct {
	DeleteTmpGlob string `mapstructure:"delete_tmp_glob"`
}

type RunnerConfig struct {
	RequireGit       bool         `mapstructure:"require_git"`
	MaxTickSeconds   int          `mapstructure:"max_tick_seconds"`
	Lockfile         string       `mapstructure:"lockfile"`
	RunnerOwnedGlobs []string     `mapstructure:"runner_owned_globs"`
	CrashCleanup     CrashCleanup `mapstructure:"crash_cleanup"`
}

type PlannerCLI struct {
	Command              []string `mapstructure:"command"`
	OutputFormat         string   `mapstructure:"output_format"`
	NoSessionPersistence bool     `mapstructure:"no_session_persistence"`
}

type Models struct {
	Orchestrator string `mapstructure:"orchestrator"`
	Builder      string `mapstructure:"builder"`
}

type Orchestrator struct {
	MaxTurns               int    `mapstructure:"max_turns"`
	PermissionMode         string `mapstructure:"permission_mode"`
	SystemPromptFile       string `mapstructure:"system_prompt_file"`
	UserPromptFile         string `mapstructure:"user_prompt_file"`
	TaskSchemaFile         string `mapstructure:"task_schema_file"`
	MaxParseRetriesPerTick int    `mapstructure:"max_parse_retries_per_tick"`
	TimeoutSeconds         int    `mapstructure:"timeout_seconds"`
}

type InteractiveBuilder struct {
	MaxTurns                int      `mapstructure:"max_turns"`
	PermissionMode          string   `mapstructure:"permission_mode"`
	AllowedTools            []string `mapstructure:"allowed_tools"`
	SystemPromptFile        string   `mapstructure:"system_prompt_file"`
	UserPromptFile          string   `mapstructure:"user_prompt_file"`
	BuilderResultSchemaFile string   `mapstructure:"builder_result_schema_file"`
	StrictBuilderJSON       bool     `mapstructure:"strict_builder_json"`
}

type PatchBuilder struct {
	MaxPatchAttemptsPerMilestone int `mapstructure:"max_patch_attempts_per_milestone"`
}

type ExternalBuilder struct {
	Command        []string `mapstructure:"command"`
	Args           []string `mapstructure:"args"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
	OutputFile     string   `mapstructure:"output_file"`
}

type BuilderConfig struct {
	DefaultMode    string             `mapstructure:"default_mode"`
	AllowPatchMode bool               `mapstructure:"allow_patch_mode"`
	Interactive    InteractiveBuilder `mapstructure:"interactive"`
	Patch          PatchBuilder       `mapstructure:"patch"`
	External       ExternalBuilder    `mapstructure:"external"`
}

type ScopeDefaults struct {
	DefaultAllowedGlobs         []string `mapstructure:"default_allowed_globs"`
	DefaultForbiddenGlobs       []string `mapstructure:"default_forbidden_globs"`
	DefaultAllowNewFiles        bool     `mapstructure:"default_allow_new_files"`
	DefaultAllowLockfileChanges bool     `mapstructure:"default_allow_lockfile_changes"`
	Lockfiles                   []string `mapstructure:"lockfiles"`
}

type DiffLimits struct {
	DefaultMaxFilesTouched int `mapstructure:"default_max_files_touched"`
	DefaultMaxLinesChanged int `mapstructure:"default_max_lines_changed"`
}

type VerificationTemplate struct {
	ID   string   `mapstructure:"id"`
	Cmd  string   `mapstructure:"cmd"`
	Args []string `mapstructure:"args"`
}

type Verification struct {
	ExecutionMode            string                 `mapstructure:"execution_mode"`
	MaxParamLen              int                    `mapstructure:"max_param_len"`
	RejectWhitespaceInParams bool                   `mapstructure:"reject_whitespace_in_params"`
	RejectDotdot             bool                   `mapstructure:"reject_dotdot"`
	RejectMetacharsRegex     string                 `mapstructure:"reject_metachars_regex"`
	TimeoutFastSeconds       int                    `mapstructure:"timeout_fast_seconds"`
	TimeoutSlowSeconds       int                    `mapstructure:"timeout_slow_seconds"`
	Templates                []VerificationTemplate `mapstructure:"templates"`
}

type PerMilestoneBudget struct {
	MaxTicks             int     `mapstructure:"max_ticks"`
	MaxOrchestratorCalls int     `mapstructure:"max_orchestrator_calls"`
	MaxBuilderCalls      int     `mapstructure:"max_builder_calls"`
	MaxVerifyRuns        int     `mapstructure:"max_verify_runs"`
	MaxEstimatedCostUSD  float64 `mapstructure:"max_estimated_cost_usd"`
}

type BudgetsConfig struct {
	PerMilestone   PerMilestoneBudget `mapstructure:"per_milestone"`
	WarnAtFraction float64            `mapstructure:"warn_at_fraction"`
}

type HistoryConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	Dir              string `mapstructure:"dir"`
	MaxMB            int    `mapstructure:"max_mb"`
	IncludeDiffPatch bool   `mapstructure:"include_diff_patch"`
	IncludeVerifyLog bool   `mapstructure:"include_verify_log"`
}

// Load reads the JSON config file at path and fills in defaults for any
// zero-valued field. A missing file is an error wrapping os.ErrNotExist.
// No caller turns a load failure into a BLOCKED_MISSING_CONFIG report; the
// tick command returns it as a plain error.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config: %s: %w", path, os.ErrNotExist)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadWithSchema is Load plus a schema-validation pass against the
// embedded config schema, run on the raw decoded document before it is
// unmarshalled into Config — so a malformed on-disk config (wrong type,
// unknown enum value) is rejected with a field-level message rather than
// silently zero-valued by viper's decode.
func LoadWithSchema(path string, schemas *schema.Compiler) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config: %s: %w", path, os.ErrNotExist)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	ok, errs, err := schemas.ValidateEmbedded("config.schema.json", v.AllSettings())
	if err != nil {
		return nil, fmt.Errorf("config: load config schema: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("config: %s fails schema validation: %s", path, formatValidationErrors(errs))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

func formatValidationErrors(errs []schema.ValidationError) string {
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return strings.Join(parts, "; ")
}

// Default returns a Config with every default value filled in, used when
// no on-disk config has been loaded yet (e.g. by tests).
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.WorkspaceDir == "" {
		cfg.WorkspaceDir = ".tickrunner"
	}
	if cfg.Runner.MaxTickSeconds == 0 {
		cfg.Runner.MaxTickSeconds = 600
	}
	if cfg.Runner.Lockfile == "" {
		cfg.Runner.Lockfile = "lock.json"
	}
	if len(cfg.Runner.RunnerOwnedGlobs) == 0 {
		cfg.Runner.RunnerOwnedGlobs = []string{cfg.WorkspaceDir + "/"}
	}
	if cfg.Runner.CrashCleanup.DeleteTmpGlob == "" {
		cfg.Runner.CrashCleanup.DeleteTmpGlob = "*.tmp"
	}
	if cfg.PlannerCLI.OutputFormat == "" {
		cfg.PlannerCLI.OutputFormat = "json"
	}
	if cfg.Orchestrator.MaxTurns == 0 {
		cfg.Orchestrator.MaxTurns = 20
	}
	if cfg.Orchestrator.MaxParseRetriesPerTick == 0 {
		cfg.Orchestrator.MaxParseRetriesPerTick = 1
	}
	if cfg.Builder.DefaultMode == "" {
		cfg.Builder.DefaultMode = "interactive_agent"
	}
	if cfg.Builder.Interactive.MaxTurns == 0 {
		cfg.Builder.Interactive.MaxTurns = 40
	}
	if cfg.DiffLimits.DefaultMaxFilesTouched == 0 {
		cfg.DiffLimits.DefaultMaxFilesTouched = 20
	}
	if cfg.DiffLimits.DefaultMaxLinesChanged == 0 {
		cfg.DiffLimits.DefaultMaxLinesChanged = 1000
	}
	if cfg.Verification.ExecutionMode == "" {
		cfg.Verification.ExecutionMode = "argv_no_shell"
	}
	if cfg.Verification.MaxParamLen == 0 {
		cfg.Verification.MaxParamLen = 256
	}
	if cfg.Verification.RejectMetacharsRegex == "" {
		cfg.Verification.RejectMetacharsRegex = `[;&|$` + "`" + `<>(){}\\\n]`
	}
	if cfg.Verification.TimeoutFastSeconds == 0 {
		cfg.Verification.TimeoutFastSeconds = 60
	}
	if cfg.Verification.TimeoutSlowSeconds == 0 {
		cfg.Verification.TimeoutSlowSeconds = 600
	}
	if cfg.Budgets.PerMilestone.MaxTicks == 0 {
		cfg.Budgets.PerMilestone.MaxTicks = 50
	}
	if cfg.Budgets.PerMilestone.MaxOrchestratorCalls == 0 {
		cfg.Budgets.PerMilestone.MaxOrchestratorCalls = 100
	}
	if cfg.Budgets.PerMilestone.MaxBuilderCalls == 0 {
		cfg.Budgets.PerMilestone.MaxBuilderCalls = 100
	}
	if cfg.Budgets.PerMilestone.MaxVerifyRuns == 0 {
		cfg.Budgets.PerMilestone.MaxVerifyRuns = 300
	}
	if cfg.Budgets.WarnAtFraction == 0 {
		cfg.Budgets.WarnAtFraction = 0.8
	}
	if cfg.History.Dir == "" {
		cfg.History.Dir = "history"
	}
	if cfg.History.MaxMB == 0 {
		cfg.History.MaxMB = 500
	}
}
