package types

// TaskKind is the planner's declared intent for a task.
type TaskKind string

const (
	TaskKindExecute    TaskKind = "execute"
	TaskKindVerifyOnly TaskKind = "verify_only"
	TaskKindQuestion   TaskKind = "question"
)

// BuilderMode selects which builder dispatcher flavor handles a task.
type BuilderMode string

const (
	BuilderModeInteractiveAgent BuilderMode = "interactive_agent"
	BuilderModePatch            BuilderMode = "patch"
	BuilderModeExternalDriver   BuilderMode = "external_driver"
)

// Scope bounds what paths a builder may touch for a task.
type Scope struct {
	AllowedGlobs         []string `json:"allowed_globs"`
	ForbiddenGlobs       []string `json:"forbidden_globs"`
	AllowNewFiles        bool     `json:"allow_new_files"`
	AllowLockfileChanges bool     `json:"allow_lockfile_changes"`
}

// DiffLimits caps the size of a tick's change set.
type DiffLimits struct {
	MaxFilesTouched int `json:"max_files_touched"`
	MaxLinesChanged int `json:"max_lines_changed"`
}

// Verification names the fast/slow template IDs a task must pass, with
// optional per-template parameter maps.
type Verification struct {
	Fast   []string                     `json:"fast"`
	Slow   []string                     `json:"slow"`
	Params map[string]map[string]string `json:"params,omitempty"`
}

// Builder describes how the task should be executed.
type Builder struct {
	Mode         BuilderMode `json:"mode"`
	MaxTurns     int         `json:"max_turns"`
	Instructions string      `json:"instructions,omitempty"`
	Patch        string      `json:"patch,omitempty"`
}

// Question is present when TaskKind is question.
type Question struct {
	Prompt string `json:"prompt"`
}

// Task is the planner's validated output for one tick.
type Task struct {
	TaskID       string       `json:"task_id"`
	MilestoneID  string       `json:"milestone_id"`
	TaskKind     TaskKind     `json:"task_kind"`
	Intent       string       `json:"intent"`
	Question     *Question    `json:"question,omitempty"`
	Scope        Scope        `json:"scope"`
	DiffLimits   DiffLimits   `json:"diff_limits"`
	Verification Verification `json:"verification"`
	Builder      Builder      `json:"builder"`
}

// Validate checks the cross-field invariants spec.md §3 fixes for Task.
// It does not perform schema validation; that is internal/schema's job.
func (t *Task) Validate() error {
	if t.TaskKind == TaskKindQuestion {
		if t.Question == nil {
			return errTaskInvalid("task_kind=question requires question payload")
		}
		if t.Builder.Mode != BuilderModeInteractiveAgent {
			return errTaskInvalid("task_kind=question requires builder.mode=interactive_agent")
		}
	}
	if t.Builder.Mode == BuilderModePatch && t.Builder.Patch == "" {
		return errTaskInvalid("builder.mode=patch requires builder.patch")
	}
	return nil
}

type taskError string

func (e taskError) Error() string { return string(e) }

func errTaskInvalid(msg string) error { return taskError(msg) }

// BuilderResult is the builder's advisory, never-trusted output.
type BuilderResult struct {
	Summary           string   `json:"summary"`
	FilesIntended     []string `json:"files_intended"`
	CommandsRan       []string `json:"commands_ran"`
	Notes             []string `json:"notes"`
	BuilderOutputValid bool    `json:"builder_output_valid"`
}

// TouchedSet is derived from version-control reality at judge time.
type TouchedSet struct {
	Modified  []string          `json:"modified"`
	Added     []string          `json:"added"`
	Deleted   []string          `json:"deleted"`
	Renamed   map[string]string `json:"renamed"` // from -> to
	Untracked []string          `json:"untracked"`
}

// All returns modified ∪ added ∪ renamed.to ∪ untracked. Deleted paths are
// excluded per spec.md §3's invariant that renaming contributes only the
// destination.
func (t TouchedSet) All() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(t.Modified)+len(t.Added)+len(t.Renamed)+len(t.Untracked))
	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	for _, p := range t.Modified {
		add(p)
	}
	for _, p := range t.Added {
		add(p)
	}
	for _, to := range t.Renamed {
		add(to)
	}
	for _, p := range t.Untracked {
		add(p)
	}
	return out
}

// BlastRadius quantifies the tick's impact on the working copy.
type BlastRadius struct {
	FilesTouched int `json:"files_touched"`
	LinesAdded   int `json:"lines_added"`
	LinesDeleted int `json:"lines_deleted"`
	NewFiles     int `json:"new_files"`
}
