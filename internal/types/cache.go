package types

// Hash is a content hash, sha256-sized (32 bytes, cryptographic,
// 256-bit or stronger).
type Hash [32]byte

// CacheEntry is the persisted, content-verified record for one file.
type CacheEntry struct {
	Hash     Hash
	FastHash uint64 // xxhash of the same bytes; stored only, never read back or used for cache validity
	Mtime    int64  // seconds since epoch
	Size     int64
	Lines    int
	Data     FileData
}

// FileData wraps the parsed payload so the on-disk schema can grow
// sibling fields without reshaping CacheEntry.
type FileData struct {
	Parsed ParsedFile
}

// SkippedFile records a file the pipeline did not index, and why.
type SkippedFile struct {
	Path   string
	Reason string
}

// FileResult is a parsed file as of the current run.
type FileResult struct {
	AbsPath     string
	RelPath     string // forward-slash normalised, repo-relative
	Hash        Hash
	Size        int64
	Lines       int
	Parsed      ParsedFile
	FromCache   bool
}

// DiffModified carries the symbol-level delta for one changed file.
type DiffModified struct {
	Path             string
	SymbolsAdded     int
	SymbolsRemoved   int
	SignatureChanges []string
	FieldChanges     []string
}

type DiffAdded struct {
	Path    string
	Symbols int
}

type DiffRemoved struct {
	Path    string
	Symbols int
}

// DiffSummary is the content diff against the previous run.
type DiffSummary struct {
	Added      []DiffAdded
	Removed    []DiffRemoved
	Modified   []DiffModified
	OldCommit  string
	NewCommit  string
}

// TotalChanges counts added, removed and modified files; zero means the
// diff is empty ("no changes since last run" in the summary).
func (d DiffSummary) TotalChanges() int {
	return len(d.Added) + len(d.Removed) + len(d.Modified)
}

// CrateKind classifies a workspace member.
type CrateKind uint8

const (
	CrateLibrary CrateKind = iota
	CrateBinary
	CrateProcMacro
	CrateExample
	CrateBench
)

type TargetKind uint8

const (
	TargetLib TargetKind = iota
	TargetBin
	TargetExample
	TargetBench
)

type TargetInfo struct {
	Name string
	Kind TargetKind
	Path string
}

// CrateInfo is one workspace member.
type CrateInfo struct {
	Name         string
	Dir          string
	Kind         CrateKind
	Dependencies []string
	Features     []string
	Targets      []TargetInfo
}

// WorkspaceInfo is the Workspace Detector's output.
type WorkspaceInfo struct {
	Root    string
	Members []CrateInfo
}

// GitInfo is the optional git metadata attached to a PipelineResult.
type GitInfo struct {
	CommitHash string
	Churn      map[string]int // repo-relative path -> commits in the last 90 days
}

// PipelineResult is the outcome of one indexing run. UpToDate marks the
// whole-run short-circuit: every file matched its cached (mtime, size),
// so Workspace, Git, and Diff were never computed and are left zero.
type PipelineResult struct {
	Files      []FileResult // sorted by RelPath
	Workspace  WorkspaceInfo
	Git        *GitInfo
	TotalLines int
	Skipped    []SkippedFile
	Diff       DiffSummary
	UpToDate   bool
}
