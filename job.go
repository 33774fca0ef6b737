package peercache

import "fmt"

// Action is the operation a Job asks the cache (or, beyond the cache's
// boundary, the outer disk-I/O subsystem) to perform.
type Action int

const (
	// ActionRead reads a range of bytes from a piece.
	ActionRead Action = iota
	// ActionWrite writes a caller-owned buffer into a piece as a dirty block.
	ActionWrite
	// ActionHash computes a piece's SHA-1 from storage and verifies it, once
	// none of the piece's cached blocks are dirty.
	ActionHash
	// ActionReadAndHash reads a range and verifies the owning piece's hash.
	ActionReadAndHash

	// The remaining actions never touch the cache directly; they pass
	// through to the outer disk subsystem untouched. They exist here only so
	// Job is a faithful copy of the real ingress record described in spec
	// section 6.
	ActionMoveStorage
	ActionReleaseFiles
	ActionDeleteFiles
	ActionCheckFastresume
	ActionCheckFiles
	ActionSaveResumeData
	ActionRenameFile
	ActionAbortThread
	ActionClearReadCache
	ActionFinalizeFile
)

func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionWrite:
		return "write"
	case ActionHash:
		return "hash"
	case ActionReadAndHash:
		return "read-and-hash"
	case ActionMoveStorage:
		return "move-storage"
	case ActionReleaseFiles:
		return "release-files"
	case ActionDeleteFiles:
		return "delete-files"
	case ActionCheckFastresume:
		return "check-fastresume"
	case ActionCheckFiles:
		return "check-files"
	case ActionSaveResumeData:
		return "save-resume-data"
	case ActionRenameFile:
		return "rename-file"
	case ActionAbortThread:
		return "abort-thread"
	case ActionClearReadCache:
		return "clear-read-cache"
	case ActionFinalizeFile:
		return "finalize-file"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// Callback is posted to an Executor once a Job's result is ready.
type Callback func(result int, job *Job)

// Job is the ingress record a caller submits to the cache. For writes,
// Buffer is the owned block being handed to the cache; for reads, it is
// filled in (or a freshly-allocated send-buffer is attached) by the cache
// before Callback is posted.
type Job struct {
	Action   Action
	Storage  Storage
	Piece    PieceIndex
	Offset   uint32
	BufferSize uint32
	Buffer   []byte

	// CacheMinTime is a residency hint, in seconds: the piece's expire time
	// is advanced to at least now+CacheMinTime whenever this job touches it.
	CacheMinTime uint32

	Callback Callback

	// Err carries the final outcome once this job is dispatched. Negative
	// sentinel values come from the Result constants below; zero means
	// success; any other value is a byte count (BufferSize echoed back).
	Err int
}

// Result is a small tagged outcome used in place of exceptions throughout
// the cache's public operations, per spec section 7.
type Result int

const (
	// ResultOK indicates success; for reads, the positive byte count is
	// returned separately rather than through this constant.
	ResultOK Result = 0
	// ResultNotCached: the requested range is not resident, or spans a
	// pending block. The caller must escalate to storage via AllocatePending.
	ResultNotCached Result = -1
	// ResultOutOfMemory: a buffer allocation failed. Transient.
	ResultOutOfMemory Result = -2
	// ResultOutOfCacheSpace: admission was refused even after eviction. The
	// caller should bypass the cache for this job.
	ResultOutOfCacheSpace Result = -3
	// ResultHashMismatch: the piece's computed hash didn't match the
	// expected hash. Storage.MarkFailed is called before this is surfaced.
	ResultHashMismatch Result = -4
	// ResultIOError: carried verbatim from the storage layer.
	ResultIOError Result = -5
	// ResultOperationAborted: produced only by AbortDirty on outstanding
	// write jobs.
	ResultOperationAborted Result = -6
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultNotCached:
		return "not-cached"
	case ResultOutOfMemory:
		return "out-of-memory"
	case ResultOutOfCacheSpace:
		return "out-of-cache-space"
	case ResultHashMismatch:
		return "hash-mismatch"
	case ResultIOError:
		return "io-error"
	case ResultOperationAborted:
		return "operation-aborted"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}
