package fdedup

// Defaults for the resource ceilings.
const (
	DefaultMaxDirs     = 256
	DefaultMaxFiles    = 512
	DefaultMaxSymlinks = 128
)

// DefaultHashBuffer is the read chunk used when streaming file content into
// the digest.
const DefaultHashBuffer = 32384

// DigestSize is the length of a content digest in bytes (MD5).
const DigestSize = 16

// listBatchSize bounds how many directory entries are read per ReadDir call.
const listBatchSize = 1000

// indexShards is the number of independently locked shards in an Index.
// Must be a power of two.
const indexShards = 64

// Debug flag names understood by SetDebugFlags.
const (
	DebugWalk     = "walk"
	DebugHash     = "hash"
	DebugGuard    = "guard"
	DebugIndex    = "index"
	DebugDispatch = "dispatch"
	DebugLimits   = "limits"
)

// Mode selects what the Dispatcher does with each duplicate group.
type Mode int

const (
	ModeReport       Mode = iota // emit one JSON record per group
	ModeExec                     // run an external program per group
	ModeKeepShortest             // delete all but the shortest-named path
	ModePretend                  // like ModeKeepShortest, but only report
)

// ModeName returns the human-readable name for a mode
func ModeName(m Mode) string {
	switch m {
	case ModeReport:
		return "report"
	case ModeExec:
		return "exec"
	case ModeKeepShortest:
		return "keep-shortest"
	case ModePretend:
		return "pretend"
	default:
		return "unknown"
	}
}

func (m Mode) String() string { return ModeName(m) }
