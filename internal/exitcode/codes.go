package exitcode

// Exit codes for the sent2 CLI.
const (
	// Success - every scene was processed
	Success = 0

	// ConfigError - missing or invalid configuration or flags
	ConfigError = 1

	// SceneError - at least one scene failed; the others were still processed
	SceneError = 2
)
