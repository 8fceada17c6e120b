package agents

import (
	"os"
	"strings"
)

// ShouldSuppressTTYQueries reports whether the process should avoid terminal
// capability queries and interactive prompts. Robot invocations, CI and test
// environments all read stdout as a pipe; escape-sequence probes would
// corrupt their JSON.
func ShouldSuppressTTYQueries() bool {
	return shouldSuppressTTYQueries(os.Args, os.Getenv("TG_ROBOT") != "", os.Getenv("GO_TEST") != "")
}

func shouldSuppressTTYQueries(args []string, envRobot, envTest bool) bool {
	if envRobot || envTest {
		return true
	}
	for _, arg := range args[1:] {
		trimmed := strings.TrimLeft(arg, "-")
		if strings.HasPrefix(trimmed, "robot-") {
			return true
		}
		switch trimmed {
		case "help", "h", "version":
			return true
		}
	}
	return false
}
