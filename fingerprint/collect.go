package fingerprint

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// processStart approximates the process' start time. It is captured at
// package initialization, which runs once very early in the process'
// life, matching how the original metaInfo sources captured a timestamp
// during their own near-startup construction.
var processStart = time.Now()

func persistentRaw() string {
	return readFileOrEmpty("/etc/machine-id")
}

func semiPersistentRaw() string {
	return readFileOrEmpty("/etc/hostname")
}

func semiVolatileRaw() string {
	hostname := readFileOrEmpty("/etc/hostname")

	cgroup := readSymlinkOrEmpty("/proc/self/ns/cgroup")
	if cgroup == "" {
		cgroup = readFileOrEmpty("/proc/self/cgroup")
	}

	caCrt := readSymlinkOrEmpty("/var/run/secrets/kubernetes.io/serviceaccount/ca.crt")
	namespace := readSymlinkOrEmpty("/var/run/secrets/kubernetes.io/serviceaccount/namespace")
	token := readSymlinkOrEmpty("/var/run/secrets/kubernetes.io/serviceaccount/token")

	return joinNonEmpty(tierSeparator, hostname, cgroup, caCrt, namespace, token)
}

func volatileRaw() string {
	exe := canonicalExePath()
	return joinNonEmpty(tierSeparator,
		strconv.Itoa(os.Getuid()),
		strconv.Itoa(os.Geteuid()),
		strconv.Itoa(os.Getgid()),
		strconv.Itoa(os.Getegid()),
		strconv.Itoa(os.Getpid()),
		strconv.Itoa(os.Getppid()),
		exe,
		fmt.Sprintf("%d", processStart.UnixNano()),
	)
}

func canonicalExePath() string {
	path, err := os.Executable()
	if err != nil {
		return ""
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return path
	}
	return resolved
}

func readFileOrEmpty(path string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return string(b)
}

func readSymlinkOrEmpty(path string) string {
	target, err := os.Readlink(path)
	if err != nil {
		return ""
	}
	return target
}
