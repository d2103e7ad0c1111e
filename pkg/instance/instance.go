package instance

import "os"

// GetID returns the replica identifier used to tag lock owners.
func GetID() string {
	if id := os.Getenv("SWITCH_WORKER_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
