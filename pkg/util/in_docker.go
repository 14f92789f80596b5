// Package util contains any functions used across the application that don't match
// any other package
package util

import "os"

var dockerEnvFile = "/.dockerenv"

func IsRunningInDocker() bool {
	_, err := os.Stat(dockerEnvFile)
	return err == nil
}

// FileExists is false for directories.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
