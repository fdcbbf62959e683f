//go:build unix

package ocr

import "golang.org/x/sys/unix"

const workerNiceness = 19

// lowerPriority keeps the worker from competing with interactive work.
func lowerPriority(pid int) error {
	return unix.Setpriority(unix.PRIO_PROCESS, pid, workerNiceness)
}
