//go:build !windows

package system

import "syscall"

// detachedProcAttr starts the child in a new session so terminal signals
// sent to the caller do not reach it.
func detachedProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Setsid: true,
	}
}
