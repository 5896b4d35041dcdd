//go:build linux || darwin || freebsd || netbsd || openbsd

package sysmon

import "golang.org/x/sys/unix"

// fillFromUname completes fields left empty by gopsutil.
func fillFromUname(info *HostInfo) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return
	}
	if info.Hostname == "" {
		info.Hostname = unix.ByteSliceToString(u.Nodename[:])
	}
	if info.KernelVersion == "" {
		info.KernelVersion = unix.ByteSliceToString(u.Release[:])
	}
	if m := unix.ByteSliceToString(u.Machine[:]); m != "" && info.Machine == "" {
		info.Machine = m
	}
}
