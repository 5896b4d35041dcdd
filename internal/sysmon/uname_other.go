//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package sysmon

func fillFromUname(*HostInfo) {}
