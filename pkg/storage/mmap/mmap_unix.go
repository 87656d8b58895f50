//go:build unix || darwin || linux
// +build unix darwin linux

package mmap

import (
	"golang.org/x/sys/unix"
)

// mmapFile maps size bytes of the file behind fd read-write. Writes reach the
// file through MAP_SHARED.
func mmapFile(fd uintptr, size int) ([]byte, error) {
	return unix.Mmap(int(fd), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

// munmapFile unmaps a region returned by mmapFile.
func munmapFile(data []byte) error {
	return unix.Munmap(data)
}
