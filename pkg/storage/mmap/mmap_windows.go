//go:build windows
// +build windows

package mmap

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// mmapFile maps size bytes of the file behind fd read-write.
func mmapFile(fd uintptr, size int) ([]byte, error) {
	n := uint64(size)
	hMap, err := windows.CreateFileMapping(windows.Handle(fd), nil, windows.PAGE_READWRITE,
		uint32(n>>32), uint32(n), nil)
	if err != nil {
		return nil, fmt.Errorf("mmap: create file mapping: %w", err)
	}
	// The view holds its own reference to the mapping object.
	defer windows.CloseHandle(hMap)

	addr, err := windows.MapViewOfFile(hMap, windows.FILE_MAP_WRITE, 0, 0, uintptr(size))
	if err != nil {
		return nil, fmt.Errorf("mmap: map view of file: %w", err)
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), size), nil
}

// munmapFile unmaps a view returned by mmapFile.
func munmapFile(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return windows.UnmapViewOfFile(uintptr(unsafe.Pointer(&data[0])))
}
