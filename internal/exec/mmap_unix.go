//go:build linux || darwin

package exec

import "golang.org/x/sys/unix"

// mmapCodeSegment maps a fresh anonymous, private page, copies code into
// it, then drops the write permission and adds exec — W^X the whole way,
// never both writable and executable at once.
func mmapCodeSegment(code []byte) ([]byte, error) {
	mem, err := unix.Mmap(-1, 0, len(code), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, err
	}
	copy(mem, code)
	if err := unix.Mprotect(mem, unix.PROT_READ|unix.PROT_EXEC); err != nil {
		_ = unix.Munmap(mem)
		return nil, err
	}
	return mem, nil
}

func munmapCodeSegment(mem []byte) error {
	return unix.Munmap(mem)
}
