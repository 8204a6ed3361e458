//go:build windows

package exec

import "golang.org/x/sys/windows"

// mmapCodeSegment is copy_to_executable from compiler.c: VirtualAlloc a
// read-write page, copy the code in, then VirtualProtect it down to
// read-execute.
func mmapCodeSegment(code []byte) ([]byte, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(len(code)), windows.MEM_COMMIT|windows.MEM_RESERVE, windows.PAGE_READWRITE)
	if err != nil {
		return nil, err
	}
	mem := unsafeSlice(addr, len(code))
	copy(mem, code)

	var oldProtect uint32
	if err := windows.VirtualProtect(addr, uintptr(len(code)), windows.PAGE_EXECUTE_READ, &oldProtect); err != nil {
		_ = windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
		return nil, err
	}
	return mem, nil
}

func munmapCodeSegment(mem []byte) error {
	return windows.VirtualFree(firstByteAddr(mem), 0, windows.MEM_RELEASE)
}
