package exec

import "unsafe"

func firstByteAddr(mem []byte) uintptr {
	return uintptr(unsafe.Pointer(&mem[0]))
}

func unsafeSlice(addr uintptr, length int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), length)
}
