package wasmbuild

// Instruction fragments. Each helper returns the encoded instruction
// so bodies read top to bottom in stack order.

func I32Const(v int32) []byte {
	return append([]byte{0x41}, sleb32(v)...)
}

func I64Const(v int64) []byte {
	return append([]byte{0x42}, sleb64(v)...)
}

func LocalGet(i uint32) []byte {
	return append([]byte{0x20}, leb(i)...)
}

func LocalSet(i uint32) []byte {
	return append([]byte{0x21}, leb(i)...)
}

func LocalTee(i uint32) []byte {
	return append([]byte{0x22}, leb(i)...)
}

func GlobalGet(i uint32) []byte {
	return append([]byte{0x23}, leb(i)...)
}

func GlobalSet(i uint32) []byte {
	return append([]byte{0x24}, leb(i)...)
}

func Call(fn uint32) []byte {
	return append([]byte{0x10}, leb(fn)...)
}

func Unreachable() []byte {
	return []byte{0x00}
}

func Drop() []byte {
	return []byte{0x1A}
}

// Select pops [a, b, cond] and pushes a when cond is nonzero, else b.
func Select() []byte {
	return []byte{0x1B}
}

func I32LtU() []byte {
	return []byte{0x49}
}

func I32Add() []byte {
	return []byte{0x6A}
}

func I64Add() []byte {
	return []byte{0x7C}
}

// MemoryCopy pops [dest, src, len]; both memory indices are zero.
func MemoryCopy() []byte {
	return []byte{0xFC, 0x0A, 0x00, 0x00}
}
