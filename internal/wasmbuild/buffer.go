package wasmbuild

// buffer builds binary sections with LEB128 integer encoding.
type buffer struct {
	out []byte
}

func (b *buffer) raw(v ...byte) {
	b.out = append(b.out, v...)
}

func (b *buffer) bytes(v []byte) {
	b.out = append(b.out, v...)
}

// u32 writes unsigned LEB128 encoding.
func (b *buffer) u32(v uint32) {
	for {
		byt := byte(v & 0x7F)
		v >>= 7
		if v != 0 {
			byt |= 0x80
		}
		b.out = append(b.out, byt)
		if v == 0 {
			break
		}
	}
}

// s32 writes signed LEB128 encoding.
func (b *buffer) s32(v int32) {
	for {
		byt := byte(v & 0x7F)
		v >>= 7
		if (v == 0 && byt&0x40 == 0) || (v == -1 && byt&0x40 != 0) {
			b.out = append(b.out, byt)
			break
		}
		b.out = append(b.out, byt|0x80)
	}
}

// s64 writes signed LEB128 encoding.
func (b *buffer) s64(v int64) {
	for {
		byt := byte(v & 0x7F)
		v >>= 7
		if (v == 0 && byt&0x40 == 0) || (v == -1 && byt&0x40 != 0) {
			b.out = append(b.out, byt)
			break
		}
		b.out = append(b.out, byt|0x80)
	}
}

func (b *buffer) name(s string) {
	b.u32(uint32(len(s)))
	b.out = append(b.out, s...)
}

func (b *buffer) section(id byte, content *buffer) {
	b.out = append(b.out, id)
	b.u32(uint32(len(content.out)))
	b.out = append(b.out, content.out...)
}

// leb is unsigned LEB128 as a standalone fragment, for instruction
// immediates.
func leb(v uint32) []byte {
	b := &buffer{}
	b.u32(v)
	return b.out
}

func sleb32(v int32) []byte {
	b := &buffer{}
	b.s32(v)
	return b.out
}

func sleb64(v int64) []byte {
	b := &buffer{}
	b.s64(v)
	return b.out
}
