// Package wasmbuild emits small WebAssembly core binaries for tests.
//
// Fake drivers in railbind tests are fixed-shape modules: constant
// status returns, a stored context token, trigger functions that call
// the imported trampolines, and data segments copied into a string
// buffer. Building those directly keeps fixtures programmatic and
// avoids carrying a full text-format compiler.
package wasmbuild

import "fmt"

// ValType is a WebAssembly core value type.
type ValType byte

const (
	I32 ValType = 0x7F
	I64 ValType = 0x7E
)

const (
	sectionType   = 1
	sectionImport = 2
	sectionFunc   = 3
	sectionMemory = 5
	sectionGlobal = 6
	sectionExport = 7
	sectionCode   = 10
	sectionData   = 11

	kindFunc   = 0x00
	kindMemory = 0x02

	funcTypeMarker = 0x60
	opcodeEnd      = 0x0B
)

type funcType struct {
	params  []ValType
	results []ValType
}

type imported struct {
	module  string
	name    string
	typeIdx uint32
}

type definedFunc struct {
	export  string
	typeIdx uint32
	locals  []ValType
	body    []byte
}

type global struct {
	typ     ValType
	mutable bool
	init    int64
}

type segment struct {
	offset uint32
	data   []byte
}

// Module accumulates a wasm module definition. Imports must all be
// declared before the first defined function so the function index
// space stays stable.
type Module struct {
	types   []funcType
	imports []imported
	funcs   []definedFunc
	globals []global
	data    []segment
	pages   uint32
	sealed  bool
}

func New() *Module {
	return &Module{}
}

func (m *Module) typeIndex(params, results []ValType) uint32 {
	for i, t := range m.types {
		if typesEqual(t.params, params) && typesEqual(t.results, results) {
			return uint32(i)
		}
	}
	m.types = append(m.types, funcType{params: params, results: results})
	return uint32(len(m.types) - 1)
}

func typesEqual(a, b []ValType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ImportFunc declares a function import and returns its index in the
// function index space.
func (m *Module) ImportFunc(module, name string, params, results []ValType) uint32 {
	if m.sealed {
		panic("wasmbuild: imports must precede defined functions")
	}
	m.imports = append(m.imports, imported{
		module:  module,
		name:    name,
		typeIdx: m.typeIndex(params, results),
	})
	return uint32(len(m.imports) - 1)
}

// Memory declares a linear memory of the given minimum page count,
// exported as "memory".
func (m *Module) Memory(pages uint32) {
	m.pages = pages
}

// Global declares a mutable or immutable global and returns its index.
func (m *Module) Global(typ ValType, mutable bool, init int64) uint32 {
	m.globals = append(m.globals, global{typ: typ, mutable: mutable, init: init})
	return uint32(len(m.globals) - 1)
}

// Data declares an active data segment at a fixed offset.
func (m *Module) Data(offset uint32, data []byte) {
	m.data = append(m.data, segment{offset: offset, data: data})
}

// Func defines a function from instruction fragments (the trailing end
// opcode is appended) and returns its index in the function index
// space. An empty export name keeps the function internal.
func (m *Module) Func(export string, params, results, locals []ValType, body ...[]byte) uint32 {
	m.sealed = true
	var code []byte
	for _, part := range body {
		code = append(code, part...)
	}
	code = append(code, opcodeEnd)
	m.funcs = append(m.funcs, definedFunc{
		export:  export,
		typeIdx: m.typeIndex(params, results),
		locals:  locals,
		body:    code,
	})
	return uint32(len(m.imports)+len(m.funcs)) - 1
}

// Build encodes the module to binary form.
func (m *Module) Build() []byte {
	buf := &buffer{}
	buf.raw(0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00)

	if len(m.types) > 0 {
		sec := &buffer{}
		sec.u32(uint32(len(m.types)))
		for _, t := range m.types {
			sec.raw(funcTypeMarker)
			sec.u32(uint32(len(t.params)))
			for _, p := range t.params {
				sec.raw(byte(p))
			}
			sec.u32(uint32(len(t.results)))
			for _, r := range t.results {
				sec.raw(byte(r))
			}
		}
		buf.section(sectionType, sec)
	}

	if len(m.imports) > 0 {
		sec := &buffer{}
		sec.u32(uint32(len(m.imports)))
		for _, imp := range m.imports {
			sec.name(imp.module)
			sec.name(imp.name)
			sec.raw(kindFunc)
			sec.u32(imp.typeIdx)
		}
		buf.section(sectionImport, sec)
	}

	if len(m.funcs) > 0 {
		sec := &buffer{}
		sec.u32(uint32(len(m.funcs)))
		for _, f := range m.funcs {
			sec.u32(f.typeIdx)
		}
		buf.section(sectionFunc, sec)
	}

	if m.pages > 0 {
		sec := &buffer{}
		sec.u32(1)
		sec.raw(0x00) // min only
		sec.u32(m.pages)
		buf.section(sectionMemory, sec)
	}

	if len(m.globals) > 0 {
		sec := &buffer{}
		sec.u32(uint32(len(m.globals)))
		for _, g := range m.globals {
			sec.raw(byte(g.typ))
			if g.mutable {
				sec.raw(0x01)
			} else {
				sec.raw(0x00)
			}
			switch g.typ {
			case I64:
				sec.raw(0x42)
				sec.s64(g.init)
			case I32:
				sec.raw(0x41)
				sec.s32(int32(g.init))
			default:
				panic(fmt.Sprintf("wasmbuild: unsupported global type %#x", g.typ))
			}
			sec.raw(opcodeEnd)
		}
		buf.section(sectionGlobal, sec)
	}

	exports := 0
	for _, f := range m.funcs {
		if f.export != "" {
			exports++
		}
	}
	if m.pages > 0 {
		exports++
	}
	if exports > 0 {
		sec := &buffer{}
		sec.u32(uint32(exports))
		for i, f := range m.funcs {
			if f.export == "" {
				continue
			}
			sec.name(f.export)
			sec.raw(kindFunc)
			sec.u32(uint32(len(m.imports) + i))
		}
		if m.pages > 0 {
			sec.name("memory")
			sec.raw(kindMemory)
			sec.u32(0)
		}
		buf.section(sectionExport, sec)
	}

	if len(m.funcs) > 0 {
		sec := &buffer{}
		sec.u32(uint32(len(m.funcs)))
		for _, f := range m.funcs {
			code := &buffer{}
			groups := groupLocals(f.locals)
			code.u32(uint32(len(groups)))
			for _, g := range groups {
				code.u32(g.count)
				code.raw(byte(g.typ))
			}
			code.bytes(f.body)
			sec.u32(uint32(len(code.out)))
			sec.bytes(code.out)
		}
		buf.section(sectionCode, sec)
	}

	if len(m.data) > 0 {
		sec := &buffer{}
		sec.u32(uint32(len(m.data)))
		for _, d := range m.data {
			sec.raw(0x00) // active, memory 0
			sec.raw(0x41) // i32.const offset
			sec.s32(int32(d.offset))
			sec.raw(opcodeEnd)
			sec.u32(uint32(len(d.data)))
			sec.bytes(d.data)
		}
		buf.section(sectionData, sec)
	}

	return buf.out
}

type localGroup struct {
	count uint32
	typ   ValType
}

func groupLocals(locals []ValType) []localGroup {
	var groups []localGroup
	for _, l := range locals {
		if len(groups) > 0 && groups[len(groups)-1].typ == l {
			groups[len(groups)-1].count++
		} else {
			groups = append(groups, localGroup{count: 1, typ: l})
		}
	}
	return groups
}
