// Copyright 2017 The Go Authors.  All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pkvm

import (
	"github.com/pkg/errors"
	"github.com/pkvm-dev/pkvm/internal/rtvalue"
)

// Module is a namespace: a dict of globals plus __name__ and __package__
// entries (and __path__ for a package) set from the moment it is created,
// eagerly, the way gocore's readModules populates its whole function
// table up front rather than lazily per lookup.
type Module struct {
	Name    rtvalue.Name
	Globals map[rtvalue.Name]rtvalue.Value
}

func newModule(name rtvalue.Name, path string, isPackage bool) *Module {
	m := &Module{Name: name, Globals: make(map[rtvalue.Name]rtvalue.Value)}
	m.Globals[rtvalue.NameName] = rtvalue.None // set to a str value by the caller (InstallModule, ExecModule, New)
	m.Globals[rtvalue.NamePackage] = rtvalue.None
	if isPackage {
		m.Globals[rtvalue.NamePath] = rtvalue.None
	}
	return m
}

// ModuleRegistry maps an import path to its Module. Entries are never
// removed: modules are permanent GC roots for the lifetime of the VM,
// per the spec's "module registry... never GC'd" rule.
type ModuleRegistry struct {
	byPath map[string]*Module
	order  []string // insertion order, for deterministic root enumeration
}

func newModuleRegistry() *ModuleRegistry {
	return &ModuleRegistry{byPath: make(map[string]*Module)}
}

func (r *ModuleRegistry) Get(path string) (*Module, bool) {
	m, ok := r.byPath[path]
	return m, ok
}

func (r *ModuleRegistry) install(path string, m *Module) {
	if _, exists := r.byPath[path]; !exists {
		r.order = append(r.order, path)
	}
	r.byPath[path] = m
}

// ImportHooks are the host-supplied callbacks through which module source
// or a precompiled module is obtained; import policy itself (search paths,
// caching beyond the registry) is a host concern, out of scope here.
type ImportHooks struct {
	// ImportFile loads raw module source/bytes for path, or ok=false if
	// no such module exists on the host's terms.
	ImportFile func(path string) (data []byte, ok bool)
	// LazyImport is consulted before ImportFile, letting a host supply an
	// already-built Module (e.g. a native extension) without going
	// through source loading at all.
	LazyImport func(path string) (*Module, bool)
}

// InstallModule registers a host-constructed module (e.g. a native
// extension written directly against this package's API) under path.
// This is the "install a named module" primitive; resolving *which*
// path a Python `import` statement should request is a host/compiler
// concern out of scope for this core.
func (vm *VM) InstallModule(path string, name rtvalue.Name) *Module {
	m := newModule(name, path, false)
	m.Globals[rtvalue.NameName] = vm.newString(name.Text())
	vm.modules.install(path, m)
	return m
}

// Import resolves path through the registry, then LazyImport, then
// ImportFile. Source returned by ImportFile is not compiled or run: Import
// raises ImportError for it. It returns the resolved Module, or ok=false
// with an ImportError raised on vm.
func (vm *VM) Import(path string) (*Module, bool) {
	if m, ok := vm.modules.Get(path); ok {
		return m, true
	}
	if vm.hooks.LazyImport != nil {
		if m, ok := vm.hooks.LazyImport(path); ok {
			vm.modules.install(path, m)
			return m, true
		}
	}
	if vm.hooks.ImportFile != nil {
		if _, ok := vm.hooks.ImportFile(path); ok {
			// Compiling imported source into a CodeObject is a compiler
			// concern out of scope for this core; a host that wires
			// ImportFile is expected to also wire LazyImport (or call
			// ExecModule itself) once it has compiled the bytes.
			vm.raiseImportError(path, errors.New("pkvm: ImportFile hook returned source but no compiler is wired; use LazyImport or ExecModule"))
			return nil, false
		}
	}
	vm.raiseImportError(path, errors.Errorf("no module named %q", path))
	return nil, false
}

// ExecModule runs code as path's top-level module body, installing and
// returning the resulting Module. Used by hosts that compile imported
// source themselves and just need core execution.
func (vm *VM) ExecModule(path string, name rtvalue.Name, code *CodeObject) (*Module, bool) {
	m := newModule(name, path, false)
	m.Globals[rtvalue.NameName] = vm.newString(name.Text())
	vm.modules.install(path, m)
	_, ok := vm.RunCode(code, m)
	return m, ok
}

// roots contributes every module's globals as GC roots.
func (r *ModuleRegistry) roots() []rtvalue.Value {
	var out []rtvalue.Value
	for _, path := range r.order {
		for _, v := range r.byPath[path].Globals {
			out = append(out, v)
		}
	}
	return out
}
