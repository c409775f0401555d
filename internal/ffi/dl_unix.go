//go:build cgo && unix

package ffi

/*
#cgo linux LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdint.h>
#include <stdlib.h>
#include <string.h>

typedef uintptr_t (*lla_create_fn)(void);
typedef int32_t (*lla_call_fn)(uintptr_t, const uint8_t*, size_t, uint8_t**, size_t*);
typedef void (*lla_free_fn)(uint8_t*, size_t);
typedef void (*lla_destroy_fn)(uintptr_t);

// dlerror state is per thread, so the error is captured in the same C call.
static void* lla_open(const char* path, char** err) {
	void* h = dlopen(path, RTLD_NOW | RTLD_LOCAL);
	if (h == NULL) {
		const char* msg = dlerror();
		*err = strdup(msg ? msg : "unknown dlopen error");
	}
	return h;
}

static void* lla_sym(void* h, const char* name, char** err) {
	dlerror();
	void* p = dlsym(h, name);
	const char* msg = dlerror();
	if (msg != NULL) {
		*err = strdup(msg);
		return NULL;
	}
	return p;
}

static int lla_close(void* h) { return dlclose(h); }

static uintptr_t lla_create(void* fn) { return ((lla_create_fn)fn)(); }

static int32_t lla_call(void* fn, uintptr_t inst, const uint8_t* in, size_t in_len, uint8_t** out, size_t* out_len) {
	*out = NULL;
	*out_len = 0;
	return ((lla_call_fn)fn)(inst, in, in_len, out, out_len);
}

static void lla_release(void* fn, uint8_t* p, size_t n) {
	if (p == NULL) return;
	if (fn != NULL) ((lla_free_fn)fn)(p, n);
	else free(p);
}

static void lla_destroy(void* fn, uintptr_t inst) {
	if (fn != NULL) ((lla_destroy_fn)fn)(inst);
}
*/
import "C"

import (
	"fmt"
	"math"
	"unsafe"
)

// dynamic is a Library backed by dlopen.
type dynamic struct {
	path    string
	handle  unsafe.Pointer
	create  unsafe.Pointer
	call    unsafe.Pointer
	free    unsafe.Pointer // optional
	destroy unsafe.Pointer // optional
}

// Open loads the shared library at path and resolves the plugin entry
// points. A file that is not a loadable library yields *OpenError; a library
// without the required symbols yields *SymbolError and is closed again.
func Open(path string) (Library, error) {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	var cErr *C.char
	h := C.lla_open(cPath, &cErr)
	if h == nil {
		return nil, &OpenError{Path: path, Reason: takeError(cErr)}
	}

	lib := &dynamic{path: path, handle: h}
	var err error
	if lib.create, err = lib.lookup(SymbolCreate, true); err != nil {
		C.lla_close(h)
		return nil, err
	}
	if lib.call, err = lib.lookup(SymbolCall, true); err != nil {
		C.lla_close(h)
		return nil, err
	}
	lib.free, _ = lib.lookup(SymbolFree, false)
	lib.destroy, _ = lib.lookup(SymbolDestroy, false)
	return lib, nil
}

func (l *dynamic) lookup(name string, required bool) (unsafe.Pointer, error) {
	cName := C.CString(name)
	defer C.free(unsafe.Pointer(cName))

	var cErr *C.char
	p := C.lla_sym(l.handle, cName, &cErr)
	if p == nil {
		reason := takeError(cErr)
		if !required {
			return nil, nil
		}
		return nil, &SymbolError{Path: l.path, Symbol: name, Reason: reason}
	}
	return p, nil
}

func (l *dynamic) Path() string { return l.path }

func (l *dynamic) Create() (Instance, error) {
	if l.handle == nil {
		return 0, ErrClosed
	}
	inst := Instance(C.lla_create(l.create))
	if inst == 0 {
		return 0, ErrCreateFailed
	}
	return inst, nil
}

func (l *dynamic) Call(inst Instance, request []byte) ([]byte, error) {
	if l.handle == nil {
		return nil, ErrClosed
	}
	var in *C.uint8_t
	if len(request) > 0 {
		in = (*C.uint8_t)(unsafe.Pointer(&request[0]))
	}

	var out *C.uint8_t
	var outLen C.size_t
	status := C.lla_call(l.call, C.uintptr_t(inst), in, C.size_t(len(request)), &out, &outLen)
	defer C.lla_release(l.free, out, outLen)

	if status != 0 {
		return nil, &CallError{Status: int32(status)}
	}
	if out == nil {
		return nil, &CallError{Status: -1, Err: fmt.Errorf("plugin returned no reply buffer")}
	}
	if uint64(outLen) > math.MaxInt32 {
		return nil, &CallError{Status: -1, Err: fmt.Errorf("reply of %d bytes exceeds limit", uint64(outLen))}
	}
	return C.GoBytes(unsafe.Pointer(out), C.int(outLen)), nil
}

func (l *dynamic) Destroy(inst Instance) {
	if l.handle == nil {
		return
	}
	C.lla_destroy(l.destroy, C.uintptr_t(inst))
}

func (l *dynamic) Close() error {
	if l.handle == nil {
		return nil
	}
	rc := C.lla_close(l.handle)
	l.handle, l.create, l.call, l.free, l.destroy = nil, nil, nil, nil, nil
	if rc != 0 {
		return fmt.Errorf("dlclose %s: status %d", l.path, int(rc))
	}
	return nil
}

func takeError(cErr *C.char) string {
	if cErr == nil {
		return "unknown error"
	}
	defer C.free(unsafe.Pointer(cErr))
	return C.GoString(cErr)
}
