package a3interface

import (
	"os"
	"unsafe"
)

/*
#cgo windows LDFLAGS: -lpsapi
#cgo linux LDFLAGS: -ldl

#ifdef _WIN32
#define WIN32_LEAN_AND_MEAN
#include <windows.h>
#include <libloaderapi.h>
#include <stdlib.h>

static char* fcModulePath() {
    HMODULE hModule = NULL;
    if (!GetModuleHandleExA(GET_MODULE_HANDLE_EX_FLAG_FROM_ADDRESS |
                           GET_MODULE_HANDLE_EX_FLAG_UNCHANGED_REFCOUNT,
                           (LPCTSTR)fcModulePath,
                           &hModule)) {
        return NULL;
    }

    DWORD size = MAX_PATH;
    char* buffer = NULL;
    for (;;) {
        char* grown = (char*)realloc(buffer, size);
        if (!grown) {
            free(buffer);
            return NULL;
        }
        buffer = grown;
        DWORD n = GetModuleFileNameA(hModule, buffer, size);
        if (n == 0) {
            free(buffer);
            return NULL;
        }
        if (n < size) {
            return buffer;
        }
        size *= 2;
    }
}

#elif __linux__

#define _GNU_SOURCE
#include <dlfcn.h>
#include <stdlib.h>
#include <string.h>

static char* fcModulePath() {
    Dl_info info;
    if (dladdr((void*)fcModulePath, &info) == 0 || info.dli_fname == NULL) {
        return NULL;
    }
    return strdup(info.dli_fname);
}

#else

#include <stdlib.h>

static char* fcModulePath() {
    return NULL;
}

#endif
*/
import "C"

// GetModulePath returns the absolute path of the DLL or SO the extension was
// loaded from. When the library path cannot be resolved it falls back to the
// running executable, which is also what a statically linked test binary sees.
func GetModulePath() string {
	p := C.fcModulePath()
	if p == nil {
		exe, err := os.Executable()
		if err != nil {
			return ""
		}
		return exe
	}
	defer C.free(unsafe.Pointer(p))
	return C.GoString(p)
}
