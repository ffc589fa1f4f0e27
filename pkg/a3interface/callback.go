package a3interface

/*
#include <stdlib.h>

typedef int (*extensionCallback)(char const *name, char const *function, char const *data);

static inline int runExtensionCallback(extensionCallback fnc, char const *name, char const *function, char const *data)
{
	return fnc(name, function, data);
}
*/
import "C"

import (
	"errors"
	"sync"
	"unsafe"
)

// ErrNoCallback is returned when Arma has not registered a callback yet.
var ErrNoCallback = errors.New("extension callback not registered")

var (
	callbackMu  sync.RWMutex
	callbackFnc C.extensionCallback
)

// called by Arma once after load to hand over the ExtensionCallback event hook
//
//export RVExtensionRegisterCallback
func RVExtensionRegisterCallback(fnc C.extensionCallback) {
	callbackMu.Lock()
	callbackFnc = fnc
	callbackMu.Unlock()
}

// WriteArmaCallback raises an ExtensionCallback event in Arma. A single data
// value is sent as is; several values are sent as an array.
func WriteArmaCallback(extensionName, function string, data ...string) error {
	callbackMu.RLock()
	fnc := callbackFnc
	callbackMu.RUnlock()
	if fnc == nil {
		return ErrNoCallback
	}

	payload := callbackPayload(data)

	name := C.CString(extensionName)
	defer C.free(unsafe.Pointer(name))
	fn := C.CString(function)
	defer C.free(unsafe.Pointer(fn))
	param := C.CString(payload)
	defer C.free(unsafe.Pointer(param))

	C.runExtensionCallback(fnc, name, fn, param)
	return nil
}

func callbackPayload(data []string) string {
	switch len(data) {
	case 0:
		return ""
	case 1:
		return data[0]
	default:
		out, err := encodeValue(data)
		if err != nil {
			return ""
		}
		return out
	}
}
