//go:build linux && cgo

package pamstack

/*
#cgo LDFLAGS: -ldl

#include <dlfcn.h>
#include <stdlib.h>
#include <string.h>

// Mirrors of the libpam application structures. Declared locally so the
// build does not need the libpam development headers; the library itself is
// resolved with dlopen at run time.
struct sl_pam_message {
	int         msg_style;
	const char *msg;
};

struct sl_pam_response {
	char *resp;
	int   resp_retcode;
};

typedef int (*sl_conv_fn)(int, struct sl_pam_message **,
	struct sl_pam_response **, void *);

struct sl_pam_conv {
	sl_conv_fn conv;
	void      *appdata_ptr;
};

extern int slConvBridge(int num_msg, struct sl_pam_message **msg,
	struct sl_pam_response **resp, void *appdata_ptr);

static int sl_conv_cb(int num_msg, struct sl_pam_message **msg,
	struct sl_pam_response **resp, void *appdata_ptr) {
	return slConvBridge(num_msg, msg, resp, appdata_ptr);
}

static void sl_init_conv(struct sl_pam_conv *conv, void *appdata_ptr) {
	conv->conv = sl_conv_cb;
	conv->appdata_ptr = appdata_ptr;
}

static int sl_call_start(void *fn, const char *service, const char *user,
	const struct sl_pam_conv *conv, void **handle) {
	return ((int (*)(const char *, const char *, const struct sl_pam_conv *, void **))fn)(
		service, user, conv, handle);
}

static int sl_call_flags(void *fn, void *handle, int flags) {
	return ((int (*)(void *, int))fn)(handle, flags);
}
*/
import "C"

import (
	"fmt"
	"runtime/cgo"
	"sync"
	"unsafe"
)

// libpam holds the dynamically resolved entry points of the native stack.
type libpam struct {
	start    unsafe.Pointer // pam_start
	auth     unsafe.Pointer // pam_authenticate
	acctMgmt unsafe.Pointer // pam_acct_mgmt
	end      unsafe.Pointer // pam_end
}

// soNames are tried in order. Hosts without the development package only
// ship the versioned name.
var soNames = []string{"libpam.so.0", "libpam.so"}

var (
	loadOnce sync.Once
	loaded   *libpam
)

func load() *libpam {
	loadOnce.Do(func() {
		var handle unsafe.Pointer
		for _, name := range soNames {
			cname := C.CString(name)
			handle = C.dlopen(cname, C.RTLD_NOW)
			C.free(unsafe.Pointer(cname))
			if handle != nil {
				break
			}
		}
		if handle == nil {
			return
		}
		lib := &libpam{
			start:    dlsym(handle, "pam_start"),
			auth:     dlsym(handle, "pam_authenticate"),
			acctMgmt: dlsym(handle, "pam_acct_mgmt"),
			end:      dlsym(handle, "pam_end"),
		}
		if lib.start == nil || lib.auth == nil || lib.acctMgmt == nil || lib.end == nil {
			C.dlclose(handle)
			return
		}
		loaded = lib
	})
	return loaded
}

func dlsym(handle unsafe.Pointer, name string) unsafe.Pointer {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return C.dlsym(handle, cname)
}

// NativeRuntime binds the host libpam.
type NativeRuntime struct{}

func NewNativeRuntime() *NativeRuntime { return &NativeRuntime{} }

// Available reports whether libpam could be loaded and all four lifecycle
// symbols resolved. The result is computed once per process.
func (*NativeRuntime) Available() bool { return load() != nil }

// Start opens a transaction for service and username. The returned session
// holds a C copy of the secret for the conversation callback; the copy is
// zeroed and freed when the session is closed.
func (*NativeRuntime) Start(service, username string, secret []byte) (Session, Status) {
	lib := load()
	if lib == nil {
		return nil, ErrAbort
	}

	conv := newConversation(secret)

	// The pam_conv structure is retained by libpam for the lifetime of
	// the handle, so it cannot live in Go memory.
	cconv := (*C.struct_sl_pam_conv)(C.calloc(1, C.sizeof_struct_sl_pam_conv))
	if cconv == nil {
		conv.wipe()
		return nil, ErrBuf
	}
	h := cgo.NewHandle(conv)
	C.sl_init_conv(cconv, unsafe.Pointer(uintptr(h)))

	cService := C.CString(service)
	cUser := C.CString(username)
	defer C.free(unsafe.Pointer(cService))
	defer C.free(unsafe.Pointer(cUser))

	var handle unsafe.Pointer
	status := Status(C.sl_call_start(lib.start, cService, cUser, cconv, &handle))
	if status != Success {
		h.Delete()
		conv.wipe()
		C.free(unsafe.Pointer(cconv))
		return nil, status
	}

	return &nativeSession{lib: lib, handle: handle, cconv: cconv, conv: conv, h: h}, Success
}

type nativeSession struct {
	lib    *libpam
	handle unsafe.Pointer
	cconv  *C.struct_sl_pam_conv
	conv   *conversation
	h      cgo.Handle
	closed bool
}

func (s *nativeSession) Authenticate() Status {
	return Status(C.sl_call_flags(s.lib.auth, s.handle, 0))
}

func (s *nativeSession) AccountValid() Status {
	return Status(C.sl_call_flags(s.lib.acctMgmt, s.handle, 0))
}

func (s *nativeSession) Close(last Status) error {
	if s.closed {
		return nil
	}
	s.closed = true

	status := Status(C.sl_call_flags(s.lib.end, s.handle, C.int(last)))
	s.h.Delete()
	s.conv.wipe()
	C.free(unsafe.Pointer(s.cconv))
	if status != Success {
		return fmt.Errorf("pam_end: %s", status)
	}
	return nil
}

// conversation holds the secret as a C string so the callback can duplicate
// it without touching Go memory, and so it can be wiped in place once the
// transaction no longer needs it.
type conversation struct {
	csecret *C.char
	clen    C.size_t
}

func newConversation(secret []byte) *conversation {
	return &conversation{
		csecret: C.CString(string(secret)),
		clen:    C.size_t(len(secret)),
	}
}

func (c *conversation) wipe() {
	if c.csecret == nil {
		return
	}
	if c.clen > 0 {
		C.memset(unsafe.Pointer(c.csecret), 0, c.clen)
	}
	C.free(unsafe.Pointer(c.csecret))
	c.csecret = nil
}

// slConvBridge is the conversation callback invoked by libpam from inside
// pam_authenticate, once per prompt or once for a batch of prompts.
//
//export slConvBridge
func slConvBridge(numMsg C.int, msg **C.struct_sl_pam_message, resp **C.struct_sl_pam_response, appdata unsafe.Pointer) C.int {
	conv, ok := cgo.Handle(uintptr(appdata)).Value().(*conversation)
	if !ok || conv == nil || conv.csecret == nil {
		*resp = nil
		return C.int(ErrConv)
	}
	return conv.respond(numMsg, msg, resp)
}

func (c *conversation) respond(numMsg C.int, msg **C.struct_sl_pam_message, out **C.struct_sl_pam_response) C.int {
	// The protocol allows an empty batch; answer it without allocating.
	if numMsg <= 0 {
		*out = nil
		return C.int(Success)
	}

	replies := newResponseArray(int(numMsg))
	if replies == nil {
		*out = nil
		return C.int(ErrConv)
	}

	prompts := unsafe.Slice(msg, int(numMsg))
	for i, m := range prompts {
		switch Style(m.msg_style) {
		case PromptEchoOff, PromptEchoOn:
			// Each slot needs its own copy: libpam frees every
			// response string independently.
			dup := C.strdup(c.csecret)
			if dup == nil {
				// Partial success is never returned. Free
				// everything written so far and report a
				// conversation error.
				replies.release()
				*out = nil
				return C.int(ErrConv)
			}
			replies.set(i, dup)
		default:
			// Error and info messages take no answer; the slot
			// stays zeroed from calloc.
		}
	}

	*out = replies.transfer()
	return C.int(Success)
}

// responseArray owns a calloc'd pam_response array until ownership is
// transferred to libpam. Exactly one of release or transfer must be called;
// after transfer the array and every string in it belong to libpam.
type responseArray struct {
	ptr   *C.struct_sl_pam_response
	slots []C.struct_sl_pam_response
}

func newResponseArray(n int) *responseArray {
	p := C.calloc(C.size_t(n), C.sizeof_struct_sl_pam_response)
	if p == nil {
		return nil
	}
	arr := (*C.struct_sl_pam_response)(p)
	return &responseArray{ptr: arr, slots: unsafe.Slice(arr, n)}
}

func (r *responseArray) set(i int, resp *C.char) {
	r.slots[i].resp = resp
	r.slots[i].resp_retcode = 0
}

func (r *responseArray) release() {
	for i := range r.slots {
		if r.slots[i].resp != nil {
			C.free(unsafe.Pointer(r.slots[i].resp))
		}
	}
	C.free(unsafe.Pointer(r.ptr))
	r.ptr = nil
	r.slots = nil
}

func (r *responseArray) transfer() *C.struct_sl_pam_response {
	p := r.ptr
	r.ptr = nil
	r.slots = nil
	return p
}
