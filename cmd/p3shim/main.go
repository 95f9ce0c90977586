// Copyright 2014 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command p3shim builds as a cgo c-shared object meant to be named
// something like libp3shim.so and dropped into LD_PRELOAD. Every exported
// function here binds to a libc name the dynamic linker resolves before
// the real libc symbol; the logic behind each one lives in
// internal/shim, which knows nothing about C calling convention. This
// package is the thin, mechanical translation layer between the two:
// converting *C.char to Go strings, unix.Errno values to a libc-style
// int-return-plus-errno-global protocol, and back.
//
// Go has no equivalent of LD_PRELOAD interposition on its own; building a
// shared object with //export functions and relying on the dynamic
// linker's normal symbol resolution is the standard way to get libc-name
// binding out of a cgo program.
//
// Build with:
//
//	CGO_ENABLED=1 go build -buildmode=c-shared -o libp3shim.so ./cmd/p3shim
//
// and run a target process under it with:
//
//	LD_PRELOAD=$PWD/libp3shim.so ./some-program
package main

/*
#include <errno.h>
#include <pthread.h>
#include <stdint.h>

extern void p3shimReleaseCurrentThread();
extern void p3shimShutdownAll();

// p3shim_tls_destructor fires when a pthread that has called into the shim
// at least once exits. It is the portable substitute for a per-thread
// cleanup hook: Go's goroutine-exit has the wrong lifetime here, since one
// OS thread may run many goroutines and interposed calls arrive pinned to
// whichever OS thread the intercepted C code happens to be running on.
static void p3shim_tls_destructor(void *arg) {
    p3shimReleaseCurrentThread();
}

static pthread_key_t p3shim_key;
static pthread_once_t p3shim_key_once = PTHREAD_ONCE_INIT;

static void p3shim_make_key(void) {
    pthread_key_create(&p3shim_key, p3shim_tls_destructor);
}

// p3shim_register_thread arms the destructor for the calling thread the
// first time it enters any interposed entry point. Every exported function
// below calls this before doing anything else.
static void p3shim_register_thread(void) {
    pthread_once(&p3shim_key_once, p3shim_make_key);
    if (pthread_getspecific(p3shim_key) == NULL) {
        pthread_setspecific(p3shim_key, (void *)1);
    }
}

__attribute__((destructor))
static void p3shim_process_teardown(void) {
    p3shimShutdownAll();
}
*/
import "C"

import (
	"github.com/catabozan/p3-syscall-server/internal/shim"
	"golang.org/x/sys/unix"
)

// main is required by the c-shared build mode but is never invoked; the
// process that loads this as a shared object has its own entry point.
func main() {}

//export p3shimReleaseCurrentThread
func p3shimReleaseCurrentThread() {
	shim.ReleaseThread(unix.Gettid())
}

//export p3shimShutdownAll
func p3shimShutdownAll() {
	shim.Shutdown()
}

func registerThread() {
	C.p3shim_register_thread()
}

// setErrno mirrors the libc convention: on success return result, on
// failure set the calling thread's errno and return -1.
func setErrno(result int32, errno int32) C.int {
	if errno != 0 {
		C.errno = C.int(errno)
		return -1
	}
	return C.int(result)
}
