package core

import (
	"io"
	"os"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	crashMu     sync.Mutex
	crashHooks  []func()
	crashLogger = logrus.StandardLogger()

	// exit is replaced in tests
	exit = os.Exit
)

// SetCrashLogger routes crash reports to log
func SetCrashLogger(log *logrus.Logger) {
	crashMu.Lock()
	defer crashMu.Unlock()
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	crashLogger = log
}

// OnCrash registers fn to run before the crash report, e.g. restoring the terminal
// Hooks run in registration order
func OnCrash(fn func()) {
	crashMu.Lock()
	defer crashMu.Unlock()
	crashHooks = append(crashHooks, fn)
}

// HandleCrash runs the crash hooks, logs r with its stack trace and exits with status 1
func HandleCrash(r any) {
	if r == nil {
		return
	}

	crashMu.Lock()
	hooks := append([]func(){}, crashHooks...)
	log := crashLogger
	crashMu.Unlock()

	for _, hook := range hooks {
		runHook(hook)
	}

	log.WithFields(logrus.Fields{
		"panic": r,
		"stack": string(debug.Stack()),
	}).Error("crash detected")

	exit(1)
}

// runHook isolates a failing hook so the report is still written
func runHook(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

// Go runs fn in a new goroutine with panic recovery
// Use this instead of the 'go' keyword so crash hooks run before exit
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				HandleCrash(r)
			}
		}()
		fn()
	}()
}
