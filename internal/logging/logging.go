// Package logging configures the commonlog backend shared by the compiler,
// the VM and the command line tools.
package logging

import (
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

const (
	CompilerName = "kestrel.compiler"
	VMName       = "kestrel.vm"
	ReplName     = "kestrel.repl"
	LSPName      = "kestrel.lsp"
	GfxName      = "kestrel.gfx"
)

// Configure sets the global verbosity. 0 keeps only errors, each step up
// admits one more level. An empty path logs to stderr.
func Configure(verbosity int, path string) {
	if path == "" {
		commonlog.Configure(verbosity, nil)
		return
	}
	commonlog.Configure(verbosity, &path)
}

func Compiler() commonlog.Logger { return commonlog.GetLogger(CompilerName) }
func VM() commonlog.Logger       { return commonlog.GetLogger(VMName) }
func Repl() commonlog.Logger     { return commonlog.GetLogger(ReplName) }
func LSP() commonlog.Logger      { return commonlog.GetLogger(LSPName) }
func Gfx() commonlog.Logger      { return commonlog.GetLogger(GfxName) }

// Tracing reports whether debug output is enabled for log.
func Tracing(log commonlog.Logger) bool {
	return log.AllowLevel(commonlog.Debug)
}
