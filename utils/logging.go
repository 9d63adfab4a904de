package utils

import (
	"io"
	"log"
	"os"
)

var (
	Trace   *log.Logger
	Info    *log.Logger
	Fail    *log.Logger
	Warning *log.Logger
	Error   *log.Logger
)

//Init the logging functions with explicit sinks per level
func Init(
	traceHandle io.Writer,
	infoHandle io.Writer,
	warningHandle io.Writer,
	errorHandle io.Writer) {

	Trace = log.New(traceHandle, "[*] ", 0)
	Info = log.New(infoHandle, "[+] ", 0)
	Fail = log.New(infoHandle, "[x] ", 0)
	Warning = log.New(warningHandle, "[WARNING] ", 0)
	Error = log.New(errorHandle, "ERROR: ", log.Ldate|log.Ltime)
}

//InitDefaults sets up logging to stdout/stderr. Trace output is
//discarded unless verbose is set.
func InitDefaults(verbose bool) {
	traceHandle := io.Discard
	if verbose {
		traceHandle = os.Stdout
	}
	Init(traceHandle, os.Stdout, os.Stderr, os.Stderr)
}

func init() {
	//keep the loggers usable for library consumers that never call Init
	InitDefaults(false)
}
