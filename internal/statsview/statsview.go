// Package statsview publishes runtime graphs of the emulator process
// (goroutines, heap, GC pauses) through go-echarts/statsview. The pprof
// handlers come along on the same listener.
package statsview

import (
	"fmt"
	"io"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

// Address the stats server listens on.
const Address = "localhost:12600"

// Launch starts the server in the background and tells w where to look.
func Launch(w io.Writer) {
	viewer.SetConfiguration(viewer.WithAddr(Address))
	mgr := statsview.New()
	go mgr.Start()
	fmt.Fprintf(w, "runtime stats: http://%s/debug/statsview\n", Address)
}
