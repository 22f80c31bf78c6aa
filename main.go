package main

import (
	"runtime"

	"github.com/andresmejia3/facetrail/cmd"
)

func init() {
	// OpenCV windows must be driven from the main thread
	runtime.LockOSThread()
}

func main() {
	cmd.Execute()
}
