// Command admin inspects a running server over its loopback admin endpoints
// and reads the sqlite index offline.
package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "state":
		getCmd("state", "/admin/v1/state", os.Args[2:])
	case "tuning":
		getCmd("tuning", "/admin/v1/tuning", os.Args[2:])
	case "db":
		dbCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: admin state|tuning [-url URL]")
	fmt.Fprintln(os.Stderr, "       admin db top|audits [-db PATH] [-n N] [-action ACTION]")
}
