// Command vmdump drives the kernel's virtual memory core from a hosted Go
// process, for manual inspection and regression demonstrations outside a
// booted kernel image.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.WithError(err).Error("vmdump failed")
		os.Exit(1)
	}
}
