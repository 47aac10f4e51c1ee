// Package compileinfoprint is imported by the command line tools for the side
// effect of logging the build they were compiled from to stderr.
package compileinfoprint

import (
	"github.com/sirupsen/logrus"

	"github.com/carbocation/ctlesion/compileinfo"
)

func init() {
	logrus.WithFields(compileinfo.Get().Fields()).Info("Build")
}
