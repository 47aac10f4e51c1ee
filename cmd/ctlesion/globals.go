package main

import (
	"sync"

	"cloud.google.com/go/storage"
	"github.com/sirupsen/logrus"

	"github.com/carbocation/ctlesion/config"
	"github.com/carbocation/ctlesion/findings"
	"github.com/carbocation/ctlesion/patient"
	"github.com/carbocation/ctlesion/session"
)

type Global struct {
	log           logger
	entry         logrus.FieldLogger
	storageClient *storage.Client

	Site    string
	Company string

	Config   *config.Config
	Sessions *session.Manager

	// Findings is nil when the findings log is disabled.
	Findings *findings.Store

	m        sync.RWMutex
	registry *patient.Registry
	cases    []patient.Case
}

func (g *Global) Cases() []patient.Case {
	g.m.RLock()
	defer g.m.RUnlock()

	return g.cases
}

func (g *Global) Registry() *patient.Registry {
	g.m.RLock()
	defer g.m.RUnlock()

	return g.registry
}

// RefreshCases rescans the dataset folder.
func (g *Global) RefreshCases() []patient.Case {
	g.m.Lock()
	defer g.m.Unlock()

	g.cases = patient.Catalog(g.Config.Data.DatasetDir, g.registry)

	return g.cases
}

type logger interface {
	Print(v ...interface{})
	Printf(format string, v ...interface{})
	Println(v ...interface{})
}
