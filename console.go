package gojabridge

import (
	"github.com/joeycumines/logiface"
)

// consolePrinter writes console output through the instance logger.
type consolePrinter struct {
	logger   *logiface.Logger[logiface.Event]
	instance uint64
}

func (p *consolePrinter) Log(s string) {
	p.logger.Info().
		Uint64(`instance`, p.instance).
		Log(s)
}

func (p *consolePrinter) Warn(s string) {
	p.logger.Warning().
		Uint64(`instance`, p.instance).
		Log(s)
}

func (p *consolePrinter) Error(s string) {
	p.logger.Err().
		Uint64(`instance`, p.instance).
		Log(s)
}
