// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// defaultLogger builds the reactor's default structured logger: a
// stderr-writing stumpy.Event backend behind the logiface facade. See
// DESIGN.md for why this replaces the teacher's homegrown Logger interface
// wholesale rather than keeping it around unused.
func defaultLogger() *logiface.Logger[*stumpy.Event] {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(os.Stderr)),
	)
}

func (r *Reactor) logConstruction() {
	if r.logger == nil {
		return
	}
	r.logger.Info().
		Int("priority_bands", r.nbands).
		Bool("monotonic", r.monotonic).
		Log("reactor constructed")
}

func (r *Reactor) logBackendError(op string, err error) {
	if r.logger == nil {
		return
	}
	r.logger.Err().
		Str("op", op).
		Err(err).
		Log("backend call failed")
}

func (r *Reactor) logSelfPipeWriteError(err error) {
	if r.logger == nil {
		return
	}
	r.logger.Warning().
		Err(err).
		Log("self-pipe write failed")
}

func (r *Reactor) logReinit() {
	if r.logger == nil {
		return
	}
	r.logger.Notice().Log("reactor reinitialized after fork")
}

func (r *Reactor) logContractViolation(msg string) {
	if r.logger == nil {
		return
	}
	r.logger.Err().Log(msg)
}
