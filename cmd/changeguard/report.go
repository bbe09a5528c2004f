package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/jamesainslie/changeguard/pkg/changeguard/history"
	"github.com/jamesainslie/changeguard/pkg/changeguard/logging"
	"github.com/jamesainslie/changeguard/pkg/changeguard/output"
	"github.com/jamesainslie/changeguard/pkg/changeguard/types"
)

// render writes s to w in the configured output format.
func render(w io.Writer, s *types.Summary) error {
	formatter, err := output.Get(cfg.Output)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := formatter.Format(&buf, s); err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// report renders s, records it in the history and returns errFailed when
// the run did not pass.
func report(w io.Writer, s *types.Summary) error {
	if err := render(w, s); err != nil {
		return err
	}
	recordHistory(s)

	if !s.Passed() {
		return errFailed
	}
	return nil
}

// recordHistory stores s when history is enabled. History problems are
// logged and never change the outcome of a run.
func recordHistory(s *types.Summary) {
	if !cfg.History.Enabled {
		return
	}
	log := logging.Get("cli")

	h, err := openHistory()
	if err != nil {
		log.Warn("history unavailable", "error", err)
		return
	}
	entry, err := h.Record(s)
	if err != nil {
		log.Warn("failed to record run", "error", err)
		return
	}
	log.Debug("run recorded", "id", entry.ID, "dir", h.Dir())
}

// openHistory opens the configured history directory.
func openHistory() (*history.History, error) {
	dir := cfg.History.Path
	if dir == "" {
		dir = history.DefaultDir()
	}
	return history.New(dir)
}
