/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/mattn/go-isatty"
)

// progress shows the current pipeline stage on an interactive stderr
type progress struct {
	s *spinner.Spinner
}

func newProgress(f *os.File) *progress {
	if !isatty.IsTerminal(f.Fd()) {
		return &progress{}
	}
	return &progress{s: spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(f))}
}

// Update switches the spinner to stage; an empty stage stops it
func (p *progress) Update(stage string) {
	if p.s == nil {
		return
	}
	if stage == "" {
		p.Stop()
		return
	}
	p.s.Lock()
	p.s.Suffix = " " + stage + "..."
	p.s.Unlock()
	if !p.s.Active() {
		p.s.Start()
	}
}

func (p *progress) Stop() {
	if p.s != nil && p.s.Active() {
		p.s.Stop()
	}
}
