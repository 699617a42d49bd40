package main

import (
	"sync"

	"github.com/pterm/pterm"

	"github.com/meigma/gamefiles"
)

// progressBar draws ProgressEvents as a pterm progress bar, starting a new
// bar whenever the stage changes. It is safe for concurrent use.
type progressBar struct {
	mu    sync.Mutex
	bar   *pterm.ProgressbarPrinter
	stage gamefiles.ProgressStage
	shown int
}

func (p *progressBar) update(ev gamefiles.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()

	done, total := ev.FilesDone, ev.FilesTotal
	if ev.Stage == gamefiles.StageWriting {
		done, total = int(ev.BytesDone), int(ev.BytesTotal) //nolint:gosec // archives are under 4 GiB
	}
	if total <= 0 {
		return
	}
	if p.bar == nil || p.stage != ev.Stage {
		p.stopLocked()
		bar, err := pterm.DefaultProgressbar.WithTotal(total).WithTitle(ev.Stage.String()).Start()
		if err != nil {
			return
		}
		p.bar, p.stage, p.shown = bar, ev.Stage, 0
	}
	// Concurrent workers may report out of order.
	if done > p.shown {
		p.bar.Add(done - p.shown)
		p.shown = done
	}
}

func (p *progressBar) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *progressBar) stopLocked() {
	if p.bar != nil {
		_, _ = p.bar.Stop() //nolint:errcheck // display only
		p.bar = nil
	}
}

// progress returns a ProgressFunc and a stop function. Both are no-ops
// when progress is hidden.
func (a *app) progress() (gamefiles.ProgressFunc, func()) {
	if !a.showProgress() {
		return nil, func() {}
	}
	p := &progressBar{}
	return p.update, p.stop
}
