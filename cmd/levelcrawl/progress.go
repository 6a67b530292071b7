package main

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"

	"github.com/amosWeiskopf/levelcrawl/internal/models"
)

// progressObserver draws one bar per level. The crawler calls it from a
// single goroutine.
type progressObserver struct {
	out    io.Writer
	bar    *progressbar.ProgressBar
	failed int
}

func newProgressObserver(out io.Writer) *progressObserver {
	return &progressObserver{out: out}
}

func (p *progressObserver) LevelStarted(depth, size int) {
	p.failed = 0
	p.bar = progressbar.NewOptions(size,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription(fmt.Sprintf("depth %d", depth)),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

func (p *progressObserver) ResultReceived(result models.FetchResult) {
	if p.bar == nil {
		return
	}
	if !result.Succeeded {
		p.failed++
		p.bar.Describe(fmt.Sprintf("depth %d (%d failed)", result.Depth, p.failed))
	}
	_ = p.bar.Add(1)
}

func (p *progressObserver) LevelFinished(summary models.LevelSummary) {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	fmt.Fprintf(p.out, "\ndepth %d: %d fetched, %d failed, %d links accepted\n",
		summary.Depth, summary.Succeeded, summary.Failed, summary.Accepted)
	p.bar = nil
}
