// Package pb renders terminal progress bars for long-running commands.
package pb

import (
	"fmt"
	"io"
	"sync"

	humanize "github.com/dustin/go-humanize"
	mpbv8 "github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// ProgressBar is a set of named progress bars.
type ProgressBar struct {
	mu   sync.RWMutex
	mpb  *mpbv8.Progress
	bars map[string]*progressBar
}

type progressBar struct {
	*mpbv8.Bar
	size int64
	msg  string
}

// NewProgressBar creates a progress bar container writing to out.
// A disabled container accepts every call but draws nothing.
func NewProgressBar(out io.Writer, disabled bool) *ProgressBar {
	if disabled {
		out = io.Discard
	}
	return &ProgressBar{
		mpb:  mpbv8.New(mpbv8.WithWidth(60), mpbv8.WithOutput(out)),
		bars: make(map[string]*progressBar),
	}
}

// Add adds a bar of the given size and returns reader wrapped so that reads
// advance it. A name that already has a bar returns reader unchanged.
func (p *ProgressBar) Add(prompt, name string, size int64, reader io.Reader) io.Reader {
	bar := p.bar(prompt, name, size)
	if bar == nil {
		return reader
	}
	return bar.ProxyReader(reader)
}

// Track adds a bar of the given size and returns a function that moves it
// to an absolute position.
func (p *ProgressBar) Track(prompt, name string, size int64) func(current int64) {
	bar := p.bar(prompt, name, size)
	if bar == nil {
		return func(int64) {}
	}
	return bar.SetCurrent
}

func (p *ProgressBar) bar(prompt, name string, size int64) *mpbv8.Bar {
	p.mu.RLock()
	oldBar := p.bars[name]
	p.mu.RUnlock()

	if oldBar != nil {
		return nil
	}

	bar := p.mpb.New(size,
		mpbv8.BarStyle(),
		mpbv8.BarFillerOnComplete("|"),
		mpbv8.PrependDecorators(
			decor.Any(func(decor.Statistics) string {
				p.mu.RLock()
				defer p.mu.RUnlock()

				if b, ok := p.bars[name]; ok && b.msg != "" {
					return b.msg
				}
				return fmt.Sprintf("%s %s", prompt, name)
			}, decor.WCSyncSpaceR),
		),
		mpbv8.AppendDecorators(
			decor.OnComplete(decor.Counters(decor.SizeB1024(0), "% .2f / % .2f"), humanize.IBytes(uint64(max(size, 0)))),
			decor.OnComplete(decor.Name(" | ", decor.WCSyncWidthR), " | "),
			decor.OnComplete(
				decor.AverageSpeed(decor.SizeB1024(0), "% .2f", decor.WCSyncWidthR), "done",
			),
		),
	)

	p.mu.Lock()
	p.bars[name] = &progressBar{Bar: bar, size: size}
	p.mu.Unlock()

	return bar
}

// Complete marks the named bar as done and replaces its label with msg.
func (p *ProgressBar) Complete(name, msg string) {
	p.mu.Lock()
	bar, ok := p.bars[name]
	if ok {
		bar.msg = msg
	}
	p.mu.Unlock()

	// Decorators take the read lock, so the bar is advanced without it.
	if ok {
		bar.SetCurrent(bar.size)
	}
}

// Abort removes the named bar without completing it.
func (p *ProgressBar) Abort(name string) {
	p.mu.RLock()
	bar, ok := p.bars[name]
	p.mu.RUnlock()

	if ok {
		bar.Abort(false)
	}
}

// Stop waits for every bar to finish rendering.
func (p *ProgressBar) Stop() {
	p.mpb.Shutdown()
}
