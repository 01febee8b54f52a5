package cmd

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

type progressPrinter struct {
	total    int
	name     string
	out      io.Writer
	mu       sync.Mutex
	ok       int
	fail     int
	findings int
	duration float64
	updates  chan struct{}
	done     chan struct{}
	exited   chan struct{}
	stopOnce sync.Once
}

func newProgressPrinter(out io.Writer, total int, name string) *progressPrinter {
	if total <= 0 {
		total = 1
	}
	return &progressPrinter{
		total:   total,
		name:    name,
		out:     out,
		updates: make(chan struct{}, 1),
		done:    make(chan struct{}),
		exited:  make(chan struct{}),
	}
}

func (p *progressPrinter) Start() {
	go p.loop()
}

func (p *progressPrinter) Increment(success bool, findings int, duration float64) {
	p.mu.Lock()
	if success {
		p.ok++
	} else {
		p.fail++
	}
	p.findings += findings
	p.duration += duration
	p.mu.Unlock()

	select {
	case p.updates <- struct{}{}:
	default:
	}
}

// Stop ends the refresh loop and prints the final line. Start must have
// been called.
func (p *progressPrinter) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
	})
	<-p.exited
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "\r%s\r", strings.Repeat(" ", 80))
	p.print()
	fmt.Fprintln(p.out)
}

func (p *progressPrinter) loop() {
	ticker := time.NewTicker(300 * time.Millisecond)
	defer ticker.Stop()
	defer close(p.exited)

	for {
		select {
		case <-p.updates:
		case <-ticker.C:
		case <-p.done:
			return
		}
		p.mu.Lock()
		p.print()
		p.mu.Unlock()
	}
}

// print must be called with p.mu held.
func (p *progressPrinter) print() {
	completed := p.ok + p.fail
	if completed > p.total {
		p.total = completed
	}

	percent := (float64(completed) / float64(p.total)) * 100
	avg := 0.0
	if completed > 0 {
		avg = p.duration / float64(completed)
	}

	fmt.Fprintf(p.out, "\r[%s] Progress: %d/%d (%.1f%%) OK:%d Fail:%d Findings:%d Avg:%.2fs",
		p.name, completed, p.total, percent, p.ok, p.fail, p.findings, avg)
}
