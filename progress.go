package sdfgen

// progressTracker converts per-stage work units into the overall percentage
// reported to the WithProgress callback. It is only used from the goroutine
// running the pipeline.
type progressTracker struct {
	total int
	done  int
	last  int
	fn    func(percent int)
}

func newProgressTracker(total int, fn func(int)) *progressTracker {
	return &progressTracker{total: max(total, 1), last: -1, fn: fn}
}

func (p *progressTracker) start() {
	p.emit(0)
}

// add records n finished units. The reported value stays below 100 until
// finish is called, so 100 always means a completed run.
func (p *progressTracker) add(n int) {
	p.done += n
	p.emit(min(p.done*100/p.total, 99))
}

func (p *progressTracker) finish() {
	p.emit(100)
}

func (p *progressTracker) emit(pct int) {
	if p.fn == nil || pct <= p.last {
		return
	}
	p.last = pct
	p.fn(pct)
}
