package client

import "io"

// ProgressFunc receives upload progress as a percentage from 0 to 100.
type ProgressFunc func(percent int)

// progressReader reports whole-percent progress as it is read. Reads happen
// on a single goroutine, so no locking is needed; the callback fires only
// when the percentage advances.
type progressReader struct {
	r          io.Reader
	total      int64
	read       int64
	lastReport int
	onProgress ProgressFunc
}

func newProgressReader(r io.Reader, total int64, onProgress ProgressFunc) *progressReader {
	return &progressReader{r: r, total: total, lastReport: -1, onProgress: onProgress}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if p.onProgress != nil && p.total > 0 {
		if percent := int(p.read * 100 / p.total); percent != p.lastReport {
			p.lastReport = percent
			p.onProgress(percent)
		}
	}
	return n, err
}
