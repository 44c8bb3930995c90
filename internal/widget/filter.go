// Package widget rewrites htmlwidget placeholders in served HTML.
package widget

import (
	"bytes"
	"encoding/base64"
	"io"
	"regexp"

	"go.uber.org/zap"
)

const (
	containerBegin = "<!-- htmlwidget-container-begin -->"
	containerEnd   = "<!-- htmlwidget-container-end -->"

	containerBeginTag = `<div id="htmlwidget_container">`
	containerEndTag   = `</div>`
)

var markerRe = regexp.MustCompile(
	regexp.QuoteMeta(containerBegin) + "|" +
		regexp.QuoteMeta(containerEnd) + "|" +
		`<!-- htmlwidget-sizing-policy-base64 (\S+) -->`)

const (
	readChunk = 32 * 1024
	// maxHold caps how much of a possible partial marker is retained between reads.
	maxHold = 1 << 20
)

// Filter is an io.Reader that rewrites widget markers while streaming.
type Filter struct {
	src    io.Reader
	logger *zap.Logger

	pending []byte // unread input not yet scanned for markers
	out     []byte // rewritten bytes ready to be returned
	buf     []byte
	eof     bool
	err     error
}

// NewFilter wraps r. Decode failures in sizing markers are logged to logger.
func NewFilter(r io.Reader, logger *zap.Logger) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{src: r, logger: logger, buf: make([]byte, readChunk)}
}

func (f *Filter) Read(p []byte) (int, error) {
	for len(f.out) == 0 {
		if f.eof {
			if f.err != nil {
				return 0, f.err
			}
			return 0, io.EOF
		}
		f.fill()
	}
	n := copy(p, f.out)
	f.out = f.out[n:]
	return n, nil
}

func (f *Filter) fill() {
	n, err := f.src.Read(f.buf)
	if n > 0 {
		f.pending = append(f.pending, f.buf[:n]...)
	}
	if err != nil {
		f.eof = true
		if err != io.EOF {
			f.err = err
		}
	}

	hold := 0
	if !f.eof {
		hold = holdLen(f.pending)
	}
	ready := f.pending[:len(f.pending)-hold]
	if len(ready) > 0 {
		f.out = append(f.out, f.rewrite(ready)...)
	}
	f.pending = append(f.pending[:0], f.pending[len(f.pending)-hold:]...)
}

// holdLen is the length of the tail that could still grow into a marker: it starts at
// the first '<' after the last '>' and markers never contain '>' before their end.
func holdLen(b []byte) int {
	start := bytes.LastIndexByte(b, '>') + 1
	i := bytes.IndexByte(b[start:], '<')
	if i < 0 {
		return 0
	}
	n := len(b) - (start + i)
	if n > maxHold {
		return 0
	}
	return n
}

func (f *Filter) rewrite(b []byte) []byte {
	return markerRe.ReplaceAllFunc(b, func(m []byte) []byte {
		switch string(m) {
		case containerBegin:
			return []byte(containerBeginTag)
		case containerEnd:
			return []byte(containerEndTag)
		}
		sub := markerRe.FindSubmatch(m)
		if len(sub) < 2 {
			return nil
		}
		return f.decode(sub[1])
	})
}

func (f *Filter) decode(token []byte) []byte {
	out, err := base64.StdEncoding.DecodeString(string(token))
	if err == nil {
		return out
	}
	if out, rawErr := base64.RawStdEncoding.DecodeString(string(token)); rawErr == nil {
		return out
	}
	f.logger.Warn("decode htmlwidget sizing policy failed", zap.Error(err))
	return nil
}
