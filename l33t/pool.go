package l33t

import (
	"io"
	"sync"

	"github.com/klauspost/compress/flate"
)

// Writers are pooled per level; index 0 is flate.HuffmanOnly.
var writerPools [flate.BestCompression - flate.HuffmanOnly + 1]sync.Pool

var readerPool sync.Pool

// getWriter returns a deflate writer for level targeting w, plus a release
// function that returns it to the pool.
func getWriter(w io.Writer, level int) (*flate.Writer, func(), error) {
	pool := &writerPools[level-flate.HuffmanOnly]
	if fw, ok := pool.Get().(*flate.Writer); ok {
		fw.Reset(w)
		return fw, func() {
			fw.Reset(io.Discard)
			pool.Put(fw)
		}, nil
	}
	fw, err := flate.NewWriter(w, level)
	if err != nil {
		return nil, nil, err
	}
	return fw, func() {
		fw.Reset(io.Discard)
		pool.Put(fw)
	}, nil
}

// getReader returns an inflater reading from r, plus a release function.
func getReader(r io.Reader) (io.ReadCloser, func()) {
	if fr, ok := readerPool.Get().(io.ReadCloser); ok {
		if rs, ok := fr.(flate.Resetter); ok && rs.Reset(r, nil) == nil {
			return fr, func() { readerPool.Put(fr) }
		}
	}
	fr := flate.NewReader(r)
	return fr, func() { readerPool.Put(fr) }
}
