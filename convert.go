package gamefiles

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/meigma/gamefiles/internal/atomicfile"
	"github.com/meigma/gamefiles/internal/stream"
	"github.com/meigma/gamefiles/l33t"
	"github.com/meigma/gamefiles/xmb"
)

// XMBFileToXML renders the XMB document at in as XML text at out.
// An input wrapped in a l33t container is unwrapped first. out is
// replaced atomically.
func XMBFileToXML(ctx context.Context, in, out string) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	if l33t.IsCompressed(data) {
		var buf bytes.Buffer
		if _, err := l33t.Decode(ctx, &buf, bytes.NewReader(data)); err != nil {
			return fmt.Errorf("%s: %w", in, err)
		}
		data = buf.Bytes()
	}
	doc, err := xmb.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}
	return atomicfile.Write(out, func(w io.Writer) error {
		bw := bufio.NewWriterSize(w, stream.BufferSize)
		if err := doc.WriteXML(bw); err != nil {
			return err
		}
		return bw.Flush()
	})
}

// XMLFileToXMB encodes the XML document at in as XMB at out. out is
// replaced atomically.
func XMLFileToXMB(ctx context.Context, in, out string) error {
	f, err := os.Open(in)
	if err != nil {
		return err
	}
	defer f.Close()

	doc, err := xmb.ParseXML(&stream.ContextReader{Ctx: ctx, R: bufio.NewReaderSize(f, stream.BufferSize)})
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}
	data, err := doc.MarshalBinary()
	if err != nil {
		return err
	}
	return atomicfile.WriteBytes(out, data)
}
