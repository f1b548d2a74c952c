package burst

import (
	"archive/tar"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// SessionRecord is the PAX record carrying the capture session id.
const SessionRecord = "RTLOOK.session"

// Writer records bursts as entries of a tar archive, one encoded burst per
// entry.
type Writer struct {
	w        *tar.Writer
	session  string
	sequence int
	buf      []byte
}

func NewWriter(w io.Writer, session string) *Writer {
	return &Writer{
		w:        tar.NewWriter(w),
		session:  session,
		sequence: 1,
	}
}

func (tw *Writer) Write(b *Burst) (err error) {
	tw.buf, err = AppendEncode(tw.buf[:0], b)
	if err != nil {
		return errors.Wrap(err, "encode burst")
	}

	hdr := &tar.Header{
		Name:     fmt.Sprintf("%04d-%d.burst", tw.sequence, b.Position),
		Mode:     0644,
		Size:     int64(len(tw.buf)),
		ModTime:  time.Now(),
		Typeflag: tar.TypeReg,
	}
	if tw.session != "" {
		hdr.Format = tar.FormatPAX
		hdr.PAXRecords = map[string]string{SessionRecord: tw.session}
	}
	tw.sequence++

	if err := tw.w.WriteHeader(hdr); err != nil {
		return errors.Wrap(err, "write tar header")
	}
	if _, err := tw.w.Write(tw.buf); err != nil {
		return errors.Wrap(err, "write tar contents")
	}

	return tw.w.Flush()
}

// Close writes the archive trailer. It does not close the underlying
// writer.
func (tw *Writer) Close() error {
	return tw.w.Close()
}

// Reader iterates the bursts of an archive written by Writer.
type Reader struct {
	r       *tar.Reader
	session string
	name    string
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: tar.NewReader(r)}
}

// Read returns the next burst, or io.EOF after the last one. Entries not
// named *.burst are skipped.
func (tr *Reader) Read() (*Burst, error) {
	for {
		hdr, err := tr.r.Next()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, errors.Wrap(err, "read tar header")
		}

		if !hdr.FileInfo().Mode().IsRegular() || !strings.HasSuffix(hdr.Name, ".burst") {
			continue
		}
		if hdr.Size > maxPayload {
			return nil, errors.Wrapf(ErrCorrupt, "entry %s: %d bytes", hdr.Name, hdr.Size)
		}

		buf := make([]byte, hdr.Size)
		if _, err := io.ReadFull(tr.r, buf); err != nil {
			return nil, errors.Wrapf(err, "read entry %s", hdr.Name)
		}

		tr.name = path.Base(hdr.Name)
		if s, ok := hdr.PAXRecords[SessionRecord]; ok {
			tr.session = s
		}

		b, err := Decode(buf)
		if err != nil {
			return nil, errors.Wrapf(err, "entry %s", hdr.Name)
		}
		return b, nil
	}
}

// Name returns the entry name of the most recently read burst.
func (tr *Reader) Name() string { return tr.name }

// Session returns the session id recorded with the most recently read
// burst, if any.
func (tr *Reader) Session() string { return tr.session }
