package proxy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

const streamChunkSize = 32 * 1024

// errClientGone reports that the inbound client went away mid-stream.
var errClientGone = errors.New("client disconnected")

// isStreamRequest reports whether the client asked for an incremental
// completion.
func isStreamRequest(path string, body []byte) bool {
	if len(body) == 0 || !strings.HasSuffix(path, "/completions") {
		return false
	}
	return gjson.GetBytes(body, "stream").Bool()
}

func isEventStream(resp *http.Response) bool {
	mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return err == nil && mt == "text/event-stream"
}

func isJSON(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// pipe copies an event stream to the client, flushing after every chunk.
// It returns the bytes written and nil on a clean end, errClientGone when the
// client went away, or the upstream read error otherwise. ctx is the upstream
// request context, cancelled when the inbound client disconnects.
func pipe(ctx context.Context, w http.ResponseWriter, resp *http.Response) (int64, error) {
	h := w.Header()
	copyHeaders(h, resp.Header)
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(resp.StatusCode)

	rc := http.NewResponseController(w)
	rc.Flush()

	var written int64
	buf := make([]byte, streamChunkSize)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			m, werr := w.Write(buf[:n])
			written += int64(m)
			if werr != nil {
				return written, errClientGone
			}
			if err := rc.Flush(); err != nil {
				return written, errClientGone
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			if ctx.Err() != nil {
				return written, errClientGone
			}
			return written, fmt.Errorf("upstream stream: %w", rerr)
		}
	}
}
