package debugpipe

import "log/slog"

// hclogSlogWriter bridges hashicorp/go-hclog's io.Writer-based output sink
// into the process's slog handler, so the debug-pipe manager's own
// operational trace lands in the same rotating log file as everything
// else (§4.18), rather than opening a second logging stack.
type hclogSlogWriter struct{}

func (hclogSlogWriter) Write(p []byte) (int, error) {
	slog.Debug(string(p))
	return len(p), nil
}
