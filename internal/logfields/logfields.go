package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRepo       = "repository"
	KeyDocType    = "doc_type"
	KeyTarget     = "target"
	KeyLanguage   = "language"
	KeyCycle      = "cycle"
	KeyCommit     = "commit"
	KeyScore      = "score"
	KeyDurationMS = "duration_ms"
	KeyTokens     = "tokens"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Repository(r string) slog.Attr   { return slog.String(KeyRepo, r) }
func DocType(t string) slog.Attr      { return slog.String(KeyDocType, t) }
func Target(t string) slog.Attr       { return slog.String(KeyTarget, t) }
func Language(l string) slog.Attr     { return slog.String(KeyLanguage, l) }
func Cycle(n int) slog.Attr           { return slog.Int(KeyCycle, n) }
func Commit(c string) slog.Attr       { return slog.String(KeyCommit, c) }
func Score(s float64) slog.Attr       { return slog.Float64(KeyScore, s) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Tokens(n int) slog.Attr          { return slog.Int(KeyTokens, n) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
