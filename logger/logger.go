/***********************************************************************************************************************
 *
 *   MIT License
 *
 *   Copyright (c) 2021 Nicolas JUHEL
 *
 *   Permission is hereby granted, free of charge, to any person obtaining a copy
 *   of this software and associated documentation files (the "Software"), to deal
 *   in the Software without restriction, including without limitation the rights
 *   to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 *   copies of the Software, and to permit persons to whom the Software is
 *   furnished to do so, subject to the following conditions:
 *
 *   The above copyright notice and this permission notice shall be included in all
 *   copies or substantial portions of the Software.
 *
 *   THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 *   IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 *   FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 *   AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 *   LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 *   OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 *   SOFTWARE.
 *
 *
 **********************************************************************************************************************/

package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// modeColor controls ForceColors/DisableColors on the text formatter. Forced
// off by default since the bridge usually runs with its output redirected.
var modeColor = false

// SetColor enables or disables ANSI colors on the text formatter. Has no
// effect on JsonFormat. Takes effect at once on logrus' global formatter,
// and on every Logger built by New afterwards.
func SetColor(enabled bool) {
	modeColor = enabled
	updateFormatter(nilFormat)
}

// Logger wraps a dedicated logrus.Logger instance with a fixed set of base
// Fields merged into every entry it emits. Unlike the package-level
// SetOutput/SetFormat helpers (which act on logrus' global instance), a
// Logger can be scoped to one component, e.g. one Logger per forwarded
// connection carrying that connection's remote address and message id.
type Logger struct {
	log *logrus.Logger
	lvl Level
	fld Fields
}

// New returns a Logger writing to out at the given Level and Format. A nil
// out defaults to os.Stderr.
func New(lvl Level, format Format, out io.Writer) *Logger {
	if out == nil {
		out = os.Stderr
	}

	l := logrus.New()
	l.SetOutput(out)
	l.SetLevel(lvl.Logrus())

	switch format {
	case JsonFormat:
		l.SetFormatter(&logrus.JSONFormatter{DisableTimestamp: false})
	default:
		l.SetFormatter(&logrus.TextFormatter{
			ForceColors:            modeColor,
			DisableColors:          !modeColor,
			DisableLevelTruncation: !modeColor,
		})
	}

	return &Logger{log: l, lvl: lvl, fld: NewFields()}
}

// Logrus returns the underlying *logrus.Logger, for callers that need to
// hand it to a library expecting one directly (e.g. as a net/http server's
// ErrorLog sink).
func (l *Logger) Logrus() *logrus.Logger {
	return l.log
}

// With returns a copy of l whose base fields are merged with add. The
// receiver is left untouched.
func (l *Logger) With(add Fields) *Logger {
	return &Logger{log: l.log, lvl: l.lvl, fld: l.fld.Merge(add)}
}

// SetLevel changes the minimal Level this Logger emits.
func (l *Logger) SetLevel(lvl Level) {
	l.lvl = lvl
	l.log.SetLevel(lvl.Logrus())
}

func (l *Logger) entry() *logrus.Entry {
	return l.log.WithFields(l.fld.Logrus())
}

func (l *Logger) Debug(msg string, fld Fields) {
	l.entry().WithFields(fld.Logrus()).Debug(msg)
}

func (l *Logger) Info(msg string, fld Fields) {
	l.entry().WithFields(fld.Logrus()).Info(msg)
}

func (l *Logger) Warn(msg string, fld Fields) {
	l.entry().WithFields(fld.Logrus()).Warn(msg)
}

func (l *Logger) Error(msg string, fld Fields) {
	l.entry().WithFields(fld.Logrus()).Error(msg)
}

// Fatal logs at fatal severity then terminates the process with os.Exit(1),
// matching the teacher's convention that FatalLevel always exits.
func (l *Logger) Fatal(msg string, fld Fields) {
	l.entry().WithFields(fld.Logrus()).Fatal(msg)
}
