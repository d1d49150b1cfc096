// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-keyutils.
//
// go-keyutils is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package logger

// noop discards every record. Useful in tests and as a safe default
// when no logger has been wired.
type noop struct{}

// NewNoop returns a Logger that discards all records.
func NewNoop() Logger {
	return noop{}
}

func (noop) Debug(msg string, fields ...Field) {}
func (noop) Info(msg string, fields ...Field)  {}
func (noop) Warn(msg string, fields ...Field)  {}
func (noop) Error(msg string, fields ...Field) {}
func (noop) Fatal(msg string, fields ...Field) {}

func (n noop) With(fields ...Field) Logger { return n }
func (n noop) WithError(err error) Logger  { return n }
