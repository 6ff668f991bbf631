// SPDX-License-Identifier: MIT
package transport

import (
	applog "cqtscope/internal/log"
)

// LoggingTransport implements the Transport interface by logging a one
// line description of each message at debug level.
type LoggingTransport struct {
	log *applog.Logger
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	lt := &LoggingTransport{log: applog.Named("LogTransport")}
	lt.log.Infof("Using LoggingTransport")
	return lt
}

// Send logs the received data.
func (lt *LoggingTransport) Send(data any) error {
	switch msg := data.(type) {
	case *SpectrumMessage:
		lt.log.Debugf("cqt seq=%d bins=%d peak=%d (%.1f Hz)", msg.Seq, len(msg.Magnitudes), msg.Peak, msg.PeakHz)
	default:
		lt.log.Debugf("%T: %+v", data, data)
	}
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	lt.log.Debugf("Close called")
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
