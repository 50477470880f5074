package sdk

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockCloser is a test double that implements io.Closer
type mockCloser struct {
	closeErr   error
	closeCalls int
}

func (m *mockCloser) Close() error {
	m.closeCalls++
	return m.closeErr
}

func TestCloseWithLog_NilCloser(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	CloseWithLog(nil, logger, "test resource")

	assert.Empty(t, logBuf.String(), "should not log for nil closer")
}

func TestCloseWithLog_SuccessfulClose(t *testing.T) {
	closer := &mockCloser{}
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	CloseWithLog(closer, logger, "queue client")

	assert.Equal(t, 1, closer.closeCalls, "should call Close once")
	assert.Empty(t, logBuf.String(), "should not log on successful close")
}

func TestCloseWithLog_CloseError(t *testing.T) {
	expectedErr := errors.New("close failed: connection reset")
	closer := &mockCloser{closeErr: expectedErr}
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))

	CloseWithLog(closer, logger, "JSONL sink")

	assert.Equal(t, 1, closer.closeCalls, "should call Close once")

	logOutput := logBuf.String()
	assert.Contains(t, logOutput, "failed to close resource", "should log failure message")
	assert.Contains(t, logOutput, "JSONL sink", "should include resource name")
	assert.Contains(t, logOutput, "close failed", "should include error message")
	assert.Contains(t, logOutput, "level=WARN", "should log at warning level")
}

func TestCloseWithLog_NilLogger(t *testing.T) {
	closer := &mockCloser{closeErr: errors.New("test error")}

	require.NotPanics(t, func() {
		CloseWithLog(closer, nil, "test resource")
	})

	assert.Equal(t, 1, closer.closeCalls, "should call Close once")
}

func TestCloseWithLog_DeferPattern(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logBuf, nil))
	closer := &mockCloser{closeErr: errors.New("cleanup error")}

	func() {
		defer CloseWithLog(closer, logger, "deferred resource")
	}()

	assert.Equal(t, 1, closer.closeCalls, "should call Close via defer")
	assert.Contains(t, logBuf.String(), "failed to close resource", "should log via defer")
}
