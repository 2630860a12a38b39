package errors

import (
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindTimeout, KindOf(Timeout("/local/aic_tlp/A.mp4", time.Minute)))
	assert.Equal(t, KindResolution, KindOf(Resolution("listing unreachable", io.EOF)))
	assert.Equal(t, KindConnection, KindOf(Connection("dropped", nil)))
	assert.Equal(t, KindDownload, KindOf(Download("http://x/y.mp4", io.EOF)))
	assert.Equal(t, KindConfig, KindOf(Config("host is required")))
	assert.Equal(t, KindUnknown, KindOf(io.EOF))
	assert.Equal(t, KindUnknown, KindOf(nil))
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("running export: %w", Download("http://x/y.mp4", io.EOF))
	assert.Equal(t, KindDownload, KindOf(err))
}

func TestCauseIsCarried(t *testing.T) {
	err := Download("http://x/y.mp4", io.EOF)
	assert.True(t, Is(err, io.EOF))
	assert.Contains(t, err.Error(), "http://x/y.mp4")
	assert.Contains(t, err.Error(), io.EOF.Error())
}

func TestMessageWithoutCause(t *testing.T) {
	err := Timeout("/a/b.mp4", 30*time.Second)
	assert.Equal(t, "timed out after 30s waiting for /a/b.mp4", err.Error())
}
