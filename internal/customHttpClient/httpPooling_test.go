package customHttpClient

import (
	"testing"
	"time"
)

func TestNewClientSharesTransport(t *testing.T) {
	a := NewClient(time.Second)
	b := NewClient(0)

	if a.Transport != b.Transport {
		t.Error("expected clients to share one transport")
	}
	if a.Timeout != time.Second || b.Timeout != 0 {
		t.Errorf("unexpected timeouts %v %v", a.Timeout, b.Timeout)
	}
}
