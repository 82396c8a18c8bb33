package port

import (
	"net"
	"strconv"
	"testing"
)

func TestFree(t *testing.T) {
	t.Parallel()
	p, err := Free("127.0.0.1")
	if err != nil {
		t.Fatalf("Free: %v", err)
	}
	if p <= 0 || p > 65535 {
		t.Fatalf("port %d out of range", p)
	}
	ln, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(p)))
	if err != nil {
		t.Fatalf("port %d should be released after Free: %v", p, err)
	}
	ln.Close()
}

func TestFreeBadHost(t *testing.T) {
	t.Parallel()
	if _, err := Free("256.0.0.1"); err == nil {
		t.Error("expected error for invalid host")
	}
}

func TestFreeAcceptsHostname(t *testing.T) {
	t.Parallel()
	p, err := Free("localhost")
	if err != nil {
		t.Skipf("localhost not resolvable: %v", err)
	}
	if p <= 0 {
		t.Errorf("unexpected port %d", p)
	}
}
