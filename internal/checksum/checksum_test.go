package checksum

import (
	"io"
	"strings"
	"testing"
)

func TestReaderMatchesSum(t *testing.T) {
	payload := strings.Repeat("insighthink", 1000)
	r := NewReader(strings.NewReader(payload))
	if _, err := io.Copy(io.Discard, r); err != nil {
		t.Fatal(err)
	}
	if got, want := r.Sum(), Sum([]byte(payload)); got != want {
		t.Errorf("streamed sum = %s, want %s", got, want)
	}
	if r.Size() != int64(len(payload)) {
		t.Errorf("size = %d, want %d", r.Size(), len(payload))
	}
}

func TestSumLength(t *testing.T) {
	if got := len(Sum(nil)); got != 64 {
		t.Errorf("hex digest length = %d, want 64", got)
	}
}
