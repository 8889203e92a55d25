package monitor

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestHighlight(t *testing.T) {
	images := []string{"a", "b"}
	tests := []struct {
		line string
		want string
	}{
		{"dualboot: image a started", "\x1b[1;36mdualboot: image a started\x1b[0m"},
		{"dualboot: image b started", "\x1b[1;35mdualboot: image b started\x1b[0m"},
		{"dualboot: image c started", "dualboot: image c started"},
		{"image a started", "image a started"},
		{"dualboot: image", "dualboot: image"},
	}
	for _, tc := range tests {
		if got := Highlight(tc.line, images); got != tc.want {
			t.Errorf("Highlight(%q) = %q, want %q", tc.line, got, tc.want)
		}
	}
}

func TestCopyLines(t *testing.T) {
	in := strings.NewReader("boot\r\ndualboot: image b started\r\ntick\n")
	var out bytes.Buffer
	if err := CopyLines(&out, in, []string{"a", "b"}); err != nil {
		t.Fatal(err)
	}
	want := "boot\n\x1b[1;35mdualboot: image b started\x1b[0m\ntick\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestPickPort(t *testing.T) {
	if _, err := pickPort(nil); !errors.Is(err, errNoPort) {
		t.Errorf("no ports: %v", err)
	}
	if port, err := pickPort([]string{"/dev/ttyACM0"}); err != nil || port != "/dev/ttyACM0" {
		t.Errorf("one port: %q, %v", port, err)
	}
	if _, err := pickPort([]string{"/dev/ttyACM0", "/dev/ttyUSB0"}); !errors.Is(err, errMultiplePorts) {
		t.Errorf("two ports: %v", err)
	}
	if port, err := SelectPort("COM3"); err != nil || port != "COM3" {
		t.Errorf("explicit port: %q, %v", port, err)
	}
}
