package cortexm

import (
	"strings"
	"testing"
)

func TestResetRequest(t *testing.T) {
	tests := []struct {
		aircr uint32
		want  uint32
	}{
		{0xFA05_0000, 0x05FA_0004},
		{0xFA05_0300, 0x05FA_0304},
		{0xFA05_8700, 0x05FA_0704}, // ENDIANNESS is read-only and dropped
		{0x0000_0002, 0x05FA_0004}, // VECTCLRACTIVE is never set again
	}
	for _, tc := range tests {
		got := ResetRequest(tc.aircr)
		if got != tc.want {
			t.Errorf("ResetRequest(%#08x) = %#08x, want %#08x", tc.aircr, got, tc.want)
		}
		if got&AIRCR_VECTKEY_Msk != AIRCR_VECTKEY {
			t.Errorf("ResetRequest(%#08x) lacks VECTKEY", tc.aircr)
		}
	}
}

func TestJumpSequence(t *testing.T) {
	var lines []string
	for _, line := range strings.Split(JumpSequence, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	want := []string{
		"msr control, {zero}",
		"isb 0xF",
		"msr msp, {sp}",
		"bx {entry}",
	}
	if strings.Join(lines, "\n") != strings.Join(want, "\n") {
		t.Errorf("JumpSequence:\n%s\nwant:\n%s", strings.Join(lines, "\n"), strings.Join(want, "\n"))
	}
}
