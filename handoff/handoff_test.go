package handoff

import "testing"

type memWord struct {
	value  uint32
	stores int
}

func (w *memWord) Get() uint32  { return w.value }
func (w *memWord) Set(v uint32) { w.value = v; w.stores++ }

func TestReadAndClear(t *testing.T) {
	for _, initial := range []uint32{0, 0xffff_ffff, uint32(TagImageA), uint32(TagImageB), 0x1234_5678} {
		w := &memWord{value: initial}
		c := New(w)
		if got := c.ReadAndClear(); got != Tag(initial) {
			t.Errorf("ReadAndClear() = %v, want %v", got, Tag(initial))
		}
		if w.value != uint32(None) {
			t.Errorf("cell holds %#x after ReadAndClear, want None", w.value)
		}
		if got := c.ReadAndClear(); got != None {
			t.Errorf("second ReadAndClear() = %v, want None", got)
		}
	}
}

func TestWrite(t *testing.T) {
	w := &memWord{value: 0x5555_5555}
	c := New(w)
	c.Write(TagImageB)
	if w.value != uint32(TagImageB) {
		t.Fatalf("cell holds %#x, want %#x", w.value, uint32(TagImageB))
	}
	if w.stores != 1 {
		t.Errorf("Write performed %d stores, want 1", w.stores)
	}
	if got := c.ReadAndClear(); got != TagImageB {
		t.Errorf("ReadAndClear() = %v, want %v", got, TagImageB)
	}
}

func TestTagString(t *testing.T) {
	tests := []struct {
		tag  Tag
		want string
	}{
		{None, "0x00000000"},
		{TagImageA, "0xdeadbeef"},
		{0x42, "0x00000042"},
	}
	for _, tc := range tests {
		if got := tc.tag.String(); got != tc.want {
			t.Errorf("Tag(%d).String() = %q, want %q", uint32(tc.tag), got, tc.want)
		}
	}
}
