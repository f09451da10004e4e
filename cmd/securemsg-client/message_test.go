package main

import "testing"

func TestToFixed32(t *testing.T) {
	t.Run("correct length", func(t *testing.T) {
		in := make([]byte, 32)
		in[0] = 0xAB
		out, err := toFixed32(in)
		if err != nil {
			t.Fatalf("toFixed32() error = %v", err)
		}
		if out[0] != 0xAB {
			t.Errorf("toFixed32() did not copy bytes correctly")
		}
	})

	t.Run("wrong length", func(t *testing.T) {
		if _, err := toFixed32(make([]byte, 16)); err == nil {
			t.Error("toFixed32() with 16 bytes succeeded, want error")
		}
	})
}
