package kernel

import (
	"testing"
	"unsafe"
)

func TestMemset(t *testing.T) {
	// memset with a 0 size should be a no-op
	Memset(uintptr(0), 0x00, 0)

	for pageCount := uintptr(1); pageCount <= 10; pageCount++ {
		buf := make([]byte, 4096<<pageCount)
		for i := 0; i < len(buf); i++ {
			buf[i] = 0xFE
		}

		addr := uintptr(unsafe.Pointer(&buf[0]))
		Memset(addr, 0x00, uintptr(len(buf)))

		for i := 0; i < len(buf); i++ {
			if got := buf[i]; got != 0x00 {
				t.Errorf("[block with %d pages] expected byte %d to be 0x00; got 0x%x", 1<<pageCount, i, got)
			}
		}
	}
}

func TestMemcopy(t *testing.T) {
	// memcopy with a 0 size should be a no-op
	Memcopy(uintptr(0), uintptr(0), 0)

	src := make([]byte, 4096)
	for i := 0; i < len(src); i++ {
		src[i] = byte(i % 256)
	}
	dst := make([]byte, 4096)

	Memcopy(
		uintptr(unsafe.Pointer(&src[0])),
		uintptr(unsafe.Pointer(&dst[0])),
		uintptr(len(src)),
	)

	for i := 0; i < len(dst); i++ {
		if got, exp := dst[i], src[i]; got != exp {
			t.Errorf("expected byte %d to be %x; got %x", i, exp, got)
		}
	}
}
