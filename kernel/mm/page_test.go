package mm

import (
	"testing"
)

func TestFrameMethods(t *testing.T) {
	for frameIndex := uint64(0); frameIndex < 128; frameIndex++ {
		frame := Frame(frameIndex)

		if !frame.Valid() {
			t.Errorf("expected frame %d to be valid", frameIndex)
		}

		if exp, got := uintptr(frameIndex<<PageShift), frame.Address(); got != exp {
			t.Errorf("expected frame (%d, index: %d) call to Address() to return %x; got %x", frame, frameIndex, exp, got)
		}
	}

	invalidFrame := InvalidFrame
	if invalidFrame.Valid() {
		t.Error("expected InvalidFrame.Valid() to return false")
	}
}

func TestFrameFromAddress(t *testing.T) {
	specs := []struct {
		input    uintptr
		expFrame Frame
	}{
		{0, Frame(0)},
		{4095, Frame(0)},
		{4096, Frame(1)},
		{4123, Frame(1)},
	}

	for specIndex, spec := range specs {
		if got := FrameFromAddress(spec.input); got != spec.expFrame {
			t.Errorf("[spec %d] expected returned frame to be %v; got %v", specIndex, spec.expFrame, got)
		}
	}
}

func TestPageRange(t *testing.T) {
	r := PageRange{Start: Page(4), End: Page(10)}
	if got, exp := r.Len(), uintptr(6); got != exp {
		t.Errorf("expected Len() to return %d; got %d", exp, got)
	}
	if r.Empty() {
		t.Error("expected range to be non-empty")
	}

	empty := PageRange{Start: Page(4), End: Page(4)}
	if !empty.Empty() || empty.Len() != 0 {
		t.Error("expected range to be empty")
	}

	inverted := PageRange{Start: Page(10), End: Page(4)}
	if !inverted.Empty() || inverted.Len() != 0 {
		t.Error("expected inverted range to behave as empty")
	}
}

func TestFrameRange(t *testing.T) {
	r := FrameRange{Start: Frame(1), End: Frame(513)}
	if got, exp := r.Len(), uintptr(512); got != exp {
		t.Errorf("expected Len() to return %d; got %d", exp, got)
	}
}

func TestPageMethods(t *testing.T) {
	for pageIndex := uint64(0); pageIndex < 128; pageIndex++ {
		page := Page(pageIndex)

		if exp, got := uintptr(pageIndex<<PageShift), page.Address(); got != exp {
			t.Errorf("expected page (%d, index: %d) call to Address() to return %x; got %x", page, pageIndex, exp, got)
		}
	}
}

func TestPageFromAddress(t *testing.T) {
	specs := []struct {
		input   uintptr
		expPage Page
	}{
		{0, Page(0)},
		{4095, Page(0)},
		{4096, Page(1)},
		{4123, Page(1)},
	}

	for specIndex, spec := range specs {
		if got := PageFromAddress(spec.input); got != spec.expPage {
			t.Errorf("[spec %d] expected returned page to be %v; got %v", specIndex, spec.expPage, got)
		}
	}
}
