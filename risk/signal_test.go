package risk

import (
	"sync"
	"testing"
)

func TestStaticSignal(t *testing.T) {
	if Static(Normal).CurrentMode() != Normal {
		t.Error("static normal signal reports the wrong mode")
	}
	if Static(Safe).CurrentMode() != Safe {
		t.Error("static safe signal reports the wrong mode")
	}
}

func TestSwitchFlips(t *testing.T) {
	var sw Switch
	if sw.CurrentMode() != Normal {
		t.Error("zero-value switch should start normal")
	}
	sw.Set(Safe)
	if sw.CurrentMode() != Safe {
		t.Error("switch did not flip to safe")
	}
	sw.Set(Normal)
	if sw.CurrentMode() != Normal {
		t.Error("switch did not flip back")
	}
}

func TestSwitchConcurrentAccess(t *testing.T) {
	var sw Switch
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(m Mode) {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				sw.Set(m)
				_ = sw.CurrentMode()
			}
		}(Mode(i % 2))
	}
	wg.Wait()

	if m := sw.CurrentMode(); m != Normal && m != Safe {
		t.Errorf("mode = %d after concurrent flips", m)
	}
}

func TestModeString(t *testing.T) {
	if Normal.String() != "normal" || Safe.String() != "safe" {
		t.Error("mode names changed")
	}
}
