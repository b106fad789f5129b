package hook

import "testing"

func TestFireInOrderUntilResult(t *testing.T) {
	b := NewBus()
	var calls []string
	b.Listen("calendar.extendQuery", func(args ...any) any {
		calls = append(calls, "first")
		return nil
	})
	b.Listen("calendar.extendQuery", func(args ...any) any {
		calls = append(calls, "second")
		return args[0]
	})
	b.Listen("calendar.extendQuery", func(args ...any) any {
		calls = append(calls, "third")
		return "unreachable"
	})

	got := b.Fire("calendar.extendQuery", "replacement")
	if got != "replacement" {
		t.Errorf("result = %v, want replacement", got)
	}
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Errorf("calls = %v, want [first second]", calls)
	}
}

func TestFireWithoutListeners(t *testing.T) {
	b := NewBus()
	if got := b.Fire("nothing"); got != nil {
		t.Errorf("result = %v, want nil", got)
	}
	if b.Has("nothing") {
		t.Error("Has should be false")
	}
}

func TestNilBus(t *testing.T) {
	var b *Bus
	if got := b.Fire("x"); got != nil {
		t.Errorf("nil bus returned %v", got)
	}
	if b.Has("x") {
		t.Error("nil bus should have no listeners")
	}
}
