package stack

import "testing"

func TestStackPushPop(t *testing.T) {
	s := New[int](0)
	if s.Len() != 0 {
		t.Fatalf("expected empty stack, got len %d", s.Len())
	}
	s.Push(1)
	s.Push(2)
	s.Push(3)
	if s.Len() != 3 {
		t.Fatalf("expected len 3, got %d", s.Len())
	}
	v, ok := s.Pop()
	if !ok || v != 3 {
		t.Fatalf("expected (3, true), got (%d, %v)", v, ok)
	}
	v, ok = s.Pop()
	if !ok || v != 2 {
		t.Fatalf("expected (2, true), got (%d, %v)", v, ok)
	}
}

func TestStackPopEmpty(t *testing.T) {
	s := New[string](0)
	v, ok := s.Pop()
	if ok || v != "" {
		t.Fatalf("expected (\"\", false) from an empty stack, got (%q, %v)", v, ok)
	}
}

func TestStackPopNoReturn(t *testing.T) {
	s := New[int](0)
	s.PopNoReturn() // must not panic on empty
	s.Push(1)
	s.Push(2)
	s.PopNoReturn()
	if s.Len() != 1 {
		t.Fatalf("expected len 1 after PopNoReturn, got %d", s.Len())
	}
	v, _ := s.Pop()
	if v != 1 {
		t.Fatalf("expected remaining element 1, got %d", v)
	}
}

func TestStackGetSet(t *testing.T) {
	s := New[int](0)
	s.Push(10)
	s.Push(20)
	s.Push(30)
	if got := s.Get(1); got != 20 {
		t.Fatalf("expected Get(1) == 20, got %d", got)
	}
	s.Set(1, 99)
	if got := s.Get(1); got != 99 {
		t.Fatalf("expected Get(1) == 99 after Set, got %d", got)
	}
	top, _ := s.Pop()
	if top != 30 {
		t.Fatalf("Set on a non-top slot must not disturb the top, got %d", top)
	}
}

func TestStackClear(t *testing.T) {
	s := New[int](4)
	s.Push(1)
	s.Push(2)
	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("expected len 0 after Clear, got %d", s.Len())
	}
	s.Push(5)
	v, ok := s.Pop()
	if !ok || v != 5 {
		t.Fatalf("expected stack to be reusable after Clear, got (%d, %v)", v, ok)
	}
}

func TestStackZeroValueReady(t *testing.T) {
	var s Stack[int]
	s.Push(7)
	v, ok := s.Pop()
	if !ok || v != 7 {
		t.Fatalf("expected the zero value Stack to be usable, got (%d, %v)", v, ok)
	}
}
