package frontier_test

import (
	"testing"

	"github.com/rohmanhakim/docs-crawler/internal/frontier"
)

func TestPushPop(t *testing.T) {
	stack := frontier.NewLIFOStack[MyQueueItem]()

	first := MyQueueItem{name: "First item"}
	second := MyQueueItem{name: "Second item"}
	third := MyQueueItem{name: "Third item"}

	if size := stack.Size(); size != 0 {
		t.Errorf("should have zero size, got: %d", size)
	}

	stack.Push(first)
	stack.Push(second)
	stack.Push(third)

	if size := stack.Size(); size != 3 {
		t.Errorf("should have size 3, got: %d", size)
	}

	output, ok := stack.Pop()
	if !ok {
		t.Error("should return ok")
	}
	if output != third {
		t.Errorf("should pop %v (most recently pushed), got: %v", third, output)
	}

	output, ok = stack.Pop()
	if !ok {
		t.Error("should return ok")
	}
	if output != second {
		t.Errorf("should pop %v, got: %v", second, output)
	}

	output, ok = stack.Pop()
	if !ok {
		t.Error("should return ok")
	}
	if output != first {
		t.Errorf("should pop %v, got: %v", first, output)
	}

	if size := stack.Size(); size != 0 {
		t.Errorf("should have zero size, got: %d", size)
	}

	_, ok = stack.Pop()
	if ok {
		t.Error("should not return ok")
	}
}
