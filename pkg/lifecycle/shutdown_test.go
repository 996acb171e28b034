package lifecycle

import (
	"context"
	"errors"
	"testing"
)

type closeRecorder struct {
	order *[]string
	name  string
	err   error
}

func (c closeRecorder) Close() error {
	*c.order = append(*c.order, c.name)
	return c.err
}

func TestShutdown_ReverseOrderAndErrors(t *testing.T) {
	var order []string
	boom := errors.New("boom")

	m := NewShutdownManager(nil)
	m.RegisterCloser("first", closeRecorder{order: &order, name: "first"})
	m.RegisterCloser("second", closeRecorder{order: &order, name: "second", err: boom})
	m.Register("third", func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("shutdown context should carry a deadline")
		}
		order = append(order, "third")
		return nil
	})

	err := m.Shutdown(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("Shutdown = %v, want boom", err)
	}
	if len(order) != 3 || order[0] != "third" || order[2] != "first" {
		t.Errorf("close order = %v", order)
	}

	if err := m.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown = %v", err)
	}
	if len(order) != 3 {
		t.Errorf("resources closed twice: %v", order)
	}
}
