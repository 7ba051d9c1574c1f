package pipeline

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, v *Visit) error
	callCount int
}

func (m *mockStep) Do(ctx context.Context, v *Visit) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, v)
	}
	return nil
}

func (m *mockStep) Name() string {
	return m.name
}

func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes all steps in order", func(t *testing.T) {
		t.Parallel()

		var order []string
		p := New(WithLogger(quietLogger()))
		for _, name := range []string{"first", "second", "third"} {
			p.AddStep(&mockStep{name: name, doFunc: func(context.Context, *Visit) error {
				order = append(order, name)
				return nil
			}})
		}

		if err := p.Execute(context.Background(), NewVisit("http://x.onion", false)); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if !reflect.DeepEqual(order, []string{"first", "second", "third"}) {
			t.Errorf("order = %v", order)
		}
		if !reflect.DeepEqual(p.StepNames(), order) {
			t.Errorf("StepNames() = %v", p.StepNames())
		}
	})

	t.Run("stops at the first error", func(t *testing.T) {
		t.Parallel()

		errStep := errors.New("step failed")
		last := &mockStep{name: "last"}
		p := New(WithLogger(quietLogger()))
		p.AddSteps(
			&mockStep{name: "ok"},
			&mockStep{name: "bad", doFunc: func(context.Context, *Visit) error { return errStep }},
			last,
		)

		err := p.Execute(context.Background(), NewVisit("http://x.onion", false))
		if !errors.Is(err, errStep) {
			t.Errorf("Execute() error = %v, want %v", err, errStep)
		}
		if last.callCount != 0 {
			t.Error("step after the failure ran")
		}
	})

	t.Run("honours cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		step := &mockStep{name: "never"}
		p := New(WithLogger(quietLogger()))
		p.AddStep(step)

		if err := p.Execute(ctx, NewVisit("http://x.onion", false)); !errors.Is(err, context.Canceled) {
			t.Errorf("Execute() error = %v, want context.Canceled", err)
		}
		if step.callCount != 0 {
			t.Error("step ran on a cancelled context")
		}
		if p.StepCount() != 1 {
			t.Errorf("StepCount() = %d", p.StepCount())
		}
	})
}

func TestNormalizeURLs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "skips blanks and comments",
			raw:  "\n# seed list\n  abc.onion  \n\nhttp://def.onion\n",
			want: []string{"http://abc.onion", "http://def.onion"},
		},
		{
			name: "dedups keeping first",
			raw:  "abc.onion\nhttp://abc.onion\nHTTPS://x.onion\nabc.onion",
			want: []string{"http://abc.onion", "HTTPS://x.onion"},
		},
		{
			name: "empty input",
			raw:  "  \n#only comment",
			want: []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := NormalizeURLs(tt.raw); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("NormalizeURLs() = %#v, want %#v", got, tt.want)
			}
		})
	}

	if got := DedupURLs([]string{"a.onion", "a.onion", "b.onion"}); len(got) != 2 {
		t.Errorf("DedupURLs() = %v", got)
	}
}
