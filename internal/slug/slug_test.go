package slug

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello World", "hello-world"},
		{"  Héllo, Wörld!  ", "hello-world"},
		{"snake_case_title", "snake-case-title"},
		{"Crème brûlée -- recipe", "creme-brulee-recipe"},
		{"---Leading and trailing---", "leading-and-trailing"},
		{"Tabs\tand\nnewlines", "tabs-and-newlines"},
		{"C++ & Go: 2024", "c-go-2024"},
		{"100%", "100"},
		{"日本語", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Slugify(tt.in); got != tt.want {
			t.Errorf("Slugify(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSlugify_MaxLengthTrimsSeparator(t *testing.T) {
	in := strings.Repeat("a", 99) + " bcd"
	got := Slugify(in)
	if got != strings.Repeat("a", 99) {
		t.Errorf("got %q (len %d)", got, len(got))
	}
	if len(Slugify(strings.Repeat("word ", 50))) > 100 {
		t.Error("slug exceeds max length")
	}
}

func TestMake_Options(t *testing.T) {
	if got := Make("Hello World", Options{Separator: '_', KeepCase: true}); got != "Hello_World" {
		t.Errorf("custom separator: got %q", got)
	}
	if got := Make("Top 10 Tips", Options{RemoveNumbers: true}); got != "top-tips" {
		t.Errorf("remove numbers: got %q", got)
	}
}

func TestSlugify_AlwaysValid(t *testing.T) {
	for _, in := range []string{"Hello World", "a__b", "Ünïcödé Tëxt", "x - y - z", "9 lives"} {
		if s := Slugify(in); !IsValid(s) {
			t.Errorf("Slugify(%q) = %q is not a valid slug", in, s)
		}
	}
}

func takenSet(taken ...string) Exists {
	set := make(map[string]bool)
	for _, s := range taken {
		set[s] = true
	}
	return func(_ context.Context, s string) (bool, error) {
		return set[s], nil
	}
}

func TestUnique(t *testing.T) {
	ctx := context.Background()

	got, err := Unique(ctx, "Hello", takenSet())
	if err != nil || got != "hello" {
		t.Errorf("free: got %q, %v", got, err)
	}

	got, err = Unique(ctx, "Hello", takenSet("hello", "hello-1"))
	if err != nil || got != "hello-2" {
		t.Errorf("taken: got %q, %v; want hello-2", got, err)
	}
}

func TestUnique_FallsBackToTimestamp(t *testing.T) {
	now = func() time.Time { return time.UnixMilli(1700000000000) }
	defer func() { now = time.Now }()

	calls := 0
	got, err := Unique(context.Background(), "Hello", func(context.Context, string) (bool, error) {
		calls++
		return true, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello-1700000000000" {
		t.Errorf("got %q", got)
	}
	if calls != MaxAttempts+1 {
		t.Errorf("exists called %d times, want %d", calls, MaxAttempts+1)
	}
}

func TestUnique_Errors(t *testing.T) {
	boom := errors.New("store down")
	_, err := Unique(context.Background(), "Hello", func(context.Context, string) (bool, error) {
		return false, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("got %v", err)
	}

	if _, err := Unique(context.Background(), "!!!", takenSet()); !errors.Is(err, ErrEmpty) {
		t.Errorf("got %v, want ErrEmpty", err)
	}
}

func TestUnslugify(t *testing.T) {
	if got := Unslugify("hello-big-world"); got != "Hello Big World" {
		t.Errorf("got %q", got)
	}
	if got := Unslugify(""); got != "" {
		t.Errorf("got %q", got)
	}
}

func TestIsValid(t *testing.T) {
	for s, want := range map[string]bool{
		"hello":       true,
		"hello-world": true,
		"a1-b2":       true,
		"":            false,
		"-hello":      false,
		"hello-":      false,
		"hello--x":    false,
		"Hello":       false,
		"héllo":       false,
	} {
		if got := IsValid(s); got != want {
			t.Errorf("IsValid(%q) = %v, want %v", s, got, want)
		}
	}
}
