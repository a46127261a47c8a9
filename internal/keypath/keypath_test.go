package keypath

import "testing"

func TestEncode_TrailingDelimiter(t *testing.T) {
	got := Encode("app1", []string{"users", "42", "profile"})
	want := "app1::users::42::profile::"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if root := Encode("app1", nil); root != "app1::" {
		t.Fatalf("expected namespace root %q, got %q", "app1::", root)
	}
}

func TestEncode_EscapesDelimiter(t *testing.T) {
	got := Encode("ns:1", []string{"http://x", "50%"})
	want := "ns%3A1::http%3A//x::50%25::"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestIsUnder_Self(t *testing.T) {
	paths := [][]string{
		nil,
		{"a"},
		{"a", "b"},
		{"", ""},
		{"a:", "::", "%3A"},
	}
	for _, p := range paths {
		if !IsUnder(Encode("ns", p), "ns", p) {
			t.Fatalf("path %q should be under itself", p)
		}
	}
}

func TestIsUnder_Descendant(t *testing.T) {
	key := Encode("ns", []string{"a", "b", "c"})
	for _, p := range [][]string{nil, {"a"}, {"a", "b"}} {
		if !IsUnder(key, "ns", p) {
			t.Fatalf("expected %q to be under %q", key, p)
		}
	}
	if IsUnder(Encode("ns", []string{"a"}), "ns", []string{"a", "b"}) {
		t.Fatal("a parent must not be under its child")
	}
}

func TestIsUnder_SiblingPrefix(t *testing.T) {
	if IsUnder(Encode("ns", []string{"username"}), "ns", []string{"user"}) {
		t.Fatal("[username] must not match [user]")
	}
	// An unescaped trailing colon would forge the "a::" prefix.
	if IsUnder(Encode("ns", []string{"a:"}), "ns", []string{"a"}) {
		t.Fatal("[a:] must not match [a]")
	}
}

func TestIsUnder_Disjoint(t *testing.T) {
	cases := []struct {
		p1, p2 []string
	}{
		{[]string{"a", "b"}, []string{"a", "c"}},
		{[]string{"x"}, []string{"y"}},
		{[]string{"a", "b"}, []string{"b"}},
	}
	for _, c := range cases {
		if IsUnder(Encode("ns", c.p1), "ns", c.p2) {
			t.Fatalf("%q must not be under %q", c.p1, c.p2)
		}
	}
}

func TestIsUnder_NamespaceIsolation(t *testing.T) {
	key := Encode("app1", []string{"a"})
	if IsUnder(key, "app", nil) {
		t.Fatal("namespace app must not claim keys of app1")
	}
	if IsUnder(key, "app2", []string{"a"}) {
		t.Fatal("keys must not cross namespaces")
	}
}
