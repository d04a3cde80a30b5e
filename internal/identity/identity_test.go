package identity

import "testing"

func TestExtractNIF(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"embedded after prefix", "John NIF123456789 Doe", "123456789", true},
		{"bare nif", "123456789", "123456789", true},
		{"no digits", "no id here", "", false},
		{"empty", "", "", false},
		{"too short", "NIF12345678", "", false},
		{"too long run", "NIF1234567890", "", false},
		{"picks nine digit run among others", "acc 1234 user 987654321", "987654321", true},
		{"first nine digit run wins", "111111111 and 222222222", "111111111", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := ExtractNIF(c.in)
			if ok != c.ok || got != c.want {
				t.Fatalf("ExtractNIF(%q) = %q, %v; want %q, %v", c.in, got, ok, c.want, c.ok)
			}
		})
	}
}

func TestExtractNIFDeterministic(t *testing.T) {
	in := "Maria NIF300500700 Santos"
	first, ok := ExtractNIF(in)
	if !ok {
		t.Fatalf("expected a NIF in %q", in)
	}
	for i := 0; i < 10; i++ {
		got, ok := ExtractNIF(in)
		if !ok || got != first {
			t.Fatalf("non-deterministic extraction: %q vs %q", got, first)
		}
	}
}
