package domain

import (
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
)

// FuzzParseSessionID checks that session ID parsing never panics and that a
// successful parse always yields a canonical, non-nil UUID.
func FuzzParseSessionID(f *testing.F) {
	f.Add("")
	f.Add(uuid.NewString())
	f.Add(uuid.Nil.String())
	f.Add("not-a-uuid")
	f.Add("550e8400-e29b-41d4-a716-446655440000\x00suffix")
	f.Add(string([]byte{0x00, 0x01, 0x02}))

	f.Fuzz(func(t *testing.T, input string) {
		id, err := ParseSessionID(input)
		if err != nil {
			if !id.IsNil() {
				t.Errorf("error with non-nil ID for input %q", input)
			}
			return
		}
		if id.IsNil() {
			t.Errorf("nil ID without error for input %q", input)
		}
		if !utf8.ValidString(id.String()) {
			t.Errorf("non-UTF8 string form for input %q", input)
		}
		if _, reparseErr := ParseSessionID(id.String()); reparseErr != nil {
			t.Errorf("canonical form does not re-parse for input %q: %v", input, reparseErr)
		}
	})
}
