package sign

import "testing"

func TestCanonicalJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "sorts keys recursively",
			in:   `{"b": 1, "a": {"d": 2, "c": [ {"z": 0, "y": 1} ]}}`,
			want: `{"a":{"c":[{"y":1,"z":0}],"d":2},"b":1}`,
		},
		{
			name: "strips whitespace",
			in:   "{\n  \"a\" : [ 1 , 2 ]\n}",
			want: `{"a":[1,2]}`,
		},
		{
			name: "preserves number literals",
			in:   `{"amount":30000,"rate":0.0001230,"big":12345678901234567890}`,
			want: `{"amount":30000,"big":12345678901234567890,"rate":0.0001230}`,
		},
		{
			name: "keeps null and bools",
			in:   `{"ok":true,"no":false,"nil":null}`,
			want: `{"nil":null,"no":false,"ok":true}`,
		},
		{
			name: "escapes non-ascii",
			in:   `{"desc":"дней"}`,
			want: `{"desc":"\u0434\u043d\u0435\u0439"}`,
		},
		{
			name: "escapes control and quote characters",
			in:   "{\"s\":\"a\\\"b\\nc\"}",
			want: `{"s":"a\"b\nc"}`,
		},
		{
			name: "does not escape html characters",
			in:   `{"url":"https://x.test/a?b=1&c=<2>"}`,
			want: `{"url":"https://x.test/a?b=1&c=<2>"}`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := CanonicalJSON([]byte(tc.in))
			if err != nil {
				t.Fatalf("CanonicalJSON: %v", err)
			}
			if string(got) != tc.want {
				t.Errorf("got %s, want %s", got, tc.want)
			}
		})
	}

	t.Run("rejects truncated document", func(t *testing.T) {
		if _, err := CanonicalJSON([]byte(`{"a":1`)); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("rejects trailing garbage", func(t *testing.T) {
		if _, err := CanonicalJSON([]byte(`{"a":1}{"b":2}`)); err == nil {
			t.Error("expected error")
		}
	})
}
