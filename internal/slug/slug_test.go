package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMake(t *testing.T) {
	cases := map[string]string{
		"Hello World":             "hello-world",
		"  Go   is -- fun!  ":     "go-is-fun",
		"Crème Brûlée":            "creme-brulee",
		"snake_case stays":        "snake_case-stays",
		"--leading and trailing-": "leading-and-trailing",
		"日本語":                     "",
		"C++ & Rust: 2024":        "c-rust-2024",
	}
	for in, want := range cases {
		assert.Equal(t, want, Make(in), "Make(%q)", in)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 10))
	assert.Equal(t, "hello", Truncate("hello-world", 6))
	assert.Equal(t, "hello-w", Truncate("hello-world", 7))
}

func TestWithSuffix(t *testing.T) {
	assert.Equal(t, "my-post-2", WithSuffix("my-post", 2, 200))
	assert.Equal(t, "my-3", WithSuffix("my-post", 3, 5))
}
