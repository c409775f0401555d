package version

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoDefault(t *testing.T) {
	info := Info()
	assert.Contains(t, info, "lla ")
	assert.Contains(t, info, Version)
	assert.Contains(t, info, runtime.GOOS+"/"+runtime.GOARCH)
}

func TestInfoWithCustomValues(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	t.Cleanup(func() {
		Version, Commit, Date = origVersion, origCommit, origDate
	})

	Version = "1.2.3"
	Commit = "abc1234567890"
	Date = "2026-01-15"

	info := Info()
	assert.Contains(t, info, "1.2.3")
	assert.Contains(t, info, "abc1234")
	assert.NotContains(t, info, "abc1234567890")
	assert.Contains(t, info, "2026-01-15")
}

func TestShort(t *testing.T) {
	for in, want := range map[string]string{
		"abcdefghij": "abcdefg",
		"abc1234":    "abc1234",
		"abc":        "abc",
		"":           "",
	} {
		assert.Equal(t, want, short(in), in)
	}
}

func TestProtocolLine(t *testing.T) {
	assert.Equal(t, "plugin protocol: [1]", ProtocolLine([]uint32{1}))
}
