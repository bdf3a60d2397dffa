package tracker

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestReportText(t *testing.T) {
	t.Run("CleanRun", func(t *testing.T) {
		tr := New(newStubAllocator(false), WithWarnWriter(&bytes.Buffer{}))

		ptr, err := tr.Alloc(64, testOrigin(1))
		require.NoError(t, err)
		tr.Free(ptr, testOrigin(2))

		out := &bytes.Buffer{}
		tr.BuildReport().WriteText(out)

		want := strings.Join([]string{
			"",
			"===== Memory Leak Report =====",
			"Total allocation calls:  1",
			"Total free calls:        1",
			"Total bytes allocated:   64",
			"Total bytes freed:       64",
			"Double-free attempts:    0",
			"Invalid free attempts:   0",
			"No leaks detected!",
			"===== End of Report =====",
			"",
		}, "\n")
		assert.Equal(t, want, out.String())
	})

	t.Run("LeakListing", func(t *testing.T) {
		tr := New(newStubAllocator(false), WithWarnWriter(&bytes.Buffer{}))

		_, err := tr.Alloc(20, Origin{File: "demo.go", Line: 27})
		require.NoError(t, err)

		out := &bytes.Buffer{}
		tr.BuildReport().WriteText(out)

		assert.Regexp(t,
			regexp.MustCompile(`Leak at 0x[0-9a-f]+: 20 bytes \(allocated at demo\.go:27\)`),
			out.String())
		assert.Contains(t, out.String(), "Summary: 1 block(s) leaked, total 20 byte(s) unfreed.")
		assert.NotContains(t, out.String(), "No leaks detected!")
	})
}

func TestReportJSON(t *testing.T) {
	warn := &bytes.Buffer{}
	tr := New(newStubAllocator(false), WithWarnWriter(warn))

	ptr, err := tr.Alloc(40, testOrigin(1))
	require.NoError(t, err)
	tr.Free(ptr, testOrigin(2))
	tr.Free(ptr, testOrigin(3)) // double free

	_, err = tr.Alloc(24, Origin{File: "svc.go", Line: 9})
	require.NoError(t, err)

	out := &bytes.Buffer{}
	require.NoError(t, tr.BuildReport().WriteJSON(out))
	require.True(t, gjson.ValidBytes(out.Bytes()))

	report := gjson.ParseBytes(out.Bytes())
	assert.EqualValues(t, 2, report.Get("alloc_calls").Uint())
	assert.EqualValues(t, 2, report.Get("free_calls").Uint())
	assert.EqualValues(t, 64, report.Get("bytes_allocated").Uint())
	assert.EqualValues(t, 40, report.Get("bytes_freed").Uint())
	assert.EqualValues(t, 1, report.Get("double_frees").Uint())
	assert.EqualValues(t, 0, report.Get("invalid_frees").Uint())
	assert.EqualValues(t, 1, report.Get("leaked_blocks").Uint())
	assert.EqualValues(t, 24, report.Get("leaked_bytes").Uint())

	leaks := report.Get("leaks").Array()
	require.Len(t, leaks, 1)
	assert.EqualValues(t, 24, leaks[0].Get("size").Uint())
	assert.Equal(t, "svc.go:9", leaks[0].Get("origin").String())
	assert.True(t, strings.HasPrefix(leaks[0].Get("identity").String(), "0x"))
}

func TestReportWriteFile(t *testing.T) {
	tr := New(newStubAllocator(false), WithWarnWriter(&bytes.Buffer{}))

	_, err := tr.Alloc(16, testOrigin(1))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "report.txt")

	// Two writes append; several processes may share one report path.
	require.NoError(t, tr.BuildReport().WriteFile(path, false))
	require.NoError(t, tr.BuildReport().WriteFile(path, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "===== Memory Leak Report ====="))
}
