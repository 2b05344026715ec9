package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/treematch/pkg/config"
)

const (
	srcTree = `type: f
children:
  - type: g
    children:
      - {type: id, label: x}
  - type: h
    children:
      - {type: id, label: y}
`
	dstTree = `type: k
children:
  - type: h
    children:
      - {type: id, label: y}
  - type: g
    children:
      - {type: id, label: x}
`
)

type fixture struct {
	dir    string
	config string
	src    string
	dst    string
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	dir := t.TempDir()
	fx := fixture{
		dir:    dir,
		config: filepath.Join(dir, ".treematch.yaml"),
		src:    filepath.Join(dir, "src.yaml"),
		dst:    filepath.Join(dir, "dst.yaml"),
	}

	require.NoError(t, os.WriteFile(fx.config, nil, 0o600))
	require.NoError(t, os.WriteFile(fx.src, []byte(srcTree), 0o600))
	require.NoError(t, os.WriteFile(fx.dst, []byte(dstTree), 0o600))

	return fx
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := NewRootCommand()

	var out, errOut bytes.Buffer

	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)

	err := cmd.Execute()

	return out.String(), errOut.String(), err
}

func TestRoot_Help(t *testing.T) {
	out, _, err := run(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "match")
	assert.Contains(t, out, "batch")
	assert.Contains(t, out, "--metrics-addr")
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "treematch "))
}

func TestMatch_TextOutput(t *testing.T) {
	fx := newFixture(t)

	out, _, err := run(t, "--config", fx.config, "match", fx.src, fx.dst)
	require.NoError(t, err)

	assert.Contains(t, strings.ToLower(out), "total: 4 pairs")
	assert.Contains(t, out, "mapped 4 of 5 src nodes (80.0%)")
	assert.Contains(t, out, `id "x"`)
	assert.Contains(t, out, "unique 2, ambiguous 0, committed 0")
}

func TestMatch_JSONOutput(t *testing.T) {
	fx := newFixture(t)

	out, _, err := run(t, "--config", fx.config, "match", "--format", "json", fx.src, fx.dst)
	require.NoError(t, err)

	var report matchReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))

	assert.Equal(t, 5, report.SrcNodes)
	assert.Equal(t, 4, report.Mapped)
	assert.False(t, report.Cached)
	assert.Equal(t, [][2]uint32{{0, 2}, {1, 3}, {2, 0}, {3, 1}}, report.Pairs)
}

func TestMatch_MinHeightFlagOverridesConfig(t *testing.T) {
	fx := newFixture(t)
	require.NoError(t, os.WriteFile(fx.config, []byte("matcher:\n  min_height: 1\n"), 0o600))

	out, _, err := run(t, "--config", fx.config, "match", "--min-height", "3", "--format", "json", fx.src, fx.dst)
	require.NoError(t, err)

	var report matchReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Zero(t, report.Mapped)

	_, _, err = run(t, "--config", fx.config, "match", "--min-height", "0", fx.src, fx.dst)
	require.ErrorIs(t, err, config.ErrInvalidMinHeight)
}

func TestMatch_VerboseLogsToStderr(t *testing.T) {
	fx := newFixture(t)

	_, errOut, err := run(t, "--config", fx.config, "--verbose", "--log-json", "match", fx.src, fx.dst)
	require.NoError(t, err)
	assert.Contains(t, errOut, `"msg":"tree pair matched"`)
}

func TestMatch_Errors(t *testing.T) {
	fx := newFixture(t)

	_, _, err := run(t, "--config", fx.config, "match", "--format", "xml", fx.src, fx.dst)
	require.ErrorIs(t, err, ErrUnknownFormat)

	_, _, err = run(t, "--config", fx.config, "match", fx.src, filepath.Join(fx.dir, "missing.yaml"))
	require.Error(t, err)

	_, _, err = run(t, "--config", fx.config, "match", fx.src)
	require.Error(t, err)
}

func TestMatch_SourceFiles(t *testing.T) {
	fx := newFixture(t)

	a := filepath.Join(fx.dir, "a.go")
	b := filepath.Join(fx.dir, "b.go")

	require.NoError(t, os.WriteFile(a, []byte("package demo\n\nfunc one() int { return 1 }\n\nfunc two() int { return 2 }\n"), 0o600))
	require.NoError(t, os.WriteFile(b, []byte("package demo\n\nfunc two() int { return 2 }\n\nfunc one() int { return 1 }\n"), 0o600))

	out, _, err := run(t, "--config", fx.config, "match", "--format", "json", a, b)
	require.NoError(t, err)

	var report matchReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))

	assert.Equal(t, report.SrcNodes, report.DstNodes)
	assert.Equal(t, report.SrcNodes-1, report.Mapped, "only the roots differ in child order")
}

func TestBatch_SharesCache(t *testing.T) {
	fx := newFixture(t)

	pairs := filepath.Join(fx.dir, "pairs.txt")
	content := "# pairs\n" + fx.src + " " + fx.dst + "\n\n" + fx.src + " " + fx.dst + "\n" + fx.dst + " " + fx.src + "\n"
	require.NoError(t, os.WriteFile(pairs, []byte(content), 0o600))

	out, _, err := run(t, "--config", fx.config, "batch", "--workers", "1", "--format", "json", pairs)
	require.NoError(t, err)

	var reports []matchReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 3)

	assert.False(t, reports[0].Cached)
	assert.True(t, reports[1].Cached)
	assert.False(t, reports[2].Cached)
	assert.Equal(t, 4, reports[2].Mapped)

	out, _, err = run(t, "--config", fx.config, "batch", pairs)
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(out), "total: 3 pairs")
	assert.Contains(t, out, "cache: 2 computed")
}

func TestBatch_FailsOnBadPair(t *testing.T) {
	fx := newFixture(t)

	pairs := filepath.Join(fx.dir, "pairs.txt")
	require.NoError(t, os.WriteFile(pairs, []byte(fx.src+" "+filepath.Join(fx.dir, "nope.yaml")+"\n"), 0o600))

	_, _, err := run(t, "--config", fx.config, "batch", pairs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestReadPairs(t *testing.T) {
	t.Parallel()

	pairs, err := readPairs(strings.NewReader("a b\n  # skip\n\nc   d\n"))
	require.NoError(t, err)
	assert.Equal(t, []pairSpec{{line: 1, src: "a", dst: "b"}, {line: 4, src: "c", dst: "d"}}, pairs)

	_, err = readPairs(strings.NewReader("a b c\n"))
	require.ErrorIs(t, err, ErrMalformedPair)
}

func TestMetricsServer_ServesAndShutsDown(t *testing.T) {
	t.Parallel()

	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "treematch_up 1\n")
	})

	srv, err := startMetricsServer("127.0.0.1:0", handler)
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://"+srv.Addr()+metricsPath, nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "treematch_up")

	require.NoError(t, srv.Shutdown(context.Background()))
}

func TestMatch_WithMetricsAddr(t *testing.T) {
	fx := newFixture(t)

	_, errOut, err := run(t, "--config", fx.config, "--metrics-addr", "127.0.0.1:0", "match", fx.src, fx.dst)
	require.NoError(t, err)
	assert.Contains(t, errOut, "serving metrics")
}
