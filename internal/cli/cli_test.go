package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/isia-imav/taggraph/pkg/config"
	apperr "github.com/isia-imav/taggraph/pkg/errors"
	"github.com/isia-imav/taggraph/pkg/graph"
)

const catalogCSV = `Titolo,Tipologia,Consigliati,Breve descrizione,Regista/Creatore,Anno,Valutazione (1-5),Link Wikipedia,Link Streaming,Tag tematici (keywords)
Stalker,Film,Marco,Una zona,Tarkovskij,1979,5,,,"Fantascienza, Viaggio"
Dark,Serie,,Tempo,,2017,4,,,"fantascienza, Famiglia"
`

const catalogJSON = `[
  {"Titolo": "Stalker", "Tipologia": "Film", "Tag tematici (keywords)": "Fantascienza", "nuovi_tag": ["zona"]},
  {"Titolo": "Stalker", "Tipologia": "Film", "Tag tematici (keywords)": "Remake"},
  {"Titolo": "Dark", "Tipologia": "Serie", "Tag tematici (keywords)": "fantascienza"}
]`

type testEnv map[string]string

// execute runs the CLI with args and returns stdout.
func execute(t *testing.T, env testEnv, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	c := New(&logs, LogInfo)
	c.Out = &out
	c.Getenv = func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	root := c.RootCommand()
	root.SetArgs(args)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeTemp(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readGraph(t *testing.T, path string) *graph.Graph {
	t.Helper()
	g, err := graph.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", path, err)
	}
	return g
}

func tagValue(g *graph.Graph, id string) int {
	for _, n := range g.Nodes {
		if n.IsTag() && n.ID == id {
			return n.Value
		}
	}
	return -1
}

func TestConvertArgs(t *testing.T) {
	for _, args := range [][]string{
		{"convert"},
		{"convert", "only.csv"},
		{"convert", "a.csv", "b.json", "extra"},
	} {
		_, err := execute(t, nil, args...)
		if err == nil {
			t.Errorf("%v: expected usage error", args)
			continue
		}
		if err.Error() != "usage: taggraph convert <input_csv> <output_json>" {
			t.Errorf("%v: error = %q", args, err.Error())
		}
	}
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	in := writeTemp(t, dir, "catalog.csv", catalogCSV)
	out := filepath.Join(dir, "graph.json")

	stdout, err := execute(t, nil, "convert", "--no-cache", in, out)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if !strings.Contains(stdout, "2 items") || !strings.Contains(stdout, out) {
		t.Errorf("stdout = %q", stdout)
	}

	g := readGraph(t, out)
	if v := tagValue(g, "fantascienza"); v != 2 {
		t.Errorf("fantascienza value = %d, want 2 (tags normalized by default)", v)
	}
	if v := tagValue(g, "Fantascienza"); v != -1 {
		t.Error("case variants should merge when normalizing")
	}
}

func TestConvertNonCSVExtension(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"collezione.txt", "collezione", "export.tsv.bak", "table.json"} {
		t.Run(name, func(t *testing.T) {
			in := writeTemp(t, dir, name, catalogCSV)
			out := filepath.Join(dir, name+".graph.json")

			if _, err := execute(t, nil, "convert", "--no-cache", in, out); err != nil {
				t.Fatalf("convert: %v", err)
			}
			if s := readGraph(t, out).Stats(); s.Items != 2 {
				t.Errorf("items = %d, want 2", s.Items)
			}
		})
	}
}

func TestConvertMissingInputAnyExtension(t *testing.T) {
	dir := t.TempDir()
	_, err := execute(t, nil, "convert", "--no-cache", filepath.Join(dir, "collezione.txt"), filepath.Join(dir, "out.json"))
	if apperr.GetCode(err) != apperr.ErrCodeFileNotFound {
		t.Fatalf("err = %v, want FILE_NOT_FOUND", err)
	}
}

func TestConvertFormatFlag(t *testing.T) {
	dir := t.TempDir()
	in := writeTemp(t, dir, "catalog.txt", catalogJSON)
	out := filepath.Join(dir, "graph.json")

	if _, err := execute(t, nil, "convert", "--no-cache", "--format", "json", in, out); err != nil {
		t.Fatalf("convert: %v", err)
	}
	if v := tagValue(readGraph(t, out), "zona"); v != 1 {
		t.Errorf("zona value = %d, want 1", v)
	}
}

func TestConvertFlagOverridesDefault(t *testing.T) {
	dir := t.TempDir()
	in := writeTemp(t, dir, "catalog.csv", catalogCSV)
	out := filepath.Join(dir, "graph.json")

	if _, err := execute(t, nil, "convert", "--no-cache", "--normalize-tags=false", in, out); err != nil {
		t.Fatalf("convert: %v", err)
	}
	g := readGraph(t, out)
	if tagValue(g, "Fantascienza") != 1 || tagValue(g, "fantascienza") != 1 {
		t.Error("case variants should stay separate without normalization")
	}
}

func TestConvertMissingInput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "graph.json")

	_, err := execute(t, nil, "convert", "--no-cache", filepath.Join(dir, "missing.csv"), out)
	if apperr.GetCode(err) != apperr.ErrCodeFileNotFound {
		t.Fatalf("err = %v, want FILE_NOT_FOUND", err)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("no output should be written when the input is missing")
	}
}

func TestRestructureFromEnv(t *testing.T) {
	dir := t.TempDir()
	in := writeTemp(t, dir, "collezione.json", catalogJSON)
	out := filepath.Join(dir, "data.json")

	stdout, err := execute(t, testEnv{
		config.EnvInput:    in,
		config.EnvOutput:   out,
		config.EnvCacheDir: filepath.Join(dir, "cache"),
	}, "restructure")
	if err != nil {
		t.Fatalf("restructure: %v", err)
	}
	if !strings.Contains(stdout, "Successfully restructured data and saved to "+out) {
		t.Errorf("stdout = %q", stdout)
	}

	g := readGraph(t, out)
	st := g.Stats()
	if st.Items != 2 {
		t.Errorf("items = %d, want 2 (duplicate title skipped)", st.Items)
	}
	if tagValue(g, "Remake") != -1 {
		t.Error("tags of a skipped duplicate should not appear")
	}
	if tagValue(g, "Fantascienza") != 1 || tagValue(g, "fantascienza") != 1 {
		t.Error("restructure should not lowercase tags by default")
	}
}

func TestRestructureFlagsOverrideEnv(t *testing.T) {
	dir := t.TempDir()
	in := writeTemp(t, dir, "collezione.json", catalogJSON)
	envOut := filepath.Join(dir, "env.json")
	flagOut := filepath.Join(dir, "flag.json")

	_, err := execute(t, testEnv{
		config.EnvInput:  filepath.Join(dir, "wrong.json"),
		config.EnvOutput: envOut,
	}, "restructure", "--no-cache", "--input", in, "--output", flagOut, "--normalize-tags")
	if err != nil {
		t.Fatalf("restructure: %v", err)
	}
	if _, err := os.Stat(envOut); !os.IsNotExist(err) {
		t.Error("env output should not be written when --output is set")
	}
	if v := tagValue(readGraph(t, flagOut), "fantascienza"); v != 2 {
		t.Errorf("fantascienza value = %d, want 2", v)
	}
}

func TestRestructureConfigFile(t *testing.T) {
	dir := t.TempDir()
	in := writeTemp(t, dir, "collezione.json", catalogJSON)
	out := filepath.Join(dir, "graph.json")
	cfg := writeTemp(t, dir, "taggraph.toml", "input = \""+filepath.ToSlash(in)+"\"\noutput = \""+filepath.ToSlash(out)+"\"\nascii = true\n\n[cache]\nenabled = false\n")

	if _, err := execute(t, nil, "restructure", "--config", cfg); err != nil {
		t.Fatalf("restructure: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output not written: %v", err)
	}
}

func TestRestructureMissingInput(t *testing.T) {
	dir := t.TempDir()
	out := writeTemp(t, dir, "graph.json", "keep")

	_, err := execute(t, testEnv{
		config.EnvInput:  filepath.Join(dir, "missing.json"),
		config.EnvOutput: out,
	}, "restructure", "--no-cache")
	if apperr.GetCode(err) != apperr.ErrCodeFileNotFound {
		t.Fatalf("err = %v, want FILE_NOT_FOUND", err)
	}
	if data, _ := os.ReadFile(out); string(data) != "keep" {
		t.Error("existing output should be untouched")
	}
}

func TestRestructureRejectsArgs(t *testing.T) {
	if _, err := execute(t, nil, "restructure", "extra"); err == nil {
		t.Error("restructure should reject positional arguments")
	}
}

func TestBadEnvConfig(t *testing.T) {
	_, err := execute(t, testEnv{config.EnvFormat: "xlsx"}, "restructure", "--no-cache")
	if apperr.GetCode(err) != apperr.ErrCodeInvalidFormat {
		t.Errorf("err = %v, want INVALID_FORMAT", err)
	}
}

func TestConvertUsesCache(t *testing.T) {
	dir := t.TempDir()
	in := writeTemp(t, dir, "catalog.csv", catalogCSV)
	env := testEnv{config.EnvCacheDir: filepath.Join(dir, "cache")}

	first, err := execute(t, env, "convert", in, filepath.Join(dir, "a.json"))
	if err != nil {
		t.Fatalf("first convert: %v", err)
	}
	second, err := execute(t, env, "convert", in, filepath.Join(dir, "b.json"))
	if err != nil {
		t.Fatalf("second convert: %v", err)
	}
	if !strings.Contains(first, iconFresh) || !strings.Contains(second, iconCached) {
		t.Errorf("expected fresh then cached:\n%s\n%s", first, second)
	}

	a, _ := os.ReadFile(filepath.Join(dir, "a.json"))
	b, _ := os.ReadFile(filepath.Join(dir, "b.json"))
	if !bytes.Equal(a, b) {
		t.Error("cached build should produce identical output")
	}
}

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	in := writeTemp(t, dir, "catalog.csv", catalogCSV)
	out := filepath.Join(dir, "graph.json")
	if _, err := execute(t, nil, "convert", "--no-cache", in, out); err != nil {
		t.Fatal(err)
	}

	stdout, err := execute(t, nil, "inspect", out)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	for _, want := range []string{"items", "fantascienza", "Film", "Serie"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("inspect output missing %q:\n%s", want, stdout)
		}
	}

	stdout, err = execute(t, nil, "inspect", "--json", "--top", "1", out)
	if err != nil {
		t.Fatalf("inspect --json: %v", err)
	}
	var s inspectSummary
	if err := json.Unmarshal([]byte(stdout), &s); err != nil {
		t.Fatalf("decode: %v\n%s", err, stdout)
	}
	if s.Items != 2 || s.Tags != 3 || s.Links != 4 {
		t.Errorf("summary = %+v", s)
	}
	if len(s.TopTags) != 1 || s.TopTags[0].Tag != "fantascienza" || s.TopTags[0].Items != 2 {
		t.Errorf("top tags = %+v", s.TopTags)
	}
	if s.Groups["Film"] != 1 || s.Groups["Serie"] != 1 {
		t.Errorf("groups = %+v", s.Groups)
	}
}

func TestRenderDOT(t *testing.T) {
	dir := t.TempDir()
	in := writeTemp(t, dir, "catalog.csv", catalogCSV)
	out := filepath.Join(dir, "graph.json")
	if _, err := execute(t, nil, "convert", "--no-cache", in, out); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, nil, "render", "--format", "dot", out); err != nil {
		t.Fatalf("render: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "graph.dot"))
	if err != nil {
		t.Fatalf("default output: %v", err)
	}
	if !strings.Contains(string(data), `"Stalker" -> "fantascienza";`) {
		t.Errorf("DOT missing link:\n%s", data)
	}

	stdout, err := execute(t, nil, "render", "--format", "dot", "-o", "-", out)
	if err != nil {
		t.Fatalf("render to stdout: %v", err)
	}
	if !strings.HasPrefix(stdout, "digraph G {") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestRenderErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := execute(t, nil, "render", "--format", "png", filepath.Join(dir, "g.json")); apperr.GetCode(err) != apperr.ErrCodeInvalidFormat {
		t.Errorf("unsupported format: err = %v", err)
	}
	if _, err := execute(t, nil, "render", filepath.Join(dir, "g.json")); err == nil {
		t.Error("missing graph should fail")
	}
}

func TestCachePathAndClear(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	env := testEnv{config.EnvCacheDir: dir}

	stdout, err := execute(t, env, "cache", "path")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(stdout) != dir {
		t.Errorf("cache path = %q, want %q", stdout, dir)
	}

	stdout, err = execute(t, env, "cache", "clear")
	if err != nil || !strings.Contains(stdout, "Cache is empty") {
		t.Errorf("clear on missing dir: %q, %v", stdout, err)
	}

	src := t.TempDir()
	in := writeTemp(t, src, "catalog.csv", catalogCSV)
	if _, err := execute(t, env, "convert", in, filepath.Join(src, "g.json")); err != nil {
		t.Fatal(err)
	}
	stdout, err = execute(t, env, "cache", "clear")
	if err != nil || !strings.Contains(stdout, "Cleared 1 cached entries") {
		t.Errorf("clear: %q, %v", stdout, err)
	}
}

func TestCacheDirXDG(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "/tmp/custom-cache")
	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}
	if want := filepath.Join("/tmp/custom-cache", appName); dir != want {
		t.Errorf("cacheDir() = %q, want %q", dir, want)
	}
}

func TestCacheDirHome(t *testing.T) {
	t.Setenv("XDG_CACHE_HOME", "")
	dir, err := cacheDir()
	if err != nil {
		t.Fatalf("cacheDir() error: %v", err)
	}
	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, ".cache", appName); dir != want {
		t.Errorf("cacheDir() = %q, want %q", dir, want)
	}
}

func TestCompletion(t *testing.T) {
	stdout, err := execute(t, nil, "completion", "bash")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "taggraph") {
		t.Error("bash completion should mention the program name")
	}
	if _, err := execute(t, nil, "completion", "tcsh"); err == nil {
		t.Error("unknown shell should fail")
	}
}
