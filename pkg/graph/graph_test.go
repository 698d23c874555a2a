package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/isia-imav/taggraph/pkg/record"
)

func sampleGraph() *Graph {
	b := NewBuilder(Options{})
	r := rec("Roma città aperta", "movie", "guerra, neorealismo")
	r.Fields["Anno"] = "1945"
	r.Fields["Link Wikipedia"] = "https://it.wikipedia.org/wiki/Roma_citt%C3%A0_aperta?a=1&b=2"
	b.Add(r)
	b.Add(rec("Film B", "series", "guerra, 🎬"))
	return b.Graph()
}

func TestMarshalShape(t *testing.T) {
	data, err := Marshal(sampleGraph(), WriteOptions{})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var raw struct {
		Nodes []map[string]any `json:"nodes"`
		Links []map[string]any `json:"links"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	item := raw.Nodes[0]
	for _, key := range []string{"id", "type", "group", "value", "consigliati", "descrizione", "regista", "anno", "valutazione", "wikiLink", "streamingLink"} {
		if _, ok := item[key]; !ok {
			t.Errorf("item node missing key %q", key)
		}
	}
	if item["anno"] != "1945" || item["value"] != float64(1) || item["type"] != "item" {
		t.Errorf("item = %v", item)
	}

	var tag map[string]any
	for _, n := range raw.Nodes {
		if n["type"] == "tag" {
			tag = n
			break
		}
	}
	if len(tag) != 4 {
		t.Errorf("tag node keys = %v, want id/type/group/value", tag)
	}
	if raw.Links[0]["source"] != "Roma città aperta" || raw.Links[0]["target"] != "guerra" {
		t.Errorf("first link = %v", raw.Links[0])
	}
}

func TestMarshalFormatting(t *testing.T) {
	data, err := Marshal(sampleGraph(), WriteOptions{})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(data)

	if !strings.HasPrefix(s, "{\n  \"nodes\": [\n    {\n      \"id\": ") {
		t.Errorf("unexpected indentation:\n%s", s[:min(len(s), 80)])
	}
	if !strings.Contains(s, `"id": "Roma città aperta",`+"\n"+`      "type": "item"`) {
		t.Error("item keys should start with id followed by type")
	}
	if !strings.Contains(s, "Roma città aperta") || !strings.Contains(s, "🎬") {
		t.Error("non-ASCII text should be written literally by default")
	}
	if !strings.Contains(s, "?a=1&b=2") {
		t.Error("HTML characters should not be escaped")
	}
}

func TestMarshalEscapeASCII(t *testing.T) {
	data, err := Marshal(sampleGraph(), WriteOptions{EscapeASCII: true})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, b := range data {
		if b >= 0x80 {
			t.Fatalf("output contains non-ASCII byte %#x", b)
		}
	}
	s := string(data)
	if !strings.Contains(s, `Roma citt\u00e0 aperta`) {
		t.Error(`à should be escaped as \u00e0`)
	}
	if !strings.Contains(s, `\ud83c\udfac`) {
		t.Error("characters above the BMP should use surrogate pairs")
	}

	g, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if g.Nodes[0].ID != "Roma città aperta" {
		t.Errorf("decoded id = %q", g.Nodes[0].ID)
	}
}

func TestMarshalEmpty(t *testing.T) {
	data, err := Marshal(&Graph{}, WriteOptions{})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := "{\n  \"nodes\": [],\n  \"links\": []\n}\n"
	if string(data) != want {
		t.Errorf("Marshal(empty) = %q, want %q", data, want)
	}
}

func TestRoundTrip(t *testing.T) {
	orig := sampleGraph()
	var buf bytes.Buffer
	if err := Write(&buf, orig, WriteOptions{}); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(got.Nodes) != len(orig.Nodes) || len(got.Links) != len(orig.Links) {
		t.Fatalf("round trip: %d nodes / %d links, want %d / %d",
			len(got.Nodes), len(got.Links), len(orig.Nodes), len(orig.Links))
	}
	if got.Stats() != orig.Stats() {
		t.Errorf("stats = %+v, want %+v", got.Stats(), orig.Stats())
	}
	if got.Nodes[0].Item == nil || got.Nodes[0].Item.Year.String() != "1945" {
		t.Errorf("item details lost: %+v", got.Nodes[0])
	}
	for _, n := range got.Nodes {
		if n.IsTag() && n.Item != nil {
			t.Errorf("tag %q decoded with item details", n.ID)
		}
	}
}

func TestJSONScalarsKeepType(t *testing.T) {
	input := `[{"Titolo": "Stalker", "Tipologia": "Film", "Anno": 1979, "Valutazione (1-5)": 4.5,
		"Consigliati": true, "Regista/Creatore": "Tarkovskij", "Tag tematici (keywords)": "zona"}]`
	src := record.NewJSON(record.BytesOpener([]byte(input)))
	b, err := Build(src.Records(), Options{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	data, err := Marshal(b.Graph(), WriteOptions{})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, want := range []string{`"anno": 1979,`, `"valutazione": 4.5,`, `"consigliati": true,`, `"regista": "Tarkovskij",`} {
		if !bytes.Contains(data, []byte(want)) {
			t.Errorf("output missing %s:\n%s", want, data)
		}
	}

	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	again, err := Marshal(got, WriteOptions{})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(data, again) {
		t.Errorf("re-encoded graph differs:\n%s\n---\n%s", data, again)
	}
	if y := got.Nodes[0].Item.Year; y.String() != "1979" {
		t.Errorf("year = %+v", y)
	}
}

func TestValueJSON(t *testing.T) {
	tests := []struct {
		in      string
		want    Value
		wantErr bool
	}{
		{in: `"Città"`, want: Value{Text: "Città"}},
		{in: `null`, want: Value{}},
		{in: `12`, want: Value{Text: "12", Literal: json.RawMessage("12")}},
		{in: `false`, want: Value{Text: "false", Literal: json.RawMessage("false")}},
		{in: `[1]`, wantErr: true},
	}
	for _, tt := range tests {
		var v Value
		err := json.Unmarshal([]byte(tt.in), &v)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: %v", tt.in, err)
			continue
		}
		if v.Text != tt.want.Text || string(v.Literal) != string(tt.want.Literal) {
			t.Errorf("%s: got %+v, want %+v", tt.in, v, tt.want)
		}
		out, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if tt.in != "null" && string(out) != tt.in {
			t.Errorf("%s: re-encoded as %s", tt.in, out)
		}
	}
}

func TestReadValidation(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{
			name:    "duplicate id",
			input:   `{"nodes": [{"id": "a", "type": "tag"}, {"id": "a", "type": "tag"}], "links": []}`,
			wantErr: ErrDuplicateNodeID,
		},
		{
			name:    "unknown target",
			input:   `{"nodes": [{"id": "a", "type": "item"}], "links": [{"source": "a", "target": "b"}]}`,
			wantErr: ErrUnknownLinkEndpoint,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.input))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if _, err := Unmarshal([]byte(`{"nodes": [`)); err == nil {
		t.Error("malformed JSON should fail")
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "collezione.json")

	if err := WriteFile(path, sampleGraph(), WriteOptions{}); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	g, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(g.Nodes) != len(sampleGraph().Nodes) {
		t.Errorf("nodes = %d", len(g.Nodes))
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0644 {
		t.Errorf("mode = %v, want 0644", info.Mode().Perm())
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temporary files left behind: %v", entries)
	}
}

func TestWriteFileMissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "collezione.json")
	if err := WriteFile(path, sampleGraph(), WriteOptions{}); err == nil {
		t.Fatal("expected error for missing directory")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("no output should be created")
	}
}

func TestTopTags(t *testing.T) {
	g := build(t, Options{},
		rec("A", "movie", "drama, war"),
		rec("B", "movie", "drama, comedy"),
		rec("C", "movie", "drama, war"),
	)
	top := g.TopTags(2)
	if len(top) != 2 || top[0].ID != "drama" || top[1].ID != "war" {
		t.Errorf("TopTags(2) = %+v", top)
	}
	if all := g.TopTags(0); len(all) != 3 {
		t.Errorf("TopTags(0) = %d tags, want 3", len(all))
	}
}
