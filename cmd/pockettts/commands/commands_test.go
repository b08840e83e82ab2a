package commands

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/haivivi/pockettts/pkg/audio/codec/wav"
)

// setupTestEnv points the config file and home directory at a temp dir.
func setupTestEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	for _, k := range []string{"POCKET_TTS_VARIANT", "POCKET_TTS_MODEL_DIR", "POCKET_TTS_VOICE", "POCKET_TTS_CACHE_DIR"} {
		t.Setenv(k, "")
	}
	return dir
}

func runCmd(t *testing.T, dir string, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	oldStdout, oldStderr := os.Stdout, os.Stderr
	rOut, wOut, _ := os.Pipe()
	rErr, wErr, _ := os.Pipe()
	os.Stdout, os.Stderr = wOut, wErr

	var outBuf, errBuf bytes.Buffer
	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); outBuf.ReadFrom(rOut) }()
	go func() { defer wg.Done(); errBuf.ReadFrom(rErr) }()

	cfgFile, contextName, outputFile, inputFile = "", "", "", ""
	formatOutput, verbose, noCache = "yaml", false, false
	voicePath, pauses, longText, cacheAll = "", false, false, false

	rootCmd.SetArgs(append([]string{"--config", filepath.Join(dir, "config.yaml")}, args...))
	err = rootCmd.Execute()

	wOut.Close()
	wErr.Close()
	wg.Wait()
	os.Stdout, os.Stderr = oldStdout, oldStderr
	return outBuf.String(), errBuf.String(), err
}

func writeVoice(t *testing.T, dir string) string {
	t.Helper()
	samples := make([]float32, 24000)
	for i := range samples {
		samples[i] = float32(0.3 * math.Sin(2*math.Pi*160*float64(i)/24000))
	}
	p := filepath.Join(dir, "speaker.wav")
	f, err := os.Create(p)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := wav.Encode(f, samples, 24000); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestConfigContexts(t *testing.T) {
	dir := setupTestEnv(t)

	if _, _, err := runCmd(t, dir, "config", "add-context", "local", "--variant", "b6369a24", "--temperature", "0.5"); err != nil {
		t.Fatalf("add-context: %v", err)
	}
	if _, _, err := runCmd(t, dir, "config", "add-context", "other", "--voice", "me.wav"); err != nil {
		t.Fatalf("add-context: %v", err)
	}

	stdout, _, err := runCmd(t, dir, "config", "get-context")
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(stdout) != "local" {
		t.Errorf("current context = %q; want local", stdout)
	}

	if _, _, err := runCmd(t, dir, "config", "use-context", "other"); err != nil {
		t.Fatal(err)
	}
	stdout, _, err = runCmd(t, dir, "config", "list-contexts", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	var rows []map[string]string
	if err := json.Unmarshal([]byte(stdout), &rows); err != nil {
		t.Fatalf("list-contexts output %q: %v", stdout, err)
	}
	if len(rows) != 2 || rows[1]["name"] != "other" || rows[1]["current"] != "*" {
		t.Errorf("rows = %v", rows)
	}

	stdout, _, err = runCmd(t, dir, "config", "view")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "temperature: \"0.5\"") && !strings.Contains(stdout, "temperature: 0.5") {
		t.Errorf("view output missing temperature:\n%s", stdout)
	}

	if _, _, err := runCmd(t, dir, "config", "use-context", "missing"); err == nil {
		t.Error("use-context missing succeeded")
	}
}

func TestGenerate(t *testing.T) {
	dir := setupTestEnv(t)
	out := filepath.Join(dir, "hello.wav")

	stdout, _, err := runCmd(t, dir, "generate", "Hello.", "-o", out, "--no-cache")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.Contains(stdout, "samples: 17280") {
		t.Errorf("result:\n%s", stdout)
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	samples, rate, channels, err := wav.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	if len(samples) != 17280 || rate != 24000 || channels != 1 {
		t.Errorf("wav = %d samples at %d Hz, %d channels", len(samples), rate, channels)
	}
}

func TestGenerateJobFile(t *testing.T) {
	dir := setupTestEnv(t)
	out := filepath.Join(dir, "job.wav")
	job := filepath.Join(dir, "job.yaml")
	content := "text: Hello there. General Kenobi.\npauses: true\noutput: " + out + "\n"
	if err := os.WriteFile(job, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := runCmd(t, dir, "generate", "-f", job, "--no-cache"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output not written: %v", err)
	}
}

func TestGenerateNoText(t *testing.T) {
	dir := setupTestEnv(t)
	_, _, err := runCmd(t, dir, "generate", "--no-cache")
	if err == nil || !strings.Contains(err.Error(), "no text") {
		t.Errorf("error = %v; want no text", err)
	}
}

func TestStream(t *testing.T) {
	dir := setupTestEnv(t)
	out := filepath.Join(dir, "hello.pcm")
	stdout, _, err := runCmd(t, dir, "stream", "Hello.", "-o", out, "--no-cache")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 2*17280 {
		t.Errorf("pcm bytes = %d; want %d", len(data), 2*17280)
	}
	if !strings.Contains(stdout, "chunks: 2") {
		t.Errorf("result:\n%s", stdout)
	}
}

func TestStreamToStdout(t *testing.T) {
	dir := setupTestEnv(t)
	stdout, _, err := runCmd(t, dir, "stream", "Hello.", "--no-cache")
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	if len(stdout) != 2*17280 {
		t.Errorf("stdout bytes = %d; want %d", len(stdout), 2*17280)
	}
}

func TestVoiceExportAndInfo(t *testing.T) {
	dir := setupTestEnv(t)
	speaker := writeVoice(t, dir)
	prompt := filepath.Join(dir, "speaker.safetensors")

	if _, _, err := runCmd(t, dir, "voice", "export", speaker, "-o", prompt, "--no-cache"); err != nil {
		t.Fatalf("voice export: %v", err)
	}
	stdout, _, err := runCmd(t, dir, "voice", "info", prompt, "--no-cache", "--format", "json")
	if err != nil {
		t.Fatalf("voice info: %v", err)
	}
	var info VoiceInfo
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		t.Fatal(err)
	}
	if info.Frames == 0 || info.Dim == 0 {
		t.Errorf("info = %+v", info)
	}

	out := filepath.Join(dir, "cloned.wav")
	if _, _, err := runCmd(t, dir, "generate", "Hello.", "--voice", prompt, "-o", out, "--no-cache"); err != nil {
		t.Errorf("generate with prompt: %v", err)
	}
}

func TestModels(t *testing.T) {
	dir := setupTestEnv(t)
	stdout, _, err := runCmd(t, dir, "models", "list", "--format", "table")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "b6369a24") || !strings.Contains(stdout, "builtin") {
		t.Errorf("models list:\n%s", stdout)
	}

	stdout, _, err = runCmd(t, dir, "models", "info", "--no-cache")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, "sample_rate: 24000") {
		t.Errorf("models info:\n%s", stdout)
	}
}

func TestCache(t *testing.T) {
	dir := setupTestEnv(t)
	speaker := writeVoice(t, dir)
	out := filepath.Join(dir, "cached.wav")

	if _, _, err := runCmd(t, dir, "generate", "Hello.", "--voice", speaker, "-o", out); err != nil {
		t.Fatalf("generate: %v", err)
	}
	stdout, _, err := runCmd(t, dir, "cache", "list", "--format", "json")
	if err != nil {
		t.Fatal(err)
	}
	var rows []map[string]string
	if err := json.Unmarshal([]byte(stdout), &rows); err != nil {
		t.Fatalf("cache list output %q: %v", stdout, err)
	}
	if len(rows) != 1 {
		t.Fatalf("cached entries = %d; want 1", len(rows))
	}

	_, stderr, err := runCmd(t, dir, "cache", "clear")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stderr, "Removed 1") {
		t.Errorf("clear output: %q", stderr)
	}

	if _, _, err := runCmd(t, dir, "cache", "list", "--no-cache"); err == nil {
		t.Error("cache list with --no-cache succeeded")
	}
}
