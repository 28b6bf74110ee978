package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/samse/lottiekit/internal/shared"
	"github.com/samse/lottiekit/internal/tasks"
	tu "github.com/samse/lottiekit/internal/testing"
	"github.com/urfave/cli/v3"
)

func testConfig(t *testing.T) *shared.Config {
	t.Helper()
	dir := t.TempDir()
	config := shared.DefaultConfig()
	config.Cache.Dir = filepath.Join(dir, "cache")
	config.Database.Path = filepath.Join(dir, "index.db")
	config.Loader.Workers = 2
	return config
}

func newTestRunner(t *testing.T) (*Runner, *bytes.Buffer) {
	t.Helper()
	output := &bytes.Buffer{}
	return NewRunner(RunnerOpts{
		Config: testConfig(t),
		Logger: shared.DiscardLogger(),
		Output: output,
	}), output
}

func run(r *Runner, args ...string) error {
	app := &cli.Command{Name: "lottiekit", Commands: r.register()}
	return app.Run(context.Background(), append([]string{"lottiekit"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}

			runner := NewRunner(RunnerOpts{
				Config:     config,
				ConfigPath: "/test/path/config.toml",
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
			if runner.httpClient != nil {
				t.Error("expected httpClient to stay nil so the remote config builds one")
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, true); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			expected := `{"key":"value"}` + "\n"
			if output.String() != expected {
				t.Errorf("expected %q, got %q", expected, output.String())
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}})

			err := runner.writeJSON(make(chan int), false)
			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"}, false)
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Fatalf("command at index %d is nil", i)
			}
			names[cmd.Name] = true
		}
		for _, want := range []string{"setup", "fetch", "inspect", "play", "cache"} {
			if !names[want] {
				t.Errorf("expected %q to be registered", want)
			}
		}
	})

	t.Run("playbackOptions", func(t *testing.T) {
		runner, _ := newTestRunner(t)
		runner.config.Playback.RepeatMode = "reverse"
		runner.config.Playback.Speed = 2

		opts, err := runner.playbackOptions()
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if opts.Speed != 2 || opts.RepeatMode.String() != "reverse" || opts.RepeatCount != -1 {
			t.Errorf("unexpected options %+v", opts)
		}

		runner.config.Playback.RepeatMode = "bounce"
		if _, err := runner.playbackOptions(); err == nil {
			t.Error("expected error for unknown repeat mode")
		}
	})
}

func TestSetup(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")
	tu.MustWriteFile(t, configPath, `
[cache]
dir = "`+filepath.ToSlash(filepath.Join(dir, "cache"))+`"

[database]
path = "`+filepath.ToSlash(filepath.Join(dir, "index.db"))+`"
`)

	runner, output := newTestRunner(t)
	if err := run(runner, "setup", "--config", configPath); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if info, err := os.Stat(filepath.Join(dir, "cache")); err != nil || !info.IsDir() {
		t.Errorf("expected cache directory to be created, got %v", err)
	}
	tu.AssertFileExists(t, filepath.Join(dir, "index.db"))
	if !strings.Contains(output.String(), "2 migrations applied") {
		t.Errorf("expected migration count in output, got %q", output.String())
	}

	output.Reset()
	if err := run(runner, "setup", "--config", configPath); err != nil {
		t.Fatalf("second setup failed: %v", err)
	}
	if !strings.Contains(output.String(), "0 migrations applied") {
		t.Errorf("expected setup to be idempotent, got %q", output.String())
	}

	t.Run("invalid config is not overwritten", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "config.toml")
		tu.MustWriteFile(t, bad, "[playback]\nrender_mode = \"gpu\"\n")

		err := run(runner, "setup", "--config", bad)
		if !errors.Is(err, shared.ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
		if got := tu.MustReadFile(t, bad); !strings.Contains(got, "gpu") {
			t.Errorf("config file was rewritten: %q", got)
		}
	})
}

func TestFetch(t *testing.T) {
	srv := tu.NewCountingServer(t, http.StatusOK, tu.MinimalComposition)
	runner, output := newTestRunner(t)
	out := filepath.Join(t.TempDir(), "anim.json")

	if err := run(runner, "fetch", "--url", srv.URL+"/anim.json", "--out", out); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if got := tu.MustReadFile(t, out); got != tu.MinimalComposition {
		t.Errorf("unexpected file content %q", got)
	}
	if !strings.Contains(output.String(), "Downloaded") {
		t.Errorf("expected download message, got %q", output.String())
	}

	output.Reset()
	if err := run(runner, "fetch", "--url", srv.URL+"/anim.json", "--out", out); err != nil {
		t.Fatalf("second fetch failed: %v", err)
	}
	if !strings.Contains(output.String(), "Already cached") {
		t.Errorf("expected cached message, got %q", output.String())
	}
	if hits := srv.Hits("/anim.json"); hits != 1 {
		t.Errorf("expected 1 request, got %d", hits)
	}

	t.Run("default path is inside the cache directory", func(t *testing.T) {
		if err := run(runner, "fetch", "--url", srv.URL+"/other.json"); err != nil {
			t.Fatalf("fetch failed: %v", err)
		}
		matches, _ := filepath.Glob(filepath.Join(runner.config.Cache.Dir, "*.json"))
		if len(matches) != 1 {
			t.Errorf("expected one cached file, got %v", matches)
		}
	})

	t.Run("server error", func(t *testing.T) {
		failing := tu.NewCountingServer(t, http.StatusNotFound, "")
		target := filepath.Join(t.TempDir(), "missing.json")

		err := run(runner, "fetch", "--url", failing.URL+"/missing.json", "--out", target)
		if !errors.Is(err, shared.ErrNetwork) {
			t.Errorf("expected ErrNetwork, got %v", err)
		}
		tu.AssertNoFile(t, target)
	})
}

func TestInspect(t *testing.T) {
	t.Run("json report", func(t *testing.T) {
		runner, output := newTestRunner(t)
		if err := run(runner, "inspect", "--format", "json", "--api-level", "28", "res:2"); err != nil {
			t.Fatalf("inspect failed: %v", err)
		}
		for _, want := range []string{`"name": "pulse"`, `"source": "res:2"`, `"api_level": 28`} {
			if !strings.Contains(output.String(), want) {
				t.Errorf("expected %s in report:\n%s", want, output.String())
			}
		}
	})

	t.Run("render mode follows api level", func(t *testing.T) {
		runner, output := newTestRunner(t)
		if err := run(runner, "inspect", "--format", "json", "--api-level", "24", "res:1"); err != nil {
			t.Fatalf("inspect failed: %v", err)
		}
		if !strings.Contains(output.String(), `"render_mode": "software"`) {
			t.Errorf("expected software rendering for a dash pattern on api 24:\n%s", output.String())
		}
	})

	t.Run("writes report to file", func(t *testing.T) {
		runner, output := newTestRunner(t)
		path := filepath.Join(t.TempDir(), "pulse.md")
		if err := run(runner, "inspect", "--format", "md", "--output", path, "asset:pulse.json"); err != nil {
			t.Fatalf("inspect failed: %v", err)
		}
		if output.Len() != 0 {
			t.Errorf("expected nothing on stdout, got %q", output.String())
		}
		if got := tu.MustReadFile(t, path); !strings.HasPrefix(got, "# pulse") {
			t.Errorf("unexpected markdown report %q", got)
		}
	})

	t.Run("errors", func(t *testing.T) {
		runner, _ := newTestRunner(t)
		tests := []struct {
			name string
			args []string
			want error
		}{
			{"missing source", []string{"inspect"}, shared.ErrMissingArgument},
			{"bad format", []string{"inspect", "--format", "xml", "res:1"}, shared.ErrInvalidFlag},
			{"bad render mode", []string{"inspect", "--render-mode", "gpu", "res:1"}, shared.ErrInvalidArgument},
			{"unknown resource", []string{"inspect", "res:99"}, shared.ErrNotFound},
			{"malformed file", []string{"inspect", writeBadComposition(t)}, shared.ErrMalformedData},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if err := run(runner, tt.args...); !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}
	})
}

func writeBadComposition(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bad.json")
	tu.MustWriteFile(t, path, `{"fr": 0}`)
	return path
}

func TestExport(t *testing.T) {
	t.Run("writes reports and manifest", func(t *testing.T) {
		runner, output := newTestRunner(t)
		dir := filepath.Join(t.TempDir(), "out")
		if err := run(runner, "export", "--dir", dir, "--format", "md", "res:2", "res:1"); err != nil {
			t.Fatalf("export failed: %v", err)
		}
		if !strings.Contains(output.String(), "Exported 2 of 2 sources") {
			t.Errorf("unexpected output %q", output.String())
		}
		tu.AssertFileExists(t, filepath.Join(dir, "01_pulse.md"))
		tu.AssertFileExists(t, filepath.Join(dir, "02_loading.md"))
		tu.AssertFileExists(t, filepath.Join(dir, tasks.ManifestName))
	})

	t.Run("failed source still writes manifest", func(t *testing.T) {
		runner, output := newTestRunner(t)
		dir := filepath.Join(t.TempDir(), "out")
		err := run(runner, "export", "--dir", dir, "res:2", "res:99")
		if err == nil || !strings.Contains(err.Error(), "1 of 2 sources failed") {
			t.Fatalf("expected a failure summary, got %v", err)
		}
		if !strings.Contains(output.String(), "Exported 1 of 2 sources") {
			t.Errorf("unexpected output %q", output.String())
		}
		tu.AssertFileExists(t, filepath.Join(dir, tasks.ManifestName))
	})

	t.Run("no sources", func(t *testing.T) {
		runner, _ := newTestRunner(t)
		if err := run(runner, "export"); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})
}

func TestCache(t *testing.T) {
	srv := tu.NewCountingServer(t, http.StatusOK, tu.MinimalComposition)
	runner, output := newTestRunner(t)

	for _, name := range []string{"/a.json", "/b.json"} {
		if err := run(runner, "fetch", "--url", srv.URL+name); err != nil {
			t.Fatalf("fetch %s failed: %v", name, err)
		}
	}

	t.Run("list", func(t *testing.T) {
		output.Reset()
		if err := run(runner, "cache", "list", "--json", "--pretty=false"); err != nil {
			t.Fatalf("cache list failed: %v", err)
		}
		got := output.String()
		for _, want := range []string{srv.URL + "/a.json", srv.URL + "/b.json", `"present":true`} {
			if !strings.Contains(got, want) {
				t.Errorf("expected %s in listing:\n%s", want, got)
			}
		}

		output.Reset()
		if err := run(runner, "cache", "list", "--prefix", srv.URL+"/a"); err != nil {
			t.Fatalf("cache list failed: %v", err)
		}
		if strings.Contains(output.String(), "/b.json") || !strings.Contains(output.String(), "(1)") {
			t.Errorf("expected only a.json, got:\n%s", output.String())
		}
	})

	t.Run("prune dry run keeps files", func(t *testing.T) {
		output.Reset()
		if err := run(runner, "cache", "prune", "--all", "--dry-run"); err != nil {
			t.Fatalf("dry run failed: %v", err)
		}
		if !strings.Contains(output.String(), "2 entries would be pruned") {
			t.Errorf("unexpected dry run output:\n%s", output.String())
		}
		matches, _ := filepath.Glob(filepath.Join(runner.config.Cache.Dir, "*.json"))
		if len(matches) != 2 {
			t.Errorf("expected files to survive a dry run, got %v", matches)
		}
	})

	t.Run("prune recent entries is a no-op", func(t *testing.T) {
		output.Reset()
		if err := run(runner, "cache", "prune"); err != nil {
			t.Fatalf("prune failed: %v", err)
		}
		if !strings.Contains(output.String(), "Pruned 0 entries") {
			t.Errorf("unexpected prune output:\n%s", output.String())
		}
	})

	t.Run("prune all", func(t *testing.T) {
		output.Reset()
		if err := run(runner, "cache", "prune", "--all"); err != nil {
			t.Fatalf("prune failed: %v", err)
		}
		if !strings.Contains(output.String(), "Pruned 2 entries") {
			t.Errorf("unexpected prune output:\n%s", output.String())
		}
		matches, _ := filepath.Glob(filepath.Join(runner.config.Cache.Dir, "*.json"))
		if len(matches) != 0 {
			t.Errorf("expected cached files to be removed, got %v", matches)
		}
	})
}
