package command

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/joeycumines/canine/internal/config"
)

var canineEnv = []string{
	"CANINE_CONFIG",
	"CANINE_STORE_BACKEND",
	"CANINE_STORE_PATH",
	"CANINE_COLOR",
	"CANINE_LOG_FILE",
	"CANINE_LOG_LEVEL",
	"NO_COLOR",
}

// testConfig returns a config whose history lives in a fresh directory,
// with every environment override cleared.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	for _, name := range canineEnv {
		t.Setenv(name, "")
		if err := os.Unsetenv(name); err != nil {
			t.Fatal(err)
		}
	}
	cfg := config.NewConfig()
	cfg.SetGlobalOption(config.KeyStoreBackend, "fs")
	cfg.SetGlobalOption(config.KeyStorePath, t.TempDir())
	return cfg
}

// runCommand runs cmd through a registry, as the binary would.
func runCommand(t *testing.T, cmd Command, args ...string) (string, string, error) {
	t.Helper()
	r := NewRegistry()
	r.Register(cmd)
	var stdout, stderr bytes.Buffer
	err := r.Run(append([]string{cmd.Name()}, args...), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
