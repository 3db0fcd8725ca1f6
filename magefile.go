//go:build mage
// +build mage

package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var (
	binDir  = "bin"
	appName = "veciapp-payments"
)

var Default = Build

// Run starts the API with the local .env.
func Run() error {
	fmt.Println("Running (go run) ./cmd/api ...")
	return sh.RunV("go", "run", "./cmd/api")
}

// Build compiles the API and the tools into bin/.
func Build() error {
	mg.Deps(Tidy)

	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return err
	}

	targets := map[string]string{
		appName:              "./cmd/api",
		appName + "-migrate": "./cmd/tools/migrate",
		"wompi-mockwebhook":  "./cmd/tools/mockwebhook",
	}
	// go-sqlite3 needs cgo; release builds target mysql/postgres only
	env := map[string]string{"CGO_ENABLED": "0"}
	for name, pkg := range targets {
		out := filepath.Join(binDir, name+exeSuffix())
		fmt.Println("Building:", out)
		if err := sh.RunWithV(env, "go", "build", "-trimpath", "-o", out, pkg); err != nil {
			return err
		}
	}
	return nil
}

func Test() error {
	fmt.Println("Testing...")
	return sh.RunV("go", "test", "./...", "-count=1")
}

func TestRace() error {
	fmt.Println("Testing with -race...")
	if runtime.GOOS == "windows" {
		fmt.Println("Note: -race on Windows may be unsupported/unstable depending on your Go toolchain.")
	}
	return sh.RunV("go", "test", "./...", "-race", "-count=1")
}

func Fmt() error {
	fmt.Println("Formatting...")
	return sh.RunV("gofmt", "-w", "./cmd", "./internal", "./magefile.go")
}

func Lint() error {
	fmt.Println("Linting (golangci-lint)...")
	if _, err := exec.LookPath("golangci-lint"); err != nil {
		return fmt.Errorf("golangci-lint not found. Install with: mage Tools")
	}
	return sh.RunV("golangci-lint", "run", "--timeout=3m", "./...")
}

func Check() error {
	mg.Deps(Fmt, Lint, Test)
	fmt.Println("Check OK.")
	return nil
}

func Tidy() error {
	fmt.Println("Tidying go.mod/go.sum...")
	return sh.RunV("go", "mod", "tidy")
}

func Clean() error {
	fmt.Println("Cleaning...")
	return os.RemoveAll(binDir)
}

// Migrate creates or updates the payment tables using DB_DRIVER and DB_DSN.
func Migrate() error {
	if os.Getenv("DB_DSN") == "" {
		return errors.New("DB_DSN is not set")
	}
	return sh.RunV("go", "run", "./cmd/tools/migrate")
}

// Webhook sends a signed test delivery: TX=<transaction id> STATUS=<gateway status> mage webhook
func Webhook() error {
	tx := os.Getenv("TX")
	if tx == "" {
		return errors.New("TX is not set")
	}
	status := os.Getenv("STATUS")
	if status == "" {
		status = "APPROVED"
	}
	return sh.RunV("go", "run", "./cmd/tools/mockwebhook", "-tx", tx, "-status", status)
}

// Tools installs golangci-lint.
func Tools() error {
	fmt.Println("Installing tools (golangci-lint)...")
	if err := sh.RunV("go", "install", "github.com/golangci/golangci-lint/v2/cmd/golangci-lint@latest"); err != nil {
		return err
	}
	if _, err := exec.LookPath("golangci-lint"); err != nil && !errors.Is(err, exec.ErrNotFound) {
		return err
	}
	fmt.Println("Tools installed. Ensure GOBIN/GOPATH/bin is in PATH.")
	return nil
}

func exeSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}
