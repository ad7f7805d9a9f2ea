package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/carina-lang/carina/internal/ast"
	"github.com/carina-lang/carina/internal/ir"
	"github.com/carina-lang/carina/internal/logging"
	"github.com/carina-lang/carina/internal/parser"
	"github.com/carina-lang/carina/internal/provider"
	"github.com/carina-lang/carina/internal/resolver"
	"github.com/carina-lang/carina/internal/state"
	"github.com/carina-lang/carina/providers/aws"
	"github.com/carina-lang/carina/providers/testprovider"
)

// entryPointFor mirrors the teacher's plan/apply argument handling: no
// argument means "main.crn in the current directory", a directory
// argument means "main.crn inside that directory", a file argument is
// used verbatim.
func entryPointFor(args []string) (dir, file string, err error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", "", fmt.Errorf("failed to get working directory: %w", err)
	}
	if len(args) == 0 {
		return wd, filepath.Join(wd, "main.crn"), nil
	}

	absPath, err := filepath.Abs(args[0])
	if err != nil {
		return "", "", fmt.Errorf("failed to resolve path %s: %w", args[0], err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return "", "", fmt.Errorf("failed to stat path %s: %w", args[0], err)
	}
	if info.IsDir() {
		return absPath, filepath.Join(absPath, "main.crn"), nil
	}
	return filepath.Dir(absPath), absPath, nil
}

// loadAndResolve parses entryFile and runs the resolver against it,
// registering providerReg's known types so reference resolution can tell
// computed from non-computed attributes.
func loadAndResolve(dir, entryFile string, providerReg *provider.Registry) (*resolver.Result, error) {
	src, err := os.ReadFile(entryFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", entryFile, err)
	}

	astFile, errs := parser.Parse(entryFile, string(src))
	if len(errs) > 0 {
		msg := fmt.Sprintf("%d parse error(s) in %s:", len(errs), entryFile)
		for _, e := range errs {
			msg += "\n  " + e.Error()
		}
		return nil, errors.New(msg)
	}

	r := resolver.New(providerReg.Schemas())
	return r.Resolve(astFile, dir)
}

// buildProviderRegistry registers every sample provider known to this
// binary. The aws provider's region comes from the .crn `provider aws {
// region = "..." }` block when present, defaulting to us-east-1.
func buildProviderRegistry(providers []*ast.Provider) *provider.Registry {
	reg := provider.NewRegistry()
	reg.Register(testprovider.New())

	region := "us-east-1"
	for _, p := range providers {
		if p.Name != "aws" {
			continue
		}
		for _, a := range p.Attrs {
			if a.Name != "region" {
				continue
			}
			if lit, ok := a.Value.(*ast.StringLit); ok {
				region = lit.Value
			}
		}
	}
	reg.Register(aws.New(region))
	return reg
}

// backendFromAST converts a `backend <kind> { ... }` block into a
// state.BackendConfig. Backend blocks only ever contain literal attribute
// values -- they configure where state lives, so they can't reference a
// resource the backend itself will be used to store.
func backendFromAST(b *ast.Backend, dir string) (state.BackendConfig, error) {
	if b == nil {
		return state.BackendConfig{Kind: "local", Local: state.LocalConfig{Path: filepath.Join(dir, ".carina", "state.json")}}, nil
	}

	get := func(name string) (string, bool) {
		for _, a := range b.Attrs {
			if a.Name != name {
				continue
			}
			if lit, ok := a.Value.(*ast.StringLit); ok {
				return lit.Value, true
			}
		}
		return "", false
	}
	getBool := func(name string) bool {
		for _, a := range b.Attrs {
			if a.Name != name {
				continue
			}
			if lit, ok := a.Value.(*ast.BoolLit); ok {
				return lit.Value
			}
		}
		return false
	}

	switch b.Kind {
	case "", "local":
		path, ok := get("path")
		if !ok {
			path = filepath.Join(dir, ".carina", "state.json")
		} else if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		return state.BackendConfig{Kind: "local", Local: state.LocalConfig{Path: path}}, nil
	case "object_store":
		bucket, _ := get("bucket")
		key, _ := get("key")
		region, _ := get("region")
		profile, _ := get("profile")
		return state.BackendConfig{Kind: "object_store", ObjectStore: state.ObjectStoreConfig{
			Bucket: bucket, Key: key, Region: region, Profile: profile,
			Encrypt: getBool("encrypt"), AutoCreate: getBool("auto_create"),
		}}, nil
	default:
		return state.BackendConfig{}, fmt.Errorf("unknown backend kind %q", b.Kind)
	}
}

// openState constructs the configured Backend and loads its current
// document, treating "never saved" as an empty document rather than an
// error -- the first `carina plan` in a fresh workspace has nothing to
// compare against yet.
func openState(ctx context.Context, cfg state.BackendConfig) (state.Backend, *ir.StateDocument, error) {
	backend, err := state.NewBackend(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to configure state backend: %w", err)
	}
	doc, err := backend.Load(ctx)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			return backend, ir.NewStateDocument(""), nil
		}
		return nil, nil, fmt.Errorf("failed to load state: %w", err)
	}
	return backend, doc, nil
}

func init() {
	logging.Init(os.Getenv("CARINA_LOG_LEVEL"))
}

const lockTimeout = 30 * time.Second

// lockWho identifies the current invocation for the state lock file's
// "who" field, the way the teacher's lock.go records a human-readable
// holder instead of just a PID.
func lockWho() string {
	host, _ := os.Hostname()
	if u, err := user.Current(); err == nil {
		return fmt.Sprintf("%s@%s", u.Username, host)
	}
	return host
}

// confirm prompts the user with a y/n question, matching the teacher's
// apply.go's fmt.Scanln-based approval prompt.
func confirm(prompt string) bool {
	fmt.Printf("%s (y/n): ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, _ := reader.ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
