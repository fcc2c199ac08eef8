package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"strings"

	"github.com/pemasak/pws/internal/core/deployment"
	"github.com/pemasak/pws/internal/core/validation"
	"github.com/pemasak/pws/internal/shell/store"
	"github.com/spf13/pflag"
)

// =============================================================================
// Project Commands
// =============================================================================

func runProject(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return configError("project", errors.New("expected subcommand: create or list"))
	}
	switch args[0] {
	case "create":
		return runProjectCreate(ctx, args[1:], stdout)
	case "list":
		return runProjectList(ctx, args[1:], stdout)
	default:
		return configError("project", fmt.Errorf("unknown subcommand %q", args[0]))
	}
}

// runProjectCreate registers a project, creating its owner on first use.
func runProjectCreate(ctx context.Context, args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("project create", pflag.ContinueOnError)
	owner := fs.String("owner", "", "owner of the project")
	project := fs.String("project", "", "project name")
	configPath := fs.String("config", "", "path to config file")
	vars := fs.StringArrayP("env", "e", nil, "environment variable KEY=VALUE (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *owner == "" || *project == "" {
		return configError("parse flags", errors.New("--owner and --project are required"))
	}
	if field, msg := validation.ValidateTargetNames(*owner, *project); field != "" {
		return configError("parse flags", fmt.Errorf("invalid --%s: %s", field, msg))
	}

	env, err := parseAssignments(*vars)
	if err != nil {
		return configError("parse flags", err)
	}

	st, err := openStoreFromFlags(*configPath, fs)
	if err != nil {
		return err
	}
	defer st.Close()

	var created *store.Project
	err = st.WithTx(ctx, func(tx store.Store) error {
		if _, err := tx.GetOwner(ctx, *owner); err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				return err
			}
			if _, err := tx.CreateOwner(ctx, *owner); err != nil {
				return err
			}
		}
		p, err := tx.CreateProject(ctx, *owner, *project, env)
		if err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return storeError("create project", err)
	}

	fmt.Fprintf(stdout, "%s/%s %s\n", created.Owner, created.Name, deployment.ContainerName(created.Owner, created.Name))
	return nil
}

func runProjectList(ctx context.Context, args []string, stdout io.Writer) error {
	fs := pflag.NewFlagSet("project list", pflag.ContinueOnError)
	owner := fs.String("owner", "", "owner whose projects are listed")
	configPath := fs.String("config", "", "path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *owner == "" {
		return configError("parse flags", errors.New("--owner is required"))
	}

	st, err := openStoreFromFlags(*configPath, fs)
	if err != nil {
		return err
	}
	defer st.Close()

	projects, err := st.ListProjects(ctx, *owner)
	if err != nil {
		return storeError("list projects", err)
	}
	for _, p := range projects {
		fmt.Fprintf(stdout, "%s/%s %s\n", p.Owner, p.Name, deployment.ContainerName(p.Owner, p.Name))
	}
	return nil
}

// =============================================================================
// Environment Commands
// =============================================================================

func runEnv(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return configError("env", errors.New("expected subcommand: show, set or unset"))
	}
	sub := args[0]
	if sub != "show" && sub != "set" && sub != "unset" {
		return configError("env", fmt.Errorf("unknown subcommand %q", sub))
	}

	fs := pflag.NewFlagSet("env "+sub, pflag.ContinueOnError)
	owner := fs.String("owner", "", "owner of the project")
	project := fs.String("project", "", "project name")
	configPath := fs.String("config", "", "path to config file")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *owner == "" || *project == "" {
		return configError("parse flags", errors.New("--owner and --project are required"))
	}

	var changes deployment.Environment
	var removals []string
	switch sub {
	case "set":
		env, err := parseAssignments(fs.Args())
		if err != nil {
			return configError("parse flags", err)
		}
		if len(env) == 0 {
			return configError("parse flags", errors.New("expected KEY=VALUE arguments"))
		}
		changes = env
	case "unset":
		if fs.NArg() == 0 {
			return configError("parse flags", errors.New("expected KEY arguments"))
		}
		removals = fs.Args()
	}

	st, err := openStoreFromFlags(*configPath, fs)
	if err != nil {
		return err
	}
	defer st.Close()

	var env deployment.Environment
	err = st.WithTx(ctx, func(tx store.Store) error {
		current, err := tx.GetEnvironment(ctx, *owner, *project)
		if err != nil {
			return err
		}
		if sub == "show" {
			env = current
			return nil
		}
		for _, key := range removals {
			if _, ok := current.Get(key); !ok {
				return fmt.Errorf("%w: variable %q is not set", deployment.ErrConfiguration, key)
			}
		}
		env = mergeEnvironment(current, changes, removals)
		return tx.SetEnvironment(ctx, *owner, *project, env)
	})
	if err != nil {
		return storeError("env "+sub, err)
	}

	for _, line := range env.Strings() {
		fmt.Fprintln(stdout, line)
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// parseAssignments turns KEY=VALUE arguments into an environment. Later
// assignments of the same key win.
func parseAssignments(args []string) (deployment.Environment, error) {
	vars := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("%w: expected KEY=VALUE, got %q", deployment.ErrConfiguration, arg)
		}
		if strings.ContainsAny(key, " \t\r\n") {
			return nil, fmt.Errorf("%w: variable name %q contains whitespace", deployment.ErrConfiguration, key)
		}
		vars[key] = value
	}
	return deployment.NewEnvironment(vars), nil
}

func mergeEnvironment(current, changes deployment.Environment, removals []string) deployment.Environment {
	vars := current.Map()
	maps.Copy(vars, changes.Map())
	for _, key := range removals {
		delete(vars, key)
	}
	return deployment.NewEnvironment(vars)
}

func openStoreFromFlags(configPath string, fs *pflag.FlagSet) (*store.SQLStore, error) {
	cfg, err := LoadConfig(configPath, fs)
	if err != nil {
		return nil, configError("load config", err)
	}
	return openStore(cfg)
}

// storeError maps store failures: missing or duplicate records are caller
// mistakes, everything else is a database error.
func storeError(op string, err error) error {
	code := ExitDatabaseError
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrDuplicate) || errors.Is(err, deployment.ErrConfiguration) {
		code = ExitConfigError
	}
	return &CommandError{Op: op, Err: err, ExitCode: code}
}
