// ABOUTME: Operator CLI for helplane user management and analytics
// ABOUTME: Works directly against the configured store, no running gateway needed

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/helplane/helplane/internal/auth"
	"github.com/helplane/helplane/internal/config"
	"github.com/helplane/helplane/internal/conversation"
	"github.com/helplane/helplane/internal/store"
)

const banner = `
  _          _       _                            _           _
 | |__   ___| |_ __ | | __ _ _ __   ___      __ _| |_ __ ___ (_)_ __
 | '_ \ / _ \ | '_ \| |/ _' | '_ \ / _ \    / _' | | '_ ' _ \| | '_ \
 | | | |  __/ | |_) | | (_| | | | |  __/   | (_| | | | | | | | | | | |
 |_| |_|\___|_| .__/|_|\__,_|_| |_|\___|    \__,_|_|_| |_| |_|_|_| |_|
              |_|
`

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "create-user":
		err = cmdCreateUser(args)
	case "mint-token":
		err = cmdMintToken(args)
	case "users":
		err = cmdUsers(args)
	case "analytics":
		err = cmdAnalytics()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: helplane-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  create-user --name NAME --email EMAIL --password PW --role ROLE [--supervisor ID]")
	fmt.Println("                          Create a user (any role, including admin)")
	fmt.Println("  mint-token --user ID    Generate a JWT for an existing user")
	fmt.Println("  users [--role ROLE]     List users, optionally filtered by role")
	fmt.Println("  analytics               Per-supervisor agent and closed-conversation counts")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  HELPLANE_CONFIG         Path to the gateway config (default: XDG config dir)")
	fmt.Println()
}

// getConfigPath mirrors the gateway's config resolution.
func getConfigPath() string {
	if envPath := os.Getenv("HELPLANE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "helplane", "gateway.yaml")
}

func openStore() (*config.Config, *store.SQLiteStore, error) {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}
	return cfg, st, nil
}

// parseFlags handles "--name value" and "--name=value" argument forms.
func parseFlags(args []string) (map[string]string, error) {
	out := make(map[string]string)
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "--") {
			return nil, fmt.Errorf("unexpected argument: %s", arg)
		}
		name := strings.TrimPrefix(arg, "--")
		if eq := strings.Index(name, "="); eq >= 0 {
			out[name[:eq]] = name[eq+1:]
			continue
		}
		if i+1 >= len(args) {
			return nil, fmt.Errorf("--%s requires a value", name)
		}
		i++
		out[name] = args[i]
	}
	return out, nil
}

func cmdCreateUser(args []string) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}
	name, email, password := flags["name"], flags["email"], flags["password"]
	role := store.Role(flags["role"])
	supervisorID := flags["supervisor"]

	if name == "" || email == "" || password == "" {
		return fmt.Errorf("--name, --email and --password are required")
	}
	if !role.Valid() {
		return fmt.Errorf("--role must be one of admin, supervisor, agent, candidate")
	}
	if role == store.RoleAgent && supervisorID == "" {
		return fmt.Errorf("agents require --supervisor")
	}
	if role != store.RoleAgent && supervisorID != "" {
		return fmt.Errorf("--supervisor only applies to agents")
	}

	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	if role == store.RoleAgent {
		sup, err := st.GetUser(ctx, supervisorID)
		if err != nil {
			return fmt.Errorf("looking up supervisor: %w", err)
		}
		if sup.Role != store.RoleSupervisor {
			return fmt.Errorf("%s is not a supervisor", supervisorID)
		}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}

	user := &store.User{
		ID:           uuid.New().String(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		SupervisorID: supervisorID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := st.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("creating user: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Print("✓ ")
	fmt.Printf("Created %s %s\n", role, user.ID)
	return nil
}

func cmdMintToken(args []string) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}
	userID := flags["user"]
	if userID == "" {
		return fmt.Errorf("--user is required")
	}

	cfg, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	user, err := st.GetUser(context.Background(), userID)
	if err != nil {
		return fmt.Errorf("looking up user: %w", err)
	}

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	token, err := verifier.Generate(auth.Identity{ID: user.ID, Role: user.Role}, cfg.Auth.TokenTTL)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Println(token)
	return nil
}

func cmdUsers(args []string) error {
	flags, err := parseFlags(args)
	if err != nil {
		return err
	}

	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	roles := []store.Role{store.RoleAdmin, store.RoleSupervisor, store.RoleAgent, store.RoleCandidate}
	if roleFlag := flags["role"]; roleFlag != "" {
		role := store.Role(roleFlag)
		if !role.Valid() {
			return fmt.Errorf("unknown role: %s", roleFlag)
		}
		roles = []store.Role{role}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE\tSUPERVISOR")
	ctx := context.Background()
	for _, role := range roles {
		users, err := st.ListUsersByRole(ctx, role)
		if err != nil {
			return fmt.Errorf("listing %s users: %w", role, err)
		}
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role, u.SupervisorID)
		}
	}
	return w.Flush()
}

func cmdAnalytics() error {
	_, st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	convs := conversation.New(st, nil)
	stats, err := convs.Analytics(context.Background(), auth.Identity{ID: "helplane-admin", Role: store.RoleAdmin})
	if err != nil {
		return fmt.Errorf("computing analytics: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SUPERVISOR\tNAME\tAGENTS\tCLOSED")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", s.SupervisorID, s.SupervisorName, s.Agents, s.ConversationsHandled)
	}
	return w.Flush()
}
