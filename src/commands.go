package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/apimgr/ecogarden/src/database"
	"github.com/apimgr/ecogarden/src/server/handler"
	models "github.com/apimgr/ecogarden/src/server/model"
)

// openDatabase opens and migrates the configured database
func openDatabase(c *cli.Context) (*database.DB, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	db, err := database.Open(c.Context, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(c.Context); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func runMigrate(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	version, err := db.CurrentVersion(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "✅ Schema at version %d (%s)\n", version, db.Dialect)
	return nil
}

func runFixtures(c *cli.Context) error {
	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	result, err := db.LoadFixtures(c.Context, database.FixtureOptions{Force: c.Bool("force")})
	if errors.Is(err, database.ErrNotEmpty) {
		return fmt.Errorf("%w, rerun with --force to replace them", err)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "✅ Loaded %d users and %d advices\n", result.Users, result.Advices)
	fmt.Fprintf(c.App.Writer, "   %s / %s\n", database.FixtureUserEmail, database.FixturePassword)
	fmt.Fprintf(c.App.Writer, "   %s / %s\n", database.FixtureAdminEmail, database.FixturePassword)
	return nil
}

func runUserCreate(c *cli.Context) error {
	password, err := readPassword(c)
	if err != nil {
		return err
	}

	email := strings.TrimSpace(c.String("email"))
	var postalCode *string
	if cp := c.String("postal-code"); cp != "" {
		postalCode = &cp
	}

	if problems := handler.ValidateNewUser(handler.CreateUserRequest{
		Email:      email,
		Password:   password,
		PostalCode: postalCode,
	}); problems != nil {
		return invalidUserError(problems)
	}

	var roles []string
	if c.Bool("admin") {
		roles = []string{models.RoleAdmin}
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	users := &models.UserModel{DB: db}
	user, err := users.Create(c.Context, email, password, roles, postalCode)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.Writer, "✅ Created user %d <%s> %v\n", user.ID, user.Email, user.Roles())
	return nil
}

// invalidUserError lists rejected fields in a stable order
func invalidUserError(problems map[string]interface{}) error {
	fields := make([]string, 0, len(problems))
	for field := range problems {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	lines := make([]string, 0, len(fields))
	for _, field := range fields {
		lines = append(lines, fmt.Sprintf("%s: %v", field, problems[field]))
	}
	return fmt.Errorf("invalid user:\n  %s", strings.Join(lines, "\n  "))
}

// readPassword prompts without echo on a terminal and reads one line
// from stdin otherwise, so scripts can pipe the password in
func readPassword(c *cli.Context) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(c.App.Writer, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(c.App.Writer)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	fmt.Fprint(c.App.Writer, "Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(c.App.Writer)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
