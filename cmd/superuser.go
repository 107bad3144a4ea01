package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"learningTrackerAPI/internal/logger"
	"learningTrackerAPI/services"
)

var (
	superuserEmail    string
	superuserPassword string
)

var createSuperuserCmd = &cobra.Command{
	Use:   "create-superuser <username>",
	Short: "Create an account directly in the configured store",
	Long: `Create a user in the server's store without going through the API.
The password is read from --password, the SUPERUSER_PASSWORD setting, or a prompt.
An existing username is left untouched.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := strings.TrimSpace(args[0])

		password := superuserPassword
		if password == "" {
			password = appConfig.SuperuserPassword
		}
		if password == "" {
			p, err := newPrompter(cmd.InOrStdin(), cmd.ErrOrStderr()).Password("Password: ")
			if err != nil {
				return err
			}
			password = p
		}
		if username == "" || password == "" {
			return errors.New("username and password are required")
		}

		st, err := openStore(cmd.Context(), appConfig)
		if err != nil {
			return err
		}
		defer st.Close()

		auth := services.NewAuthService(st, st, appConfig.SessionTTL, logger.Nop())
		u, created, err := auth.CreateSuperuser(cmd.Context(), username, superuserEmail, password)
		if err != nil {
			return err
		}

		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "Superuser %s created.\n", u.Username)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "User %s already exists.\n", u.Username)
		}
		return nil
	},
}

// prompter reads answers from stdin. Passwords are read without echo when
// stdin is a terminal.
type prompter struct {
	in  io.Reader
	r   *bufio.Reader
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: in, r: bufio.NewReader(in), out: out}
}

func (p *prompter) Line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	line, err := p.r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *prompter) Password(label string) (string, error) {
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(p.out, label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(b), nil
	}
	pw, err := p.Line(label)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return pw, nil
}

func init() {
	createSuperuserCmd.Flags().StringVar(&superuserEmail, "email", "", "email address")
	createSuperuserCmd.Flags().StringVar(&superuserPassword, "password", "", "password (prompted when omitted)")
	rootCmd.AddCommand(createSuperuserCmd)
}
