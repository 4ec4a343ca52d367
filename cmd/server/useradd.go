package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gwi.com/analyst-assistant/internal/auth"
	"gwi.com/analyst-assistant/internal/store"
)

var useraddEmail string

var useraddCmd = &cobra.Command{
	Use:   "useradd",
	Short: "Create an account from the command line",
	Long:  "Create an account in the configured store. The password is read from the terminal, or from the first line of stdin when it is not a terminal.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadTools()
		if err != nil {
			return err
		}
		defer logger.Sync()

		password, err := readPassword(cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		st, err := store.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer st.Close()

		sess := auth.NewSession("cli", st, nil, logger)
		if err := sess.SignUp(cmd.Context(), useraddEmail, password); err != nil {
			if errors.Is(err, auth.ErrDuplicateEmail) {
				return fmt.Errorf("%s is already registered", store.NormalizeEmail(useraddEmail))
			}
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Account created for %s\n", store.NormalizeEmail(useraddEmail))
		return nil
	},
}

func init() {
	useraddCmd.Flags().StringVar(&useraddEmail, "email", "", "email address of the new account")
	useraddCmd.MarkFlagRequired("email")
}

func readPassword(prompt io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(prompt, "Password: ")
		pw, err := term.ReadPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(pw), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
