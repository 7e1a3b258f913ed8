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

	"github.com/good-yellow-bee/followwatch/internal/api/users"
	"github.com/good-yellow-bee/followwatch/internal/logger"
)

var (
	newUsername string
	newChatID   string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account, prompting for the password",
	RunE:  runUserCreate,
}

func init() {
	userCreateCmd.Flags().StringVarP(&newUsername, "username", "u", "", "account username (required)")
	userCreateCmd.Flags().StringVar(&newChatID, "telegram-chat-id", "", "telegram chat id for milestone messages")
	_ = userCreateCmd.MarkFlagRequired("username")
	userCmd.AddCommand(userCreateCmd)
}

func runUserCreate(cmd *cobra.Command, args []string) error {
	cfg, err := loadRuntime()
	if err != nil {
		return err
	}
	defer logger.Flush(flushTimeout)

	password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	user, err := users.NewAccount(newUsername, password, newChatID)
	if err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Users().Create(cmd.Context(), user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", user.Username, user.ID)
	return nil
}

// readPassword prompts twice on a terminal, or reads one line from a pipe.
func readPassword(in io.Reader, prompt io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		fmt.Fprint(prompt, "Password: ")
		first, err := term.ReadPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		fmt.Fprint(prompt, "Confirm password: ")
		second, err := term.ReadPassword(fd)
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		if string(first) != string(second) {
			return "", errors.New("passwords do not match")
		}
		return string(first), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password is required on stdin")
	}
	return password, nil
}
