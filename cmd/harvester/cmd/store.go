package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tcnksm/go-input"

	"linkedin-harvester/internal/credentials"
)

func newStoreCmd(a *app) *cobra.Command {
	var (
		del       bool
		fromStdin bool
	)
	c := &cobra.Command{
		Use:   "store [--delete] USERNAME",
		Short: "Saves the password for USERNAME in the system keyring.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username := args[0]
			kr := credentials.NewKeyring(a.cfg.Keyring.Service)
			if del {
				if err := kr.Delete(username); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Password removed")
				return nil
			}

			var (
				password string
				err      error
			)
			if fromStdin {
				password, err = readPasswordLine(cmd)
			} else {
				password, err = promptPassword(cmd, username)
			}
			if err != nil {
				return err
			}
			if err := kr.Set(username, password); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password updated successfully")
			return nil
		},
	}
	c.Flags().BoolVar(&del, "delete", false, "Remove the stored password instead.")
	c.Flags().BoolVar(&fromStdin, "password-stdin", false, "Read the password from the first line of stdin instead of prompting.")
	return c
}

func promptPassword(cmd *cobra.Command, username string) (string, error) {
	ui := &input.UI{
		Writer: cmd.ErrOrStderr(),
		Reader: cmd.InOrStdin(),
	}
	return ui.Ask(fmt.Sprintf("password for %s:", username), &input.Options{
		Required:  true,
		Mask:      true,
		Loop:      true,
		HideOrder: true,
	})
}

func readPasswordLine(cmd *cobra.Command) (string, error) {
	sc := bufio.NewScanner(cmd.InOrStdin())
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", errors.New("no password on stdin")
	}
	password := strings.TrimRight(sc.Text(), "\r")
	if password == "" {
		return "", errors.New("empty password on stdin")
	}
	return password, nil
}
