package main

import (
	"context"
	"fmt"

	"github.com/digitme/digit/core/user"
)

func (cli *commandLine) addUser(ctx context.Context, nu user.NewUser) error {
	usr, err := cli.usrSvc.Create(ctx, nu)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "user %d created\n", usr.ID)
	return nil
}
