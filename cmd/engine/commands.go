package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"jobaudit-engine/internal/secrets"
)

func sourcesAction(ctx context.Context, cmd *cli.Command) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	for _, s := range newEngine(cfg).Sources() {
		fmt.Println(s)
	}
	return nil
}

func checkOpenAction(ctx context.Context, cmd *cli.Command) error {
	target := strings.TrimSpace(cmd.Args().First())
	if target == "" {
		return fmt.Errorf("usage: engine check-open <url>")
	}

	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	rc, err := newEngine(cfg).CheckOpen(ctx, target)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rc)
}

func secretSetAction(ctx context.Context, cmd *cli.Command) error {
	account := strings.TrimSpace(cmd.Args().First())
	value := cmd.String("value")
	if value == "" {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read secret from stdin: %w", err)
		}
		value = strings.TrimSpace(line)
	}
	if err := secrets.Set(account, value); err != nil {
		return err
	}
	fmt.Printf("stored %s in keychain service %q\n", account, secrets.KeyringService)
	return nil
}

func secretDeleteAction(ctx context.Context, cmd *cli.Command) error {
	account := strings.TrimSpace(cmd.Args().First())
	if err := secrets.Delete(account); err != nil {
		return err
	}
	fmt.Printf("removed %s from keychain service %q\n", account, secrets.KeyringService)
	return nil
}
