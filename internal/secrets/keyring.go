package secrets

import (
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/zalando/go-keyring"

	"jobaudit-engine/internal/config"
)

// KeyringService groups the app's secrets in the OS keychain.
const KeyringService = "jobaudit"

// Known accounts.
const (
	AccountOpenAI  = "openai"
	AccountScraper = "scraper"
	AccountStore   = "store"
)

var ErrNotFound = errors.New("secret not found in keychain")

// Accounts lists the names Set and Delete accept.
func Accounts() []string {
	return []string{AccountOpenAI, AccountScraper, AccountStore}
}

func Get(account string) (string, error) {
	if err := checkAccount(account); err != nil {
		return "", err
	}
	v, err := keyring.Get(KeyringService, account)
	if errors.Is(err, keyring.ErrNotFound) || (err == nil && strings.TrimSpace(v) == "") {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func Set(account, value string) error {
	if err := checkAccount(account); err != nil {
		return err
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secret is empty")
	}
	return keyring.Set(KeyringService, account, value)
}

func Delete(account string) error {
	if err := checkAccount(account); err != nil {
		return err
	}
	return keyring.Delete(KeyringService, account)
}

// FillFromKeyring sets any API key still empty after env loading from the
// keychain. A keychain that can't be reached is not an error.
func FillFromKeyring(cfg *config.Config) {
	fill := func(dst *string, account string) {
		if strings.TrimSpace(*dst) != "" {
			return
		}
		v, err := Get(account)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				log.Debugf("[secrets] keychain lookup account=%s err=%v", account, err)
			}
			return
		}
		*dst = v
	}

	fill(&cfg.LLM.APIKey, AccountOpenAI)
	fill(&cfg.Browser.APIKey, AccountScraper)
	fill(&cfg.Store.Key, AccountStore)
}

func checkAccount(account string) error {
	for _, a := range Accounts() {
		if a == account {
			return nil
		}
	}
	return fmt.Errorf("unknown secret %q (want one of %s)", account, strings.Join(Accounts(), ", "))
}
