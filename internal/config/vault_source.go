package config

import (
	"context"
	"fmt"
	"os"
	"time"

	vault "github.com/hashicorp/vault/api"
)

const vaultReadTimeout = 5 * time.Second

// VaultSource fetches values from HashiCorp Vault KV v2 backend.
type VaultSource struct {
	client    *vault.Client
	mountPath string
}

func NewVaultSource() (*VaultSource, error) {
	addr := os.Getenv("VAULT_ADDR")
	token := os.Getenv("VAULT_TOKEN")
	mount := os.Getenv("VAULT_PATH")
	if addr == "" || token == "" {
		return nil, fmt.Errorf("vault config requires VAULT_ADDR and VAULT_TOKEN")
	}
	return NewVaultSourceFor(addr, token, mount)
}

// NewVaultSourceFor builds a source against an explicit Vault address.
func NewVaultSourceFor(addr, token, mount string) (*VaultSource, error) {
	if mount == "" {
		mount = "secret"
	}
	client, err := vault.NewClient(&vault.Config{Address: addr})
	if err != nil {
		return nil, fmt.Errorf("vault client init error: %w", err)
	}
	client.SetToken(token)
	return &VaultSource{
		client:    client,
		mountPath: mount,
	}, nil
}

func (v *VaultSource) Name() string {
	return "vault"
}

// Get tries environment variables first, then reads field "value" of the KV v2
// secret at "<VAULT_PATH>/data/{key}".
func (v *VaultSource) Get(key string) (string, error) {
	if val := os.Getenv(key); val != "" {
		return val, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), vaultReadTimeout)
	defer cancel()

	secret, err := v.client.KVv2(v.mountPath).Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("vault read error: %w", err)
	}
	if val, ok := secret.Data["value"].(string); ok && val != "" {
		return val, nil
	}
	return "", fmt.Errorf("no 'value' field found in vault secret: %s", key)
}
