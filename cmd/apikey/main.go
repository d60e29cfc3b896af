// Command apikey generates a new API key and appends it to a YAML key file.
// Not a production-grade tool, just a simple utility for development/testing
// purposes: it edits the file in place rather than managing a database.
package main

import (
	"crypto/rand"
	"encoding/base32"
	"flag"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type fileKey struct {
	Key      string   `yaml:"key"`
	TenantID string   `yaml:"tenant_id"`
	Scopes   []string `yaml:"scopes"`
}

type fileKeys struct {
	Keys []fileKey `yaml:"keys"`
}

func main() {
	path := flag.String("file", os.Getenv("API_KEYS_FILE"), "path to the YAML API keys file (required)")
	tenant := flag.String("tenant", "", "tenant id to associate with the new key (required)")
	scopes := flag.String("scopes", "predict", "comma-separated scopes, e.g. predict,read_models,admin")
	flag.Parse()

	if *path == "" {
		fmt.Println("Error: -file is required (or set API_KEYS_FILE)")
		flag.Usage()
		os.Exit(1)
	}
	if *tenant == "" {
		fmt.Println("Error: -tenant is required")
		flag.Usage()
		os.Exit(1)
	}

	key, err := generateKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate key: %v\n", err)
		os.Exit(1)
	}

	keys, err := loadOrInit(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read %s: %v\n", *path, err)
		os.Exit(1)
	}

	scopeList := strings.Split(*scopes, ",")
	for i := range scopeList {
		scopeList[i] = strings.TrimSpace(scopeList[i])
	}

	keys.Keys = append(keys.Keys, fileKey{Key: key, TenantID: *tenant, Scopes: scopeList})

	out, err := yaml.Marshal(keys)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal key file: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*path, out, 0o600); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write %s: %v\n", *path, err)
		os.Exit(1)
	}

	fmt.Println("API key created successfully")
	fmt.Printf("Tenant: %s\n", *tenant)
	fmt.Printf("Scopes: %s\n", strings.Join(scopeList, ", "))
	fmt.Printf("Key:    %s\n", key)
	fmt.Printf("The key is stored in plaintext in %s; keep that file private.\n", *path)
}

func loadOrInit(path string) (*fileKeys, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &fileKeys{}, nil
	}
	if err != nil {
		return nil, err
	}
	var keys fileKeys
	if err := yaml.Unmarshal(raw, &keys); err != nil {
		return nil, err
	}
	return &keys, nil
}

func generateKey() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "ie-" + strings.ToLower(base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf)), nil
}
