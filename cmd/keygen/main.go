package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"smartai_gateway/internal/config"
	"smartai_gateway/internal/storage"
)

// keygen creates ENCRYPTION_KEY values and seals provider API keys with the
// configured key, for operators who manage provider_configs rows by hand.
func main() {
	encrypt := flag.Bool("encrypt", false, "read an API key from stdin and print its ciphertext")
	decrypt := flag.Bool("decrypt", false, "read a ciphertext from stdin and print the API key")
	flag.Parse()

	if !*encrypt && !*decrypt {
		key, err := storage.GenerateKey()
		if err != nil {
			log.Fatalf("Failed to generate key: %v", err)
		}
		fmt.Println(key)
		fmt.Fprintln(os.Stderr, "Store this in your ENCRYPTION_KEY environment variable")
		return
	}

	// Only ENCRYPTION_KEY is needed here; skip the full config validation.
	if os.Getenv("ENCRYPTION_KEY") == "" {
		log.Fatal("ENCRYPTION_KEY must be set")
	}
	key, err := config.ParseEncryptionKey(os.Getenv("ENCRYPTION_KEY"))
	if err != nil {
		log.Fatal(err)
	}
	encryption, err := storage.NewEncryption(key)
	if err != nil {
		log.Fatalf("Failed to create encryption: %v", err)
	}

	input, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && input == "" {
		log.Fatalf("Failed to read stdin: %v", err)
	}
	input = strings.TrimSpace(input)

	if *encrypt {
		out, err := encryption.EncryptString(input)
		if err != nil {
			log.Fatalf("Failed to encrypt: %v", err)
		}
		fmt.Println(out)
		return
	}

	out, err := encryption.DecryptString(input)
	if err != nil {
		log.Fatalf("Failed to decrypt: %v", err)
	}
	fmt.Println(out)
}
