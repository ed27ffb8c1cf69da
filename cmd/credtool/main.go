package main

import (
	"fmt"
	"os"

	"polytrader/pkg/crypto"
)

// credtool готовит секреты для .env:
//
//	credtool hash <token>            bcrypt-хеш для ADMIN_TOKEN_HASH
//	credtool genkey                  новый ключ для ENCRYPTION_KEY
//	credtool encrypt <key> <secret>  значение для CLOB_SECRET_ENCRYPTED
func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "hash":
		if len(os.Args) != 3 {
			usage()
			os.Exit(2)
		}
		hash, err := crypto.HashPassword(os.Args[2])
		if err != nil {
			fatal(err)
		}
		fmt.Println(hash)

	case "genkey":
		key, err := crypto.GenerateKeyString()
		if err != nil {
			fatal(err)
		}
		fmt.Println(key)

	case "encrypt":
		if len(os.Args) != 4 {
			usage()
			os.Exit(2)
		}
		encrypted, err := crypto.EncryptWithKeyString(os.Args[3], os.Args[2])
		if err != nil {
			fatal(err)
		}
		fmt.Println(encrypted)

	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  credtool hash <token>            bcrypt hash for ADMIN_TOKEN_HASH
  credtool genkey                  random key for ENCRYPTION_KEY
  credtool encrypt <key> <secret>  encrypted value for CLOB_SECRET_ENCRYPTED`)
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
