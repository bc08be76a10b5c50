// Prints four random signing keys, one per token purpose, ready to paste
// into the environment.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
)

const SecretKeyBytesLen = 32

var keyNames = []string{
	"AUTH_TOKEN_KEY",
	"REFRESH_TOKEN_KEY",
	"EMAIL_VERIFICATION_KEY",
	"PASSWORD_RESET_KEY",
}

func main() {
	for _, name := range keyNames {
		b := make([]byte, SecretKeyBytesLen)

		_, err := rand.Read(b)
		if err != nil {
			fmt.Printf("error while generating secret key: %v", err)
			os.Exit(1)
		}

		fmt.Printf("%s=%s\n", name, hex.EncodeToString(b))
	}
}
