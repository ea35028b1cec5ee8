package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/tidegate/tidegate/internal/auth"
)

// CheckChain validates a certificate chain from a file: a JSON object
// with a "chain" array of compact tokens, as found in captured login
// packets.
func CheckChain() *cobra.Command {
	var rootKey string
	cmd := &cobra.Command{
		Use:   "checkchain [FILE]",
		Short: "Validate a login certificate chain",
		Long:  `Validate a certificate chain captured from a login packet against the trusted root key`,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if err := checkChain(args[0], rootKey); err != nil {
				fmt.Printf("error: %v\n", err)
				os.Exit(1)
			}
		},
	}
	cmd.Flags().StringVarP(&rootKey, "root_key", "", "", "override the trusted root public key, base64 DER")
	return cmd
}

func checkChain(path string, rootKeyBase64 string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	chainClaim := gjson.GetBytes(data, "chain")
	if !chainClaim.IsArray() {
		return fmt.Errorf("%s: chain claim is missing or not an array", path)
	}
	var chain []string
	for _, token := range chainClaim.Array() {
		chain = append(chain, token.String())
	}

	rootKey := auth.MojangRootKey()
	if rootKeyBase64 != "" {
		rootKey, err = auth.ParsePublicKey(rootKeyBase64)
		if err != nil {
			return err
		}
	}

	trusted, leafKey, err := auth.NewChainValidator(rootKey).Validate(chain)
	if err != nil {
		return err
	}
	fmt.Printf("chain of %d token(s) is valid\n", len(chain))
	fmt.Printf("root trusted: %v\n", trusted)
	fmt.Printf("leaf identity key: %s\n", auth.EncodePublicKey(leafKey))
	return nil
}
