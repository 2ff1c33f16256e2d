package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opsgate/opsgate/internal/domain/authz"
)

var useArgon2id bool

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [api-key]",
	Short: "Generate a hash for an API key",
	Long: `Generate a hash of an API key for use in config.

By default the output is "sha256:<hex>", usable directly in the
auth.api_keys.key_hash field. With --argon2id the output is an Argon2id
PHC string, which is slower to verify but resistant to offline cracking.

Example:
  opsgate hash-key "my-secret-api-key"
  # Output: sha256:7d5e8c...

Security note: The key will appear in shell history.
Consider clearing history after use or using an environment variable:
  opsgate hash-key "$MY_API_KEY"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if useArgon2id {
			hash, err := authz.HashKeyArgon2id(key)
			if err != nil {
				return fmt.Errorf("failed to hash key: %w", err)
			}
			fmt.Println(hash)
			return nil
		}
		fmt.Printf("sha256:%s\n", authz.HashKey(key))
		return nil
	},
}

func init() {
	hashKeyCmd.Flags().BoolVar(&useArgon2id, "argon2id", false, "Produce an Argon2id hash instead of SHA-256")
	rootCmd.AddCommand(hashKeyCmd)
}
