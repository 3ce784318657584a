package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"Chiffrage/internal/keys"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage vault keys",
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored keys",
	RunE:  runKeysList,
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate <name>",
	Short: "Generate a new identity in the vault",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeysGenerate,
}

var keysDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a key from the vault",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeysDelete,
}

var keysImportCmd = &cobra.Command{
	Use:   "import <name> <file>",
	Short: "Import a key file into the vault",
	Args:  cobra.ExactArgs(2),
	RunE:  runKeysImport,
}

var keysExportCmd = &cobra.Command{
	Use:   "export <id> <file>",
	Short: "Export a key to a file",
	Long: `Export a key to a file. Identities export their private form; with
--format x25519 a post-quantum key is projected onto its classical twin.`,
	Args: cobra.ExactArgs(2),
	RunE: runKeysExport,
}

var keysShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a key's public form",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeysShow,
}

var keysCheckCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Report whether a key file holds a private identity",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeysCheck,
}

var keysDowngradeCmd = &cobra.Command{
	Use:   "downgrade <age1pq...>",
	Short: "Project a post-quantum public key onto its X25519 twin",
	Args:  cobra.ExactArgs(1),
	RunE:  runKeysDowngrade,
}

// Key command flags
var (
	keysGenFormat    string
	keysExportFormat string
)

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysListCmd, keysGenerateCmd, keysDeleteCmd,
		keysImportCmd, keysExportCmd, keysShowCmd, keysCheckCmd, keysDowngradeCmd)

	keysGenerateCmd.Flags().StringVarP(&keysGenFormat, "format", "f", "pq", "Key format: pq (ML-KEM-768 hybrid) or x25519")
	keysExportCmd.Flags().StringVarP(&keysExportFormat, "format", "f", "pq", "Export format: pq or x25519")

	for _, c := range []*cobra.Command{keysListCmd, keysGenerateCmd, keysDeleteCmd,
		keysImportCmd, keysExportCmd, keysShowCmd, keysCheckCmd, keysDowngradeCmd} {
		c.SilenceUsage = true
	}
}

// parseFormat maps the CLI flag onto the key dispatch format.
func parseFormat(s string) (keys.Format, error) {
	switch s {
	case "pq", "postquantum", "mlkem768x25519":
		return keys.FormatPostQuantum, nil
	case "x25519", "classic":
		return keys.FormatX25519, nil
	default:
		return 0, fmt.Errorf("unknown key format %q (use pq or x25519)", s)
	}
}

func runKeysList(cmd *cobra.Command, args []string) error {
	s := newAppState()
	if err := s.LoadVault(); err != nil {
		return err
	}
	records, err := s.FetchKeys()
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No keys stored.")
		return nil
	}
	for _, r := range records {
		fmt.Printf("%s  %-8s  %s  %s\n",
			r.ID, r.KeyType, r.DateCreated.Format("2006-01-02"), r.Name)
	}
	return nil
}

func runKeysGenerate(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(keysGenFormat)
	if err != nil {
		return err
	}

	s := newAppState()
	if err := unlockVault(s); err != nil {
		return err
	}
	record, err := s.GenerateKeypair(args[0], format)
	if err != nil {
		return err
	}
	s.Flush()
	fmt.Printf("Generated %s\n", record.ID)
	fmt.Printf("Public key: %s\n", record.Contents.Public)
	return nil
}

func runKeysDelete(cmd *cobra.Command, args []string) error {
	s := newAppState()
	if err := unlockVault(s); err != nil {
		return err
	}
	if err := s.DeleteKey(args[0]); err != nil {
		return err
	}
	s.Flush()
	fmt.Printf("Deleted %s\n", args[0])
	return nil
}

func runKeysImport(cmd *cobra.Command, args []string) error {
	s := newAppState()
	if err := unlockVault(s); err != nil {
		return err
	}
	record, err := s.ImportKey(args[0], args[1])
	if err != nil {
		return err
	}
	s.Flush()
	fmt.Printf("Imported %s as %s (%s)\n", args[1], record.ID, record.KeyType)
	return nil
}

func runKeysExport(cmd *cobra.Command, args []string) error {
	format, err := parseFormat(keysExportFormat)
	if err != nil {
		return err
	}

	s := newAppState()
	if err := unlockVault(s); err != nil {
		return err
	}
	if err := s.ExportKey(args[0], args[1], format); err != nil {
		return err
	}
	fmt.Printf("Exported %s to %s\n", args[0], args[1])
	return nil
}

func runKeysShow(cmd *cobra.Command, args []string) error {
	s := newAppState()
	if err := s.LoadVault(); err != nil {
		return err
	}
	record, err := s.FetchKey(args[0])
	if err != nil {
		return err
	}
	fmt.Println(record.Contents.Public)
	return nil
}

func runKeysCheck(cmd *cobra.Command, args []string) error {
	s := newAppState()
	isPrivate, err := s.CheckKeyfileType(args[0])
	if err != nil {
		return err
	}
	if isPrivate {
		fmt.Println("private identity")
	} else {
		fmt.Println("public recipient")
	}
	return nil
}

func runKeysDowngrade(cmd *cobra.Command, args []string) error {
	s := newAppState()
	downgraded, err := s.DowngradeHybridPublicKey(args[0])
	if err != nil {
		return err
	}
	fmt.Println(downgraded)
	return nil
}
