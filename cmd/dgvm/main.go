// Package main provides the dgvm CLI entry point.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgvm-project/dgvm/pkg/config"
	"github.com/dgvm-project/dgvm/pkg/heap/badgerstore"
	"github.com/dgvm-project/dgvm/pkg/vm"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dgvm",
		Short: "dgvm - deterministic, transactional virtual machine for declarative data models",
		Long: `dgvm replays and inspects instruction logs against a versioned
heap: every write lives on a stack of layers, every applied batch of
instructions is hashed into a commit, and commits chain into a
replayable, rollback-capable history.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("dgvm v%s (%s)\n", version, commit)
		},
	})

	replayCmd := &cobra.Command{
		Use:   "replay <commit-log.json>",
		Short: "Replay a commit log against a fresh heap",
		Args:  cobra.ExactArgs(1),
		RunE:  runReplay,
	}
	replayCmd.Flags().String("data-dir", "", "persist the replayed heap and commits to this Badger data directory (default: in-memory only)")
	replayCmd.Flags().Int("heap-size-hint", 0, "initial heap size hint, for PercentUsed reporting")
	replayCmd.Flags().Bool("dump", false, "print a human-readable dump of the resulting heap")
	rootCmd.AddCommand(replayCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect <commit-log.json>",
		Short: "Print the mnemonic-form instructions in a commit log without executing them",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}
	rootCmd.AddCommand(inspectCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// commitLogFile is the on-disk shape accepted by replay/inspect: a flat
// array of mnemonic forms, one per instruction, in application order.
// It mirrors what Commit.Dumps produces, so a VM's own commit history
// round-trips straight back in as input here.
type commitLogFile [][]interface{}

func loadCommitLog(path string) (commitLogFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var forms commitLogFile
	if err := json.Unmarshal(data, &forms); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return forms, nil
}

func runReplay(cmd *cobra.Command, args []string) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	sizeHint, _ := cmd.Flags().GetInt("heap-size-hint")
	dump, _ := cmd.Flags().GetBool("dump")

	forms, err := loadCommitLog(args[0])
	if err != nil {
		return err
	}

	cfg := config.LoadFromEnv()
	if dataDir != "" {
		cfg.Persistence.Enabled = true
		cfg.Persistence.DataDir = dataDir
	}

	machine := vm.New(sizeHint, cfg.Heap.CheckpointLimit)

	var store *badgerstore.Store
	if cfg.Persistence.Enabled {
		store, err = badgerstore.Open(badgerstore.Options{
			DataDir:    cfg.Persistence.DataDir,
			SyncWrites: cfg.Persistence.SyncWrites,
		})
		if err != nil {
			return fmt.Errorf("opening badger store at %s: %w", cfg.Persistence.DataDir, err)
		}
		defer store.Close()
	}

	if err := machine.ExecuteFromMnemonic(forms); err != nil {
		return fmt.Errorf("replaying commit log: %w", err)
	}
	if err := machine.Commit(); err != nil {
		return fmt.Errorf("committing replayed batch: %w", err)
	}

	last, err := machine.GetLastCommit()
	if err != nil {
		return fmt.Errorf("reading back committed batch: %w", err)
	}
	hash, err := last.Hash()
	if err != nil {
		return fmt.Errorf("hashing committed batch: %w", err)
	}

	fmt.Printf("replayed %d instruction(s)\n", last.Len())
	fmt.Printf("commit hash: %x\n", hash)
	fmt.Println(last.String())

	if store != nil {
		if err := persistHeap(machine, store); err != nil {
			return fmt.Errorf("persisting heap: %w", err)
		}
		fmt.Printf("persisted to %s\n", cfg.Persistence.DataDir)
	}

	if dump {
		fmt.Println(machine.Heap().String())
		if err := machine.Heap().Dump(os.Stdout); err != nil {
			return fmt.Errorf("dumping heap: %w", err)
		}
	}
	return nil
}

func persistHeap(machine *vm.VM, store *badgerstore.Store) error {
	layer := machine.Heap().CollapsedView(true)
	if err := store.SaveLayer(0, layer); err != nil {
		return err
	}
	for i, c := range machine.Commits() {
		data, err := c.Dumps()
		if err != nil {
			return fmt.Errorf("encoding commit %d: %w", i, err)
		}
		if err := store.AppendCommitRecord(i, data); err != nil {
			return err
		}
	}
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	forms, err := loadCommitLog(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("%d instruction(s)\n", len(forms))
	for i, form := range forms {
		if len(form) == 0 {
			fmt.Printf("  [%d] (empty)\n", i)
			continue
		}
		mnemonic, _ := form[0].(string)
		fmt.Printf("  [%d] %s %v\n", i, mnemonic, form[1:])
	}
	return nil
}
